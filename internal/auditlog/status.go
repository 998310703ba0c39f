package auditlog

import (
	"fmt"
	"maps"
	"slices"

	"github.com/quantumclean/heatshield/schema"
)

// PrintAuditStatus prints audit store status information.
func PrintAuditStatus(status schema.AuditStatus) {
	fmt.Printf("Audit Backend: %s\n", status.Backend)
	if status.Location != "" {
		fmt.Printf("Location: %s\n", status.Location)
	}
	fmt.Printf("Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	fmt.Printf("Total Records: %d\n", status.TotalRecords)
	if status.TotalRecords == 0 {
		return
	}
	fmt.Printf("Last Record: %s\n", status.LastRecordTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("Oldest Record: %s\n", status.OldestRecordTime.Format("2006-01-02 15:04:05"))
	fmt.Println("Records by Kind:")
	for _, kind := range slices.Sorted(maps.Keys(status.RecordsByKind)) {
		fmt.Printf("  %s: %d\n", kind, status.RecordsByKind[kind])
	}
}
