package auditlog

import (
	"errors"
	"fmt"

	"github.com/quantumclean/heatshield/internal/parquet"
)

// ExecuteAuditExport performs the actual export of audit records to a Parquet file.
func ExecuteAuditExport(outputFile string) error {
	// Validate that output file is specified
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	// Get the audit store
	store := Manager.GetAuditStore()

	// Check if there's any data to export
	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get audit status: %w", err)
	}

	if status.TotalRecords == 0 {
		return errors.New("no audit records found to export")
	}

	fmt.Printf("Exporting data from %s backend...\n", status.Backend)
	fmt.Printf("Total audit records: %d\n", status.TotalRecords)

	// Retrieve all audit records
	records, err := store.Records("")
	if err != nil {
		return fmt.Errorf("failed to retrieve audit records: %w", err)
	}

	// Convert to Parquet format and write
	parquetRecords := parquet.ConvertAuditRecords(records)
	recordsFile := outputFile + ".audit_log.parquet"
	if err := parquet.WriteAuditRecordsParquet(parquetRecords, recordsFile); err != nil {
		return fmt.Errorf("failed to write audit records: %w", err)
	}
	fmt.Printf("Exported %d audit records to: %s\n", len(parquetRecords), recordsFile)

	fmt.Println("\nExport complete! The Parquet file can be used with:")
	fmt.Println("  - Apache Spark")
	fmt.Println("  - Apache Arrow")
	fmt.Println("  - Pandas (via pyarrow)")
	fmt.Println("  - DuckDB")
	fmt.Println("  - Any other Parquet-compatible tool")

	return nil
}
