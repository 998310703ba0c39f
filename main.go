// main is the entrypoint for the heatshield CLI.
package main

import (
	"fmt"
	"os"

	"github.com/quantumclean/heatshield/cmd"
	"github.com/quantumclean/heatshield/internal/auditlog"
)

func main() {
	err := cmd.Execute()

	// Close before exiting so buffered audit appends reach the backend.
	auditlog.CloseStore()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Fatal:", err)
		os.Exit(1)
	}
}
