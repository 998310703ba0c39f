package cmd

import (
	"fmt"

	"github.com/quantumclean/heatshield/internal/auditlog"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// auditSetup loads minimal configuration needed for audit operations.
// This is used by commands that need audit access without full shared setup.
func auditSetup(_ *cobra.Command, _ []string) error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	// Get audit-related config values
	backend := schema.AuditBackend(viper.GetString("audit-backend"))
	connStr := viper.GetString("audit-db-connect")

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	cfg.AuditBackend = backend
	cfg.AuditDBConnect = connStr
	cfg.AuditDir = viper.GetString("audit-dir")
	if cfg.AuditBackend == schema.JSONLBackend && cfg.AuditDir == "" {
		cfg.AuditDir = contract.GetAuditDirPath()
	}

	// Get output-related config values (used by export command)
	cfg.OutputFile = viper.GetString("output-file")

	// Initialize the store with the loaded config
	if err := auditlog.InitStore(cfg); err != nil {
		return fmt.Errorf("failed to initialize audit store: %w", err)
	}

	return nil
}

// auditMigrateSetup loads minimal configuration needed for migrate operations.
// This is a specialized setup that does NOT initialize the store or create
// tables, allowing migrations to run on a fresh database.
func auditMigrateSetup(_ *cobra.Command, _ []string) error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	// Get audit-related config values
	backend := schema.AuditBackend(viper.GetString("audit-backend"))
	connStr := viper.GetString("audit-db-connect")

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	// For SQLite backend with empty connection string, use default path
	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetAuditDBFilePath()
	}

	cfg.AuditBackend = backend
	cfg.AuditDBConnect = connStr

	return nil
}

// auditCmd focused on the append-only audit trail.
//
// Note: Audit subcommands use minimal initialization (auditSetup) instead of
// the full sharedSetup used by pipeline commands. This avoids input parsing
// and policy validation for simple log operations. There is deliberately no
// 'clear' subcommand; the log is append-only.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and export the append-only audit trail",
	Long: `Work with the audit trail every pipeline stage writes to.

The log records three kinds of entries:
- gate_decision   every gate evaluation for every unit, pass or fail
- scrub_event     entity counts removed from a unit's texts (never the text)
- watermark_batch one entry per watermarked release

Records are appended, never updated or deleted; there is no clear command.

Supported backends: JSONL file (default), SQLite, MySQL, PostgreSQL, or None

Subcommands:
  status  - Show record counts and connection info
  export  - Export records to Parquet for analytics
  migrate - Run database schema migrations (SQL backends)

Examples:
  # Check the trail
  heatshield audit status

  # Hand records to the compliance dashboard
  heatshield audit export --output-file audit-data`,
}

// auditStatusCmd shows audit store status.
var auditStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display audit record counts and connection details",
	Long: `Show detailed information about the audit trail.

Displays:
- Backend type and connection status
- Total number of records and counts per kind
- Last and oldest record timestamps

Use this to:
- Verify gate decisions are being recorded
- Confirm a release produced its watermark_batch entry
- Check database connection health before an export

Examples:
  # Check the JSONL log (default)
  heatshield audit status

  # Check a PostgreSQL audit store
  HEATSHIELD_AUDIT_BACKEND=postgresql HEATSHIELD_AUDIT_DB_CONNECT="..." heatshield audit status`,
	PreRunE: auditSetup,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := auditlog.Manager.GetAuditStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get audit status", err)
		}
		auditlog.PrintAuditStatus(status)
	},
}

// auditExportCmd exports audit records to Parquet files.
var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit records to Parquet for BI tools and analytics",
	Long: `Export all audit records to Parquet format for use with analytics tools.

Parquet format enables:
- Fast querying with DuckDB, Apache Spark, pandas
- Efficient storage with columnar compression
- Direct import into BI tools for compliance reporting

Requires: --output-file parameter

Use cases:
- Release accountability reports (what went out, when, to which tier)
- Gate failure analysis across batches
- Long-term archival of the trail outside the live backend

Examples:
  # Export all records
  heatshield audit export --output-file audit-data

  # Query with DuckDB afterwards
  duckdb -c "SELECT kind, COUNT(*) FROM read_parquet('audit-data.audit_log.parquet') GROUP BY kind"`,
	PreRunE: auditSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := auditlog.ExecuteAuditExport(cfg.OutputFile); err != nil {
			contract.LogFatal("Failed to export audit records", err)
		}
	},
}

// auditMigrateCmd runs database migrations for the audit store.
var auditMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the SQL audit backends.

Migrations allow:
- Upgrading to new schema versions when heatshield is updated
- Safely modifying database structure without losing records
- Rolling back schema changes if needed

By default, migrates to the latest version. Use --target-version for
specific versions. The jsonl and none backends have no schema and do not
migrate.

Examples:
  # Migrate the default SQLite store to latest
  heatshield audit migrate --audit-backend sqlite

  # Migrate to specific version
  heatshield audit migrate --audit-backend sqlite --target-version 1

  # Rollback everything
  heatshield audit migrate --audit-backend sqlite --target-version 0`,
	PreRunE: auditMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := auditlog.Migrate(cfg.AuditBackend, cfg.AuditDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
