package auditlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)

// SQLStore keeps the audit log in a relational table. The table is strictly
// append-only: the store issues INSERT and SELECT, never UPDATE or DELETE.
type SQLStore struct {
	db         *sql.DB
	backend    schema.AuditBackend
	driverName string
	connStr    string
}

var _ contract.AuditStore = (*SQLStore)(nil) // Compile-time check

// NewSQLStore opens the audit table on the given backend.
func NewSQLStore(backend schema.AuditBackend, connStr string) (*SQLStore, error) {
	var db *sql.DB
	var err error
	var driverName string

	switch backend {
	case schema.SQLiteBackend:
		driverName = "sqlite"
		dbPath := connStr
		if dbPath == "" {
			dbPath = contract.GetAuditDBFilePath()
		}
		connStr = dbPath
		db, err = sql.Open(driverName, dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		// connStr should be:
		// user:password@tcp(host:port)/dbname
		driverName = "mysql"
		connStr = withParseTime(connStr)
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL database: %w. Check connection string format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		// connStr should be:
		// host=localhost port=5432 user=postgres password=mysecretpassword dbname=postgres
		driverName = "pgx"
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}

	default:
		return nil, fmt.Errorf("unsupported SQL audit backend: %s", backend)
	}

	// Ping to verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w. Check that the server is running and connection parameters are valid", backend, err)
	}

	// Create the table schema
	for _, query := range getCreateAuditTableQueries(backend) {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create table %s: %w", auditTable, err)
		}
	}

	return &SQLStore{
		db:         db,
		backend:    backend,
		driverName: driverName,
		connStr:    connStr,
	}, nil
}

// withParseTime forces parseTime=true on a MySQL DSN so DATETIME columns
// scan straight into time.Time.
func withParseTime(connStr string) string {
	cfg, err := mysql.ParseDSN(connStr)
	if err != nil || cfg.ParseTime {
		return connStr
	}
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// getCreateAuditTableQueries returns the CREATE statements for the backend,
// one statement per string. They match migration 000001, so stores opened
// without running migrations still find the same schema.
func getCreateAuditTableQueries(backend schema.AuditBackend) []string {
	quotedTableName := quoteTableName(auditTable, backend)

	switch backend {
	case schema.MySQLBackend:
		// MySQL indexes are declared inline because it has no
		// CREATE INDEX IF NOT EXISTS.
		return []string{fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				kind VARCHAR(32) NOT NULL,
				recorded_at DATETIME(6) NOT NULL,
				unit_id VARCHAR(255),
				gate VARCHAR(32),
				passed TINYINT(1),
				detail TEXT,
				entities TEXT,
				batch_id VARCHAR(255),
				tier INT,
				clusters INT,
				INDEX idx_audit_kind (kind),
				INDEX idx_audit_batch (batch_id)
			)
		`, quotedTableName)}

	case schema.PostgreSQLBackend:
		return []string{
			fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				kind TEXT NOT NULL,
				recorded_at TIMESTAMPTZ NOT NULL,
				unit_id TEXT,
				gate TEXT,
				passed BOOLEAN,
				detail TEXT,
				entities TEXT,
				batch_id TEXT,
				tier INT,
				clusters INT
			)
		`, quotedTableName),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_audit_kind ON %s (kind)", quotedTableName),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_audit_batch ON %s (batch_id)", quotedTableName),
		}

	default: // SQLite
		return []string{
			fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				kind TEXT NOT NULL,
				recorded_at TEXT NOT NULL,
				unit_id TEXT,
				gate TEXT,
				passed INTEGER,
				detail TEXT,
				entities TEXT,
				batch_id TEXT,
				tier INTEGER,
				clusters INTEGER
			)
		`, quotedTableName),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_audit_kind ON %s (kind)", quotedTableName),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_audit_batch ON %s (batch_id)", quotedTableName),
		}
	}
}

// quoteTableName returns the properly quoted table name for the backend.
func quoteTableName(name string, backend schema.AuditBackend) string {
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf("`%s`", name)
	default: // SQLite and PostgreSQL
		return fmt.Sprintf("%q", name)
	}
}

// formatTime converts a time.Time to the appropriate format for the backend.
func formatTime(t time.Time, backend schema.AuditBackend) any {
	switch backend {
	case schema.SQLiteBackend:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return t.UTC()
	}
}

// Append inserts one record. Pointer fields pass through as NULL when unset
// and the entities map is stored as its JSON form.
func (s *SQLStore) Append(record schema.AuditRecord) error {
	var entitiesJSON any
	if len(record.Entities) > 0 {
		data, _ := json.Marshal(record.Entities)
		entitiesJSON = string(data)
	}

	quotedTableName := quoteTableName(auditTable, s.backend)

	var query string
	switch s.backend {
	case schema.PostgreSQLBackend:
		query = fmt.Sprintf(`
			INSERT INTO %s (kind, recorded_at, unit_id, gate, passed, detail, entities, batch_id, tier, clusters)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, quotedTableName)
	default: // SQLite and MySQL
		query = fmt.Sprintf(`
			INSERT INTO %s (kind, recorded_at, unit_id, gate, passed, detail, entities, batch_id, tier, clusters)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, quotedTableName)
	}

	_, err := s.db.Exec(query,
		string(record.Kind), formatTime(record.Timestamp, s.backend),
		nullIfEmpty(record.UnitID), nullIfEmpty(string(record.Gate)), record.Passed,
		nullIfEmpty(record.Detail), entitiesJSON, nullIfEmpty(record.BatchID),
		record.Tier, record.Clusters,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// nullIfEmpty maps empty strings to NULL so unset fields round-trip as
// their zero values.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Records returns records of one kind in insertion order. An empty kind
// returns every record.
func (s *SQLStore) Records(kind schema.AuditKind) ([]schema.AuditRecord, error) {
	quotedTableName := quoteTableName(auditTable, s.backend)
	columns := "kind, recorded_at, unit_id, gate, passed, detail, entities, batch_id, tier, clusters"

	var rows *sql.Rows
	var err error
	if kind == "" {
		query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", columns, quotedTableName)
		rows, err = s.db.Query(query)
	} else {
		placeholder := "?"
		if s.backend == schema.PostgreSQLBackend {
			placeholder = "$1"
		}
		query := fmt.Sprintf("SELECT %s FROM %s WHERE kind = %s ORDER BY id", columns, quotedTableName, placeholder)
		rows, err = s.db.Query(query, string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []schema.AuditRecord
	for rows.Next() {
		record, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}
	return records, nil
}

// scanRecord maps one row back onto an AuditRecord, handling the per-backend
// time representation and the nullable columns.
func (s *SQLStore) scanRecord(rows *sql.Rows) (schema.AuditRecord, error) {
	var record schema.AuditRecord
	var kind string
	var unitID, gate, detail, entitiesJSON, batchID sql.NullString
	var passed sql.NullBool
	var tier, clusters sql.NullInt64

	switch s.backend {
	case schema.SQLiteBackend:
		var recordedAt string
		if err := rows.Scan(&kind, &recordedAt, &unitID, &gate, &passed, &detail, &entitiesJSON, &batchID, &tier, &clusters); err != nil {
			return record, fmt.Errorf("failed to scan audit record: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return record, fmt.Errorf("failed to parse recorded_at: %w", err)
		}
		record.Timestamp = ts
	default: // MySQL and PostgreSQL store as native datetime
		if err := rows.Scan(&kind, &record.Timestamp, &unitID, &gate, &passed, &detail, &entitiesJSON, &batchID, &tier, &clusters); err != nil {
			return record, fmt.Errorf("failed to scan audit record: %w", err)
		}
		record.Timestamp = record.Timestamp.UTC()
	}

	record.Kind = schema.AuditKind(kind)
	record.UnitID = unitID.String
	record.Gate = schema.GateName(gate.String)
	record.Detail = detail.String
	record.BatchID = batchID.String
	if passed.Valid {
		record.Passed = &passed.Bool
	}
	if tier.Valid {
		v := int(tier.Int64)
		record.Tier = &v
	}
	if clusters.Valid {
		v := int(clusters.Int64)
		record.Clusters = &v
	}
	if entitiesJSON.Valid && entitiesJSON.String != "" {
		if err := json.Unmarshal([]byte(entitiesJSON.String), &record.Entities); err != nil {
			return record, fmt.Errorf("failed to parse entities column: %w", err)
		}
	}
	return record, nil
}

// GetStatus returns status information about the audit store.
func (s *SQLStore) GetStatus() (schema.AuditStatus, error) {
	status := schema.AuditStatus{
		Backend:       string(s.backend),
		Location:      s.location(),
		Connected:     s.db != nil,
		RecordsByKind: make(map[string]int),
	}
	if s.db == nil {
		return status, nil
	}

	quotedTableName := quoteTableName(auditTable, s.backend)

	// Get total records
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTableName)
	if err := s.db.QueryRow(countQuery).Scan(&status.TotalRecords); err != nil {
		return status, fmt.Errorf("failed to get total records: %w", err)
	}
	if status.TotalRecords == 0 {
		return status, nil
	}

	// Get counts per kind
	kindQuery := fmt.Sprintf("SELECT kind, COUNT(*) FROM %s GROUP BY kind", quotedTableName)
	rows, err := s.db.Query(kindQuery)
	if err != nil {
		return status, fmt.Errorf("failed to get records by kind: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return status, fmt.Errorf("failed to scan kind count: %w", err)
		}
		status.RecordsByKind[kind] = count
	}
	if err := rows.Err(); err != nil {
		return status, fmt.Errorf("error iterating kind counts: %w", err)
	}

	// Get newest and oldest record times
	rangeQuery := fmt.Sprintf("SELECT MIN(recorded_at), MAX(recorded_at) FROM %s", quotedTableName)
	row := s.db.QueryRow(rangeQuery)
	switch s.backend {
	case schema.SQLiteBackend:
		var oldestStr, lastStr string
		if err := row.Scan(&oldestStr, &lastStr); err != nil {
			return status, fmt.Errorf("failed to get record time range: %w", err)
		}
		oldest, err := time.Parse(time.RFC3339Nano, oldestStr)
		if err != nil {
			return status, fmt.Errorf("failed to parse oldest record time: %w", err)
		}
		last, err := time.Parse(time.RFC3339Nano, lastStr)
		if err != nil {
			return status, fmt.Errorf("failed to parse last record time: %w", err)
		}
		status.OldestRecordTime, status.LastRecordTime = oldest, last
	default: // MySQL and PostgreSQL store as native datetime
		if err := row.Scan(&status.OldestRecordTime, &status.LastRecordTime); err != nil {
			return status, fmt.Errorf("failed to get record time range: %w", err)
		}
	}

	return status, nil
}

// location names where the log lives without leaking credentials: the file
// path for SQLite, the database name elsewhere.
func (s *SQLStore) location() string {
	switch s.backend {
	case schema.SQLiteBackend:
		return s.connStr
	case schema.MySQLBackend:
		cfg, err := mysql.ParseDSN(s.connStr)
		if err != nil {
			return ""
		}
		return cfg.DBName
	case schema.PostgreSQLBackend:
		for _, field := range strings.Fields(s.connStr) {
			if name, ok := strings.CutPrefix(field, "dbname="); ok {
				return name
			}
		}
		return ""
	default:
		return ""
	}
}

// Close closes the underlying connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
