package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// Table names for run history.
const (
	RunsTable   = "trae_analysis_runs"
	IssuesTable = "trae_issues"
)

// RunStoreImpl implements the RunStore interface on a SQL backend.
type RunStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore creates a new RunStore with the specified backend.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (*RunStoreImpl, error) {
	if backend == schema.NoneBackend {
		return &RunStoreImpl{backend: backend}, nil
	}

	db, err := openDB(backend, connStr, contract.GetRunsDBFilePath())
	if err != nil {
		return nil, err
	}

	if err := createRunTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create run tables: %w", err)
	}

	return &RunStoreImpl{db: db, backend: backend}, nil
}

// createRunTables creates the run history tables.
func createRunTables(db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{RunsTable, getCreateRunsQuery(backend)},
		{IssuesTable, getCreateIssuesQuery(backend)},
	}

	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}
	return nil
}

// getCreateRunsQuery returns the CREATE TABLE query for trae_analysis_runs.
func getCreateRunsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(RunsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				run_uuid VARCHAR(36) NOT NULL,
				root_path VARCHAR(1024) NOT NULL,
				start_time DATETIME(6) NOT NULL,
				end_time DATETIME(6),
				run_duration_ms INT,
				files_scanned INT,
				lines_scanned INT,
				score DOUBLE,
				config_params TEXT
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGSERIAL PRIMARY KEY,
				run_uuid TEXT NOT NULL,
				root_path TEXT NOT NULL,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ,
				run_duration_ms INT,
				files_scanned INT,
				lines_scanned INT,
				score DOUBLE PRECISION,
				config_params TEXT
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_uuid TEXT NOT NULL,
				root_path TEXT NOT NULL,
				start_time TEXT NOT NULL,
				end_time TEXT,
				run_duration_ms INTEGER,
				files_scanned INTEGER,
				lines_scanned INTEGER,
				score REAL,
				config_params TEXT
			);
		`, quotedTableName)
	}
}

// getCreateIssuesQuery returns the CREATE TABLE query for trae_issues.
func getCreateIssuesQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(IssuesTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				file_path VARCHAR(1024) NOT NULL,
				line INT NOT NULL,
				category VARCHAR(32) NOT NULL,
				severity VARCHAR(16) NOT NULL,
				detector VARCHAR(64) NOT NULL,
				message TEXT NOT NULL
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				file_path TEXT NOT NULL,
				line INT NOT NULL,
				category TEXT NOT NULL,
				severity TEXT NOT NULL,
				detector TEXT NOT NULL,
				message TEXT NOT NULL
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER NOT NULL,
				file_path TEXT NOT NULL,
				line INTEGER NOT NULL,
				category TEXT NOT NULL,
				severity TEXT NOT NULL,
				detector TEXT NOT NULL,
				message TEXT NOT NULL
			);
		`, quotedTableName)
	}
}

// BeginRun creates a new run record and returns its ID.
func (rs *RunStoreImpl) BeginRun(startTime time.Time, runUUID, root string, configParams map[string]any) (int64, error) {
	if rs.db == nil {
		return 0, nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	quotedTableName := quoteTableName(RunsTable, rs.backend)
	args := []any{runUUID, root, formatTime(startTime, rs.backend), string(configJSON)}

	var runID int64
	switch rs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (run_uuid, root_path, start_time, config_params) VALUES ($1, $2, $3, $4) RETURNING run_id`, quotedTableName)
		err = rs.db.QueryRow(query, args...).Scan(&runID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (run_uuid, root_path, start_time, config_params) VALUES (?, ?, ?, ?)`, quotedTableName)
		var result sql.Result
		result, err = rs.db.Exec(query, args...)
		if err == nil {
			runID, err = result.LastInsertId()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// EndRun updates the run with completion data.
func (rs *RunStoreImpl) EndRun(runID int64, endTime time.Time, filesScanned, linesScanned int, score float64) error {
	if rs.db == nil {
		return nil
	}

	quotedTableName := quoteTableName(RunsTable, rs.backend)
	query := bind(fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = ?`, quotedTableName), rs.backend)
	startTime, err := scanTime(rs.db.QueryRow(query, runID), rs.backend)
	if err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}

	durationMs := endTime.Sub(startTime).Milliseconds()
	update := bind(fmt.Sprintf(`UPDATE %s SET end_time = ?, run_duration_ms = ?, files_scanned = ?, lines_scanned = ?, score = ? WHERE run_id = ?`,
		quotedTableName), rs.backend)
	if _, err := rs.db.Exec(update, formatTime(endTime, rs.backend), durationMs, filesScanned, linesScanned, score, runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// RecordIssues stores the issues of a run in a single transaction.
func (rs *RunStoreImpl) RecordIssues(runID int64, issues []schema.Issue) error {
	if rs.db == nil || len(issues) == 0 {
		return nil
	}

	tx, err := rs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := bind(fmt.Sprintf(`INSERT INTO %s (run_id, file_path, line, category, severity, detector, message) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		quoteTableName(IssuesTable, rs.backend)), rs.backend)
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare issue insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, is := range issues {
		if _, err := stmt.Exec(runID, is.Path, is.Line, string(is.Category), is.Severity.String(), is.Detector, is.Message); err != nil {
			return fmt.Errorf("failed to insert issue %s: %w", is.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit issues: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStatus, error) {
	status := schema.RunStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if rs.db == nil {
		return status, nil
	}

	quotedRuns := quoteTableName(RunsTable, rs.backend)
	if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedRuns)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		row := rs.db.QueryRow(fmt.Sprintf("SELECT run_id FROM %s ORDER BY run_id DESC LIMIT 1", quotedRuns))
		if err := row.Scan(&status.LastRunID); err != nil {
			return status, fmt.Errorf("failed to get last run id: %w", err)
		}
		last, err := scanTime(rs.db.QueryRow(fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id DESC LIMIT 1", quotedRuns)), rs.backend)
		if err != nil {
			return status, fmt.Errorf("failed to get last run time: %w", err)
		}
		status.LastRunTime = last
		oldest, err := scanTime(rs.db.QueryRow(fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", quotedRuns)), rs.backend)
		if err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		status.OldestRunTime = oldest

		filesQuery := fmt.Sprintf("SELECT COALESCE(SUM(files_scanned), 0) FROM %s", quotedRuns)
		if err := rs.db.QueryRow(filesQuery).Scan(&status.TotalFilesScanned); err != nil {
			return status, fmt.Errorf("failed to get total files scanned: %w", err)
		}
	}

	for _, table := range []string{RunsTable, IssuesTable} {
		var count int64
		if err := rs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, rs.backend))).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}

// GetAllRuns retrieves all runs ordered by ID.
func (rs *RunStoreImpl) GetAllRuns() ([]schema.RunRecord, error) {
	if rs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, run_uuid, root_path, start_time, end_time, run_duration_ms,
		COALESCE(files_scanned, 0), COALESCE(lines_scanned, 0), score, config_params
		FROM %s ORDER BY run_id`, quoteTableName(RunsTable, rs.backend))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var record schema.RunRecord
		var start, end sql.NullString
		var startTime time.Time
		var endTime sql.NullTime

		dest := []any{&record.RunID, &record.RunUUID, &record.Root}
		if rs.backend == schema.SQLiteBackend {
			dest = append(dest, &start, &end)
		} else {
			dest = append(dest, &startTime, &endTime)
		}
		dest = append(dest, &record.DurationMs, &record.FilesScanned, &record.LinesScanned, &record.Score, &record.ConfigParams)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if rs.backend == schema.SQLiteBackend {
			if startTime, err = time.Parse(time.RFC3339Nano, start.String); err != nil {
				return nil, fmt.Errorf("failed to parse start_time: %w", err)
			}
			if end.Valid {
				t, err := time.Parse(time.RFC3339Nano, end.String)
				if err != nil {
					return nil, fmt.Errorf("failed to parse end_time: %w", err)
				}
				endTime = sql.NullTime{Time: t, Valid: true}
			}
		}
		record.StartTime = startTime
		if endTime.Valid {
			record.EndTime = &endTime.Time
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// GetAllIssues retrieves all recorded issues ordered by run, path and line.
func (rs *RunStoreImpl) GetAllIssues() ([]schema.IssueRecord, error) {
	if rs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, file_path, line, category, severity, detector, message
		FROM %s ORDER BY run_id, file_path, line, detector`, quoteTableName(IssuesTable, rs.backend))
	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.IssueRecord
	for rows.Next() {
		var record schema.IssueRecord
		if err := rows.Scan(&record.RunID, &record.FilePath, &record.Line, &record.Category,
			&record.Severity, &record.Detector, &record.Message); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating issues: %w", err)
	}
	return results, nil
}

// formatTime converts time to the storage form of the backend.
// SQLite stores RFC3339Nano text, the others take time.Time directly.
func formatTime(t time.Time, backend schema.DatabaseBackend) any {
	if backend == schema.SQLiteBackend {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t
}

// scanTime reads a single time column stored by formatTime.
func scanTime(row *sql.Row, backend schema.DatabaseBackend) (time.Time, error) {
	if backend == schema.SQLiteBackend {
		var s string
		if err := row.Scan(&s); err != nil {
			return time.Time{}, err
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	var t time.Time
	err := row.Scan(&t)
	return t, err
}
