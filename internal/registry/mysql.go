package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hyunwoo/slidecheck/internal/models"
)

var tracer = otel.Tracer("slidecheck-registry")

// MySQL backs the registry with a sessions table, for deployments that
// must survive a process restart. The check result is persisted as a
// JSON column.
type MySQL struct {
	db *sql.DB
}

// NewMySQL opens the database and verifies the connection.
func NewMySQL(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &MySQL{db: db}, nil
}

// Close closes the database connection
func (r *MySQL) Close() error {
	return r.db.Close()
}

// Put inserts a session record with tracing
func (r *MySQL) Put(ctx context.Context, session *models.FileSession) error {
	ctx, span := tracer.Start(ctx, "mysql.put_session",
		trace.WithAttributes(
			attribute.String("session_id", session.ID),
			attribute.String("original_name", session.OriginalName),
			attribute.Int64("size_bytes", session.SizeBytes),
		),
	)
	defer span.End()

	report, err := marshalReport(session.CheckResult)
	if err != nil {
		span.RecordError(err)
		return err
	}

	query := `INSERT INTO sessions
			  (id, original_name, storage_key, size_bytes, checksum, uploaded_at, is_derived, parent_id, check_result)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		session.ID, session.OriginalName, session.StorageKey, session.SizeBytes,
		session.Checksum, session.UploadedAt, session.IsDerived,
		nullString(session.ParentID), report)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert session: %w", err)
	}

	span.SetAttributes(attribute.Bool("insert_success", true))
	return nil
}

// Get retrieves a session by id with tracing
func (r *MySQL) Get(ctx context.Context, id string) (*models.FileSession, error) {
	ctx, span := tracer.Start(ctx, "mysql.get_session",
		trace.WithAttributes(
			attribute.String("session_id", id),
		),
	)
	defer span.End()

	session, err := r.getTx(ctx, r.db, id)
	if err != nil {
		if err != ErrNotFound {
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Bool("found", false))
		return nil, err
	}

	span.SetAttributes(attribute.Bool("found", true))
	return session, nil
}

// Update rewrites a session row inside a transaction with tracing
func (r *MySQL) Update(ctx context.Context, id string, mutate Mutator) (*models.FileSession, error) {
	ctx, span := tracer.Start(ctx, "mysql.update_session",
		trace.WithAttributes(
			attribute.String("session_id", id),
		),
	)
	defer span.End()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	session, err := r.getTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	mutate(session)

	report, err := marshalReport(session.CheckResult)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	query := `UPDATE sessions
			  SET original_name = ?, storage_key = ?, size_bytes = ?, checksum = ?,
				  is_derived = ?, parent_id = ?, check_result = ?
			  WHERE id = ?`

	if _, err := tx.ExecContext(ctx, query,
		session.OriginalName, session.StorageKey, session.SizeBytes, session.Checksum,
		session.IsDerived, nullString(session.ParentID), report, id); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	span.SetAttributes(attribute.Bool("update_success", true))
	return session, nil
}

// Delete removes a session row with tracing
func (r *MySQL) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "mysql.delete_session",
		trace.WithAttributes(
			attribute.String("session_id", id),
		),
	)
	defer span.End()

	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	span.SetAttributes(attribute.Bool("delete_success", true))
	return nil
}

// List retrieves all sessions with tracing
func (r *MySQL) List(ctx context.Context) ([]*models.FileSession, error) {
	ctx, span := tracer.Start(ctx, "mysql.list_sessions")
	defer span.End()

	query := `SELECT id, original_name, storage_key, size_bytes, checksum, uploaded_at, is_derived, parent_id, check_result
			  FROM sessions`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.FileSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	span.SetAttributes(attribute.Int("session_count", len(sessions)))
	return sessions, nil
}

// querier covers *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *MySQL) getTx(ctx context.Context, q querier, id string) (*models.FileSession, error) {
	query := `SELECT id, original_name, storage_key, size_bytes, checksum, uploaded_at, is_derived, parent_id, check_result
			  FROM sessions WHERE id = ?`

	return scanSession(q.QueryRowContext(ctx, query, id))
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.FileSession, error) {
	var (
		session  models.FileSession
		parentID sql.NullString
		report   sql.NullString
	)

	err := row.Scan(
		&session.ID,
		&session.OriginalName,
		&session.StorageKey,
		&session.SizeBytes,
		&session.Checksum,
		&session.UploadedAt,
		&session.IsDerived,
		&parentID,
		&report,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	session.ParentID = parentID.String
	if report.Valid && report.String != "" {
		var cr models.CorrectionReport
		if err := json.Unmarshal([]byte(report.String), &cr); err != nil {
			return nil, fmt.Errorf("failed to unmarshal check result: %w", err)
		}
		session.CheckResult = &cr
	}
	return &session, nil
}

func marshalReport(report *models.CorrectionReport) (sql.NullString, error) {
	if report == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal check result: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
