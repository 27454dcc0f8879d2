package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordOutput registers a finished artifact. Re-recording the same
// session/filename pair overwrites the previous row, which keeps retried
// jobs from accumulating duplicates.
func (s *Store) RecordOutput(ctx context.Context, record *OutputRecord) (*OutputRecord, error) {
	if record == nil {
		return nil, errors.New("record is nil")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO output_files (session_id, group_id, filename, path, size_bytes, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(session_id, filename) DO UPDATE
         SET group_id = excluded.group_id, path = excluded.path,
             size_bytes = excluded.size_bytes, created_at = excluded.created_at`,
		record.SessionID,
		record.GroupID,
		record.Filename,
		record.Path,
		record.SizeBytes,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("record output: %w", err)
	}

	// The upsert's last-insert-id is stale when the conflict path ran, so
	// fetch by the unique key.
	stored, err := s.OutputByName(ctx, record.SessionID, record.Filename)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, errors.New("recorded output not found")
	}
	return stored, nil
}

// OutputsBySession lists all artifacts recorded for one session, oldest
// first.
func (s *Store) OutputsBySession(ctx context.Context, sessionID string) ([]*OutputRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+outputColumns+` FROM output_files WHERE session_id = ? ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("outputs by session: %w", err)
	}
	defer rows.Close()

	var records []*OutputRecord
	for rows.Next() {
		record, err := scanOutput(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// OutputByName fetches one artifact by session and filename. Returns nil
// when no such artifact exists.
func (s *Store) OutputByName(ctx context.Context, sessionID, filename string) (*OutputRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+outputColumns+` FROM output_files WHERE session_id = ? AND filename = ?`,
		sessionID,
		filename,
	)
	record, err := scanOutput(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("output by name: %w", err)
	}
	return record, nil
}

const outputColumns = "id, session_id, group_id, filename, path, size_bytes, created_at"

func scanOutput(scanner interface{ Scan(dest ...any) error }) (*OutputRecord, error) {
	var (
		record     OutputRecord
		createdRaw sql.NullString
	)
	if err := scanner.Scan(
		&record.ID,
		&record.SessionID,
		&record.GroupID,
		&record.Filename,
		&record.Path,
		&record.SizeBytes,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	return &record, nil
}
