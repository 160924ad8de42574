package store

import (
	"context"
	"fmt"
	"time"
)

// FilesWithSignature returns ids of other files carrying the signature.
func (s *Store) FilesWithSignature(ctx context.Context, name string, excludeFileID int64, limit int) ([]int64, error) {
	defer s.record(time.Now())

	return s.fileIDQuery(ctx, `
		SELECT DISTINCT file_id FROM signatures
		WHERE signature_name = ? AND file_id != ?
		ORDER BY file_id LIMIT ?`, name, excludeFileID, limit)
}

// FilesWithXorKey returns ids of other files where the same key
// produced readable output.
func (s *Store) FilesWithXorKey(ctx context.Context, key string, excludeFileID int64, limit int) ([]int64, error) {
	defer s.record(time.Now())

	return s.fileIDQuery(ctx, `
		SELECT DISTINCT file_id FROM xor_analysis
		WHERE xor_key = ? AND readable_strings_found > 0 AND file_id != ?
		ORDER BY file_id LIMIT ?`, key, excludeFileID, limit)
}

// FilesWithSuspiciousString returns ids of other files containing the
// same suspicious string.
func (s *Store) FilesWithSuspiciousString(ctx context.Context, content string, excludeFileID int64, limit int) ([]int64, error) {
	defer s.record(time.Now())

	return s.fileIDQuery(ctx, `
		SELECT DISTINCT file_id FROM strings_output
		WHERE string_content = ? AND is_suspicious = 1 AND file_id != ?
		ORDER BY file_id LIMIT ?`, content, excludeFileID, limit)
}

func (s *Store) fileIDQuery(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("file id query: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
