package store

import (
	"context"
	"fmt"
	"time"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

// SearchFiles returns files whose path contains term.
func (s *Store) SearchFiles(ctx context.Context, term string, limit int) ([]models.ForensicFile, error) {
	defer s.record(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.path, f.size, COALESCE(f.extension, ''), COALESCE(f.hash, ''),
		       f.entropy, f.is_binary,
		       (SELECT COUNT(*) FROM strings_output so WHERE so.file_id = f.id AND so.is_suspicious = 1)
		FROM files f WHERE f.path LIKE '%' || ? || '%'
		ORDER BY f.id ASC LIMIT ?`, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	defer rows.Close()

	var out []models.ForensicFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SearchSignatures returns signature matches whose name contains term.
func (s *Store) SearchSignatures(ctx context.Context, term string, limit int) ([]models.FileSignature, error) {
	defer s.record(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, signature_name, COALESCE(signature_hex, '')
		FROM signatures WHERE signature_name LIKE '%' || ? || '%'
		ORDER BY id ASC LIMIT ?`, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search signatures: %w", err)
	}
	defer rows.Close()

	var out []models.FileSignature
	for rows.Next() {
		var sig models.FileSignature
		if err := rows.Scan(&sig.ID, &sig.FileID, &sig.SignatureName, &sig.Pattern); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// SearchXorKeys returns XOR attempts whose key contains term.
func (s *Store) SearchXorKeys(ctx context.Context, term string, limit int) ([]models.XorAttempt, error) {
	defer s.record(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, xor_key, key_type, readable_strings_found, plaintext_score
		FROM xor_analysis WHERE xor_key LIKE '%' || ? || '%'
		ORDER BY plaintext_score DESC LIMIT ?`, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search xor keys: %w", err)
	}
	defer rows.Close()

	return scanXorRows(rows)
}

// SearchStrings returns extracted strings containing term.
func (s *Store) SearchStrings(ctx context.Context, term string, limit int) ([]models.StringOccurrence, error) {
	defer s.record(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, string_content, is_suspicious
		FROM strings_output WHERE string_content LIKE '%' || ? || '%'
		ORDER BY is_suspicious DESC, id ASC LIMIT ?`, term, limit)
	if err != nil {
		return nil, fmt.Errorf("search strings: %w", err)
	}
	defer rows.Close()

	var out []models.StringOccurrence
	for rows.Next() {
		var so models.StringOccurrence
		var suspicious int
		if err := rows.Scan(&so.ID, &so.FileID, &so.Content, &suspicious); err != nil {
			return nil, fmt.Errorf("scan string: %w", err)
		}
		so.IsSuspicious = suspicious != 0
		out = append(out, so)
	}
	return out, rows.Err()
}
