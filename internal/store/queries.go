package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

// SignatureGroup is a signature name shared by multiple files.
type SignatureGroup struct {
	SignatureName string
	FileIDs       []int64
}

// XorKeyGroup is a successful XOR key+type shared by multiple files.
type XorKeyGroup struct {
	Key     string
	KeyType string
	FileIDs []int64
}

// StringGroup is a suspicious string shared by multiple files.
type StringGroup struct {
	Content     string
	Occurrences int
	FileIDs     []int64
}

// FileByID returns one carved file record.
func (s *Store) FileByID(ctx context.Context, id int64) (models.ForensicFile, error) {
	defer s.record(time.Now())

	row := s.db.QueryRowContext(ctx, `
		SELECT f.id, f.path, f.size, COALESCE(f.extension, ''), COALESCE(f.hash, ''),
		       f.entropy, f.is_binary,
		       (SELECT COUNT(*) FROM strings_output so WHERE so.file_id = f.id AND so.is_suspicious = 1)
		FROM files f WHERE f.id = ?`, id)

	return scanFile(row)
}

// FileByPath returns the carved file record matching path exactly.
func (s *Store) FileByPath(ctx context.Context, path string) (models.ForensicFile, error) {
	defer s.record(time.Now())

	row := s.db.QueryRowContext(ctx, `
		SELECT f.id, f.path, f.size, COALESCE(f.extension, ''), COALESCE(f.hash, ''),
		       f.entropy, f.is_binary,
		       (SELECT COUNT(*) FROM strings_output so WHERE so.file_id = f.id AND so.is_suspicious = 1)
		FROM files f WHERE f.path = ?`, path)

	return scanFile(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (models.ForensicFile, error) {
	var f models.ForensicFile
	var isBinary int
	err := row.Scan(&f.ID, &f.Path, &f.Size, &f.Extension, &f.Hash,
		&f.Entropy, &isBinary, &f.SuspiciousStrings)
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrNotFound
	}
	if err != nil {
		return f, fmt.Errorf("scan file: %w", err)
	}
	f.IsBinary = isBinary != 0
	return f, nil
}

// StringsForFile returns extracted strings for one file, suspicious first.
func (s *Store) StringsForFile(ctx context.Context, fileID int64, limit int) ([]models.StringOccurrence, error) {
	defer s.record(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, string_content, is_suspicious
		FROM strings_output WHERE file_id = ?
		ORDER BY is_suspicious DESC, id ASC LIMIT ?`, fileID, limit)
	if err != nil {
		return nil, fmt.Errorf("strings for file %d: %w", fileID, err)
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

// SignaturesForFile returns signature matches for one file.
func (s *Store) SignaturesForFile(ctx context.Context, fileID int64) ([]models.FileSignature, error) {
	defer s.record(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, signature_name, COALESCE(signature_hex, '')
		FROM signatures WHERE file_id = ? ORDER BY id ASC`, fileID)
	if err != nil {
		return nil, fmt.Errorf("signatures for file %d: %w", fileID, err)
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

// XorAttemptsForFile returns XOR attempts recorded for one file.
func (s *Store) XorAttemptsForFile(ctx context.Context, fileID int64) ([]models.XorAttempt, error) {
	defer s.record(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, xor_key, key_type, readable_strings_found, plaintext_score
		FROM xor_analysis WHERE file_id = ? ORDER BY plaintext_score DESC`, fileID)
	if err != nil {
		return nil, fmt.Errorf("xor attempts for file %d: %w", fileID, err)
	}
	defer rows.Close()

	return scanXorRows(rows)
}

// SuccessfulXorKeys returns distinct keys that produced readable output
// anywhere in the investigation, best score first. The cryptography
// agent seeds its dictionary from these.
func (s *Store) SuccessfulXorKeys(ctx context.Context, limit int) ([]models.XorAttempt, error) {
	defer s.record(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT MIN(id), MIN(file_id), xor_key, key_type,
		       MAX(readable_strings_found), MAX(plaintext_score)
		FROM xor_analysis WHERE readable_strings_found > 0
		GROUP BY xor_key, key_type
		ORDER BY MAX(plaintext_score) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("successful xor keys: %w", err)
	}
	defer rows.Close()

	return scanXorRows(rows)
}

func scanXorRows(rows *sql.Rows) ([]models.XorAttempt, error) {
	var out []models.XorAttempt
	for rows.Next() {
		var xa models.XorAttempt
		if err := rows.Scan(&xa.ID, &xa.FileID, &xa.Key, &xa.KeyType,
			&xa.ReadableStrings, &xa.PlaintextScore); err != nil {
			return nil, fmt.Errorf("scan xor attempt: %w", err)
		}
		out = append(out, xa)
	}
	return out, rows.Err()
}

// BitplaneFindingsForFile returns bitplane extraction results for one file.
func (s *Store) BitplaneFindingsForFile(ctx context.Context, fileID int64) ([]models.BitplaneFinding, error) {
	defer s.record(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, channel, bit_position, has_patterns, extracted_entropy
		FROM bitplane_analysis WHERE file_id = ?
		ORDER BY channel, bit_position`, fileID)
	if err != nil {
		return nil, fmt.Errorf("bitplane findings for file %d: %w", fileID, err)
	}
	defer rows.Close()

	var out []models.BitplaneFinding
	for rows.Next() {
		var bf models.BitplaneFinding
		var hasPatterns int
		if err := rows.Scan(&bf.ID, &bf.FileID, &bf.Channel, &bf.BitPosition,
			&hasPatterns, &bf.Entropy); err != nil {
			return nil, fmt.Errorf("scan bitplane finding: %w", err)
		}
		bf.HasPatterns = hasPatterns != 0
		out = append(out, bf)
	}
	return out, rows.Err()
}

// CandidateFiles selects files worth showing in the correlation graph:
// high entropy, or at least one suspicious string, successful XOR
// attempt, bitplane pattern, or signature match. Ordered by entropy
// descending, then suspicious-string count descending, then id ascending
// so repeated builds are deterministic.
func (s *Store) CandidateFiles(ctx context.Context, minEntropy float64, limit int) ([]models.ForensicFile, error) {
	defer s.record(time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.path, f.size, COALESCE(f.extension, ''), COALESCE(f.hash, ''),
		       f.entropy, f.is_binary,
		       (SELECT COUNT(*) FROM strings_output so WHERE so.file_id = f.id AND so.is_suspicious = 1) AS susp
		FROM files f
		WHERE f.entropy >= ?
		   OR EXISTS (SELECT 1 FROM strings_output so WHERE so.file_id = f.id AND so.is_suspicious = 1)
		   OR EXISTS (SELECT 1 FROM xor_analysis xa WHERE xa.file_id = f.id AND xa.readable_strings_found > 0)
		   OR EXISTS (SELECT 1 FROM bitplane_analysis ba WHERE ba.file_id = f.id AND ba.has_patterns = 1)
		   OR EXISTS (SELECT 1 FROM signatures sg WHERE sg.file_id = f.id)
		ORDER BY f.entropy DESC, susp DESC, f.id ASC
		LIMIT ?`, minEntropy, limit)
	if err != nil {
		return nil, fmt.Errorf("candidate files: %w", err)
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

// SharedSignatures returns signature names appearing on more than one of
// the given files, with their member file ids.
func (s *Store) SharedSignatures(ctx context.Context, fileIDs []int64) ([]SignatureGroup, error) {
	defer s.record(time.Now())

	if len(fileIDs) < 2 {
		return nil, nil
	}

	query := `
		SELECT signature_name, file_id FROM signatures
		WHERE file_id IN (` + placeholders(len(fileIDs)) + `)
		GROUP BY signature_name, file_id
		ORDER BY signature_name, file_id`

	rows, err := s.db.QueryContext(ctx, query, int64Args(fileIDs)...)
	if err != nil {
		return nil, fmt.Errorf("shared signatures: %w", err)
	}
	defer rows.Close()

	members := map[string][]int64{}
	var order []string
	for rows.Next() {
		var name string
		var fileID int64
		if err := rows.Scan(&name, &fileID); err != nil {
			return nil, fmt.Errorf("scan shared signature: %w", err)
		}
		if _, seen := members[name]; !seen {
			order = append(order, name)
		}
		members[name] = append(members[name], fileID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []SignatureGroup
	for _, name := range order {
		if ids := members[name]; len(ids) > 1 {
			out = append(out, SignatureGroup{SignatureName: name, FileIDs: ids})
		}
	}
	return out, nil
}

// SharedXorKeys returns successful key+type combinations appearing on
// more than one of the given files.
func (s *Store) SharedXorKeys(ctx context.Context, fileIDs []int64) ([]XorKeyGroup, error) {
	defer s.record(time.Now())

	if len(fileIDs) < 2 {
		return nil, nil
	}

	query := `
		SELECT xor_key, key_type, file_id FROM xor_analysis
		WHERE readable_strings_found > 0
		  AND file_id IN (` + placeholders(len(fileIDs)) + `)
		GROUP BY xor_key, key_type, file_id
		ORDER BY xor_key, key_type, file_id`

	rows, err := s.db.QueryContext(ctx, query, int64Args(fileIDs)...)
	if err != nil {
		return nil, fmt.Errorf("shared xor keys: %w", err)
	}
	defer rows.Close()

	type keyID struct{ key, keyType string }
	members := map[keyID][]int64{}
	var order []keyID
	for rows.Next() {
		var k keyID
		var fileID int64
		if err := rows.Scan(&k.key, &k.keyType, &fileID); err != nil {
			return nil, fmt.Errorf("scan shared xor key: %w", err)
		}
		if _, seen := members[k]; !seen {
			order = append(order, k)
		}
		members[k] = append(members[k], fileID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []XorKeyGroup
	for _, k := range order {
		if ids := members[k]; len(ids) > 1 {
			out = append(out, XorKeyGroup{Key: k.key, KeyType: k.keyType, FileIDs: ids})
		}
	}
	return out, nil
}

// TopSharedSuspiciousStrings returns the n most frequent suspicious
// strings appearing in at least two of the given files.
func (s *Store) TopSharedSuspiciousStrings(ctx context.Context, fileIDs []int64, n int) ([]StringGroup, error) {
	defer s.record(time.Now())

	if len(fileIDs) < 2 {
		return nil, nil
	}

	query := `
		SELECT string_content, COUNT(*) AS occurrences, COUNT(DISTINCT file_id) AS file_count
		FROM strings_output
		WHERE is_suspicious = 1
		  AND file_id IN (` + placeholders(len(fileIDs)) + `)
		GROUP BY string_content
		HAVING COUNT(DISTINCT file_id) > 1
		ORDER BY occurrences DESC, string_content ASC
		LIMIT ?`

	args := append(int64Args(fileIDs), n)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("top shared strings: %w", err)
	}
	defer rows.Close()

	var out []StringGroup
	for rows.Next() {
		var g StringGroup
		var fileCount int
		if err := rows.Scan(&g.Content, &g.Occurrences, &fileCount); err != nil {
			return nil, fmt.Errorf("scan string group: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Second pass: member file ids per string, bounded by the same set.
	for i := range out {
		memberQuery := `
			SELECT DISTINCT file_id FROM strings_output
			WHERE is_suspicious = 1 AND string_content = ?
			  AND file_id IN (` + placeholders(len(fileIDs)) + `)
			ORDER BY file_id`
		args := append([]any{out[i].Content}, int64Args(fileIDs)...)
		memberRows, err := s.db.QueryContext(ctx, memberQuery, args...)
		if err != nil {
			return nil, fmt.Errorf("string group members: %w", err)
		}
		for memberRows.Next() {
			var id int64
			if err := memberRows.Scan(&id); err != nil {
				memberRows.Close()
				return nil, fmt.Errorf("scan string member: %w", err)
			}
			out[i].FileIDs = append(out[i].FileIDs, id)
		}
		if err := memberRows.Err(); err != nil {
			memberRows.Close()
			return nil, err
		}
		memberRows.Close()
	}

	return out, nil
}

// SharedElementsBetween answers "what directly connects these two files":
// shared signature names, successful XOR keys, and suspicious strings.
func (s *Store) SharedElementsBetween(ctx context.Context, fileA, fileB int64) ([]models.PathConnection, error) {
	defer s.record(time.Now())

	var out []models.PathConnection

	collect := func(query, connType string) error {
		rows, err := s.db.QueryContext(ctx, query, fileA, fileB)
		if err != nil {
			return fmt.Errorf("%s between %d and %d: %w", connType, fileA, fileB, err)
		}
		defer rows.Close()
		for rows.Next() {
			var elem string
			if err := rows.Scan(&elem); err != nil {
				return fmt.Errorf("scan %s: %w", connType, err)
			}
			out = append(out, models.PathConnection{ConnectionType: connType, SharedElement: elem})
		}
		return rows.Err()
	}

	if err := collect(`
		SELECT DISTINCT a.signature_name FROM signatures a
		JOIN signatures b ON a.signature_name = b.signature_name
		WHERE a.file_id = ? AND b.file_id = ?
		ORDER BY a.signature_name`, "shared_signature"); err != nil {
		return nil, err
	}

	if err := collect(`
		SELECT DISTINCT a.xor_key FROM xor_analysis a
		JOIN xor_analysis b ON a.xor_key = b.xor_key AND a.key_type = b.key_type
		WHERE a.file_id = ? AND b.file_id = ?
		  AND a.readable_strings_found > 0 AND b.readable_strings_found > 0
		ORDER BY a.xor_key`, "shared_xor_key"); err != nil {
		return nil, err
	}

	if err := collect(`
		SELECT DISTINCT a.string_content FROM strings_output a
		JOIN strings_output b ON a.string_content = b.string_content
		WHERE a.file_id = ? AND b.file_id = ?
		  AND a.is_suspicious = 1 AND b.is_suspicious = 1
		ORDER BY a.string_content`, "shared_string"); err != nil {
		return nil, err
	}

	return out, nil
}

// FileActivity flags which analysis pipelines produced hits for a file.
type FileActivity struct {
	XorSuccess    bool
	StegoPatterns bool
}

// ActivityForFiles returns per-file activity flags for the given ids.
// Files without hits are absent from the map.
func (s *Store) ActivityForFiles(ctx context.Context, fileIDs []int64) (map[int64]FileActivity, error) {
	defer s.record(time.Now())

	out := make(map[int64]FileActivity, len(fileIDs))
	if len(fileIDs) == 0 {
		return out, nil
	}

	mark := func(query string, set func(a *FileActivity)) error {
		rows, err := s.db.QueryContext(ctx, query, int64Args(fileIDs)...)
		if err != nil {
			return fmt.Errorf("file activity: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan file activity: %w", err)
			}
			a := out[id]
			set(&a)
			out[id] = a
		}
		return rows.Err()
	}

	if err := mark(`
		SELECT DISTINCT file_id FROM xor_analysis
		WHERE readable_strings_found > 0
		  AND file_id IN (`+placeholders(len(fileIDs))+`)`,
		func(a *FileActivity) { a.XorSuccess = true }); err != nil {
		return nil, err
	}
	if err := mark(`
		SELECT DISTINCT file_id FROM bitplane_analysis
		WHERE has_patterns = 1
		  AND file_id IN (`+placeholders(len(fileIDs))+`)`,
		func(a *FileActivity) { a.StegoPatterns = true }); err != nil {
		return nil, err
	}
	return out, nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	buf := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '?')
	}
	return string(buf)
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
