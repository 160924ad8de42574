// Package storetest builds throwaway carve databases for tests.
package storetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/store"
)

// File seeds one carved file row plus its child artifacts.
type File struct {
	ID         int64
	Path       string
	Size       int64
	Extension  string
	Hash       string
	Entropy    float64
	IsBinary   bool
	Strings    []String
	Signatures []string
	XorKeys    []XorKey
	Bitplanes  []Bitplane
}

// String seeds one extracted string.
type String struct {
	Content    string
	Suspicious bool
}

// XorKey seeds one XOR attempt.
type XorKey struct {
	Key             string
	KeyType         string
	ReadableStrings int
	PlaintextScore  float64
}

// Bitplane seeds one bitplane finding.
type Bitplane struct {
	Channel     string
	BitPosition int
	HasPatterns bool
	Entropy     float64
}

// CreateDB writes a fixture carve database under t.TempDir and returns
// its path. The database is closed before returning so the store can
// reopen it read-only.
func CreateDB(t *testing.T, files []File) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "forensic.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, store.Schema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}

	for _, f := range files {
		isBinary := 0
		if f.IsBinary {
			isBinary = 1
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO files (id, path, size, extension, hash, entropy, is_binary)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.Path, f.Size, f.Extension, f.Hash, f.Entropy, isBinary); err != nil {
			t.Fatalf("insert file %d: %v", f.ID, err)
		}

		for _, s := range f.Strings {
			suspicious := 0
			if s.Suspicious {
				suspicious = 1
			}
			if _, err := db.ExecContext(ctx, `
				INSERT INTO strings_output (file_id, string_content, is_suspicious)
				VALUES (?, ?, ?)`, f.ID, s.Content, suspicious); err != nil {
				t.Fatalf("insert string for file %d: %v", f.ID, err)
			}
		}

		for _, name := range f.Signatures {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO signatures (file_id, signature_name)
				VALUES (?, ?)`, f.ID, name); err != nil {
				t.Fatalf("insert signature for file %d: %v", f.ID, err)
			}
		}

		for _, k := range f.XorKeys {
			keyType := k.KeyType
			if keyType == "" {
				keyType = "single_byte"
			}
			if _, err := db.ExecContext(ctx, `
				INSERT INTO xor_analysis (file_id, xor_key, key_type, readable_strings_found, plaintext_score)
				VALUES (?, ?, ?, ?, ?)`,
				f.ID, k.Key, keyType, k.ReadableStrings, k.PlaintextScore); err != nil {
				t.Fatalf("insert xor attempt for file %d: %v", f.ID, err)
			}
		}

		for _, b := range f.Bitplanes {
			hasPatterns := 0
			if b.HasPatterns {
				hasPatterns = 1
			}
			if _, err := db.ExecContext(ctx, `
				INSERT INTO bitplane_analysis (file_id, channel, bit_position, has_patterns, extracted_entropy)
				VALUES (?, ?, ?, ?, ?)`,
				f.ID, b.Channel, b.BitPosition, hasPatterns, b.Entropy); err != nil {
				t.Fatalf("insert bitplane for file %d: %v", f.ID, err)
			}
		}
	}

	return path
}

// Open creates a fixture database from files and opens a read-only
// Store over it, closed automatically via t.Cleanup.
func Open(t *testing.T, files []File) *store.Store {
	t.Helper()

	path := CreateDB(t, files)
	s, err := store.Open(context.Background(), path, nil, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
