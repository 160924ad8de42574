package graph

import (
	"context"
	"fmt"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

// searchLimit bounds results per artifact kind.
const searchLimit = 25

// Search runs a substring search across files, signatures, XOR keys
// and suspicious strings. kind narrows the search to one artifact kind;
// empty searches all of them.
func (b *Builder) Search(ctx context.Context, term, kind string) (models.SearchResults, error) {
	var res models.SearchResults
	if term == "" {
		return res, nil
	}

	all := kind == "" || kind == "all"
	var err error

	if all || kind == "files" {
		res.Files, err = b.store.SearchFiles(ctx, term, searchLimit)
		if err != nil {
			return res, err
		}
	}
	if all || kind == "signatures" {
		res.Signatures, err = b.store.SearchSignatures(ctx, term, searchLimit)
		if err != nil {
			return res, err
		}
	}
	if all || kind == "xor_patterns" {
		res.XorPatterns, err = b.store.SearchXorKeys(ctx, term, searchLimit)
		if err != nil {
			return res, err
		}
	}
	if all || kind == "strings" {
		res.Strings, err = b.store.SearchStrings(ctx, term, searchLimit)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// PathBetween answers "what directly connects these two files": the
// union of shared signatures, XOR keys and suspicious strings. Both
// files must exist; unknown ids surface store.ErrNotFound.
func (b *Builder) PathBetween(ctx context.Context, fileA, fileB int64) ([]models.PathConnection, error) {
	if _, err := b.store.FileByID(ctx, fileA); err != nil {
		return nil, fmt.Errorf("file %d: %w", fileA, err)
	}
	if _, err := b.store.FileByID(ctx, fileB); err != nil {
		return nil, fmt.Errorf("file %d: %w", fileB, err)
	}
	conns, err := b.store.SharedElementsBetween(ctx, fileA, fileB)
	if err != nil {
		return nil, err
	}
	if conns == nil {
		conns = []models.PathConnection{}
	}
	return conns, nil
}
