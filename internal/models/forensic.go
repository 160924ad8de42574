// Package models defines data structures for the Ark forensic analysis engine.
package models

// ForensicFile is one file carved from the investigation's disk image.
// Rows are written by the extraction pipeline and are immutable here.
type ForensicFile struct {
	ID                int64   `json:"id"`
	Path              string  `json:"path"`
	Size              int64   `json:"size"`
	Extension         string  `json:"extension,omitempty"`
	Hash              string  `json:"hash,omitempty"`
	Entropy           float64 `json:"entropy"`
	IsBinary          bool    `json:"is_binary"`
	SuspiciousStrings int     `json:"suspicious_strings,omitempty"`
}

// StringOccurrence is one string extracted from a carved file.
type StringOccurrence struct {
	ID           int64  `json:"id"`
	FileID       int64  `json:"file_id"`
	Content      string `json:"content"`
	IsSuspicious bool   `json:"is_suspicious"`
}

// FileSignature is a byte-signature match inside a carved file.
type FileSignature struct {
	ID            int64  `json:"id"`
	FileID        int64  `json:"file_id"`
	SignatureName string `json:"signature_name"`
	Pattern       string `json:"pattern,omitempty"`
}

// XorAttempt records one XOR decryption attempt against a carved file.
// Attempts with ReadableStrings > 0 are considered successful.
type XorAttempt struct {
	ID              int64   `json:"id"`
	FileID          int64   `json:"file_id"`
	Key             string  `json:"key"`
	KeyType         string  `json:"key_type"`
	ReadableStrings int     `json:"readable_strings"`
	PlaintextScore  float64 `json:"plaintext_score"`
}

// Successful reports whether the attempt produced any readable output.
func (x XorAttempt) Successful() bool {
	return x.ReadableStrings > 0
}

// BitplaneFinding is one LSB/bitplane extraction result for a carved file.
type BitplaneFinding struct {
	ID          int64   `json:"id"`
	FileID      int64   `json:"file_id"`
	Channel     string  `json:"channel"`
	BitPosition int     `json:"bit_position"`
	HasPatterns bool    `json:"has_patterns"`
	Entropy     float64 `json:"entropy"`
}
