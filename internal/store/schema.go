package store

// Schema is the carve database layout the engine expects. The extraction
// pipeline owns these tables; the engine only reads them. The DDL lives
// here so fixtures and operators have one authoritative reference.
const Schema = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY,
	path TEXT NOT NULL,
	size INTEGER NOT NULL DEFAULT 0,
	extension TEXT,
	hash TEXT,
	entropy REAL NOT NULL DEFAULT 0,
	is_binary INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS strings_output (
	id INTEGER PRIMARY KEY,
	file_id INTEGER NOT NULL REFERENCES files(id),
	string_content TEXT NOT NULL,
	is_suspicious INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS signatures (
	id INTEGER PRIMARY KEY,
	file_id INTEGER NOT NULL REFERENCES files(id),
	signature_name TEXT NOT NULL,
	signature_hex TEXT
);

CREATE TABLE IF NOT EXISTS xor_analysis (
	id INTEGER PRIMARY KEY,
	file_id INTEGER NOT NULL REFERENCES files(id),
	xor_key TEXT NOT NULL,
	key_type TEXT NOT NULL DEFAULT 'single_byte',
	readable_strings_found INTEGER NOT NULL DEFAULT 0,
	plaintext_score REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bitplane_analysis (
	id INTEGER PRIMARY KEY,
	file_id INTEGER NOT NULL REFERENCES files(id),
	channel TEXT NOT NULL,
	bit_position INTEGER NOT NULL,
	has_patterns INTEGER NOT NULL DEFAULT 0,
	extracted_entropy REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_strings_file ON strings_output(file_id);
CREATE INDEX IF NOT EXISTS idx_signatures_file ON signatures(file_id);
CREATE INDEX IF NOT EXISTS idx_signatures_name ON signatures(signature_name);
CREATE INDEX IF NOT EXISTS idx_xor_file ON xor_analysis(file_id);
CREATE INDEX IF NOT EXISTS idx_bitplane_file ON bitplane_analysis(file_id);
`
