package store

// Schema is the SQLite layout of the state store.
const Schema = `
CREATE TABLE IF NOT EXISTS indicator_heads (
	series TEXT PRIMARY KEY,
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS indicator_checkpoints (
	series TEXT NOT NULL,
	interval_start INTEGER NOT NULL,
	candle TEXT NOT NULL,
	state TEXT NOT NULL,
	PRIMARY KEY (series, interval_start)
);

CREATE TABLE IF NOT EXISTS partition_snapshots (
	partition_key TEXT PRIMARY KEY,
	snapshot BLOB NOT NULL
);
`
