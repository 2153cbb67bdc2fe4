package sink

// Schema is the SQLite layout of the candle and quality tables.
const Schema = `
CREATE TABLE IF NOT EXISTS enriched_candles (
	symbol TEXT NOT NULL,
	exchange TEXT NOT NULL,
	resolution TEXT NOT NULL,
	interval_start INTEGER NOT NULL,
	interval_end INTEGER NOT NULL,
	open REAL NOT NULL,
	high REAL NOT NULL,
	low REAL NOT NULL,
	close REAL NOT NULL,
	volume REAL NOT NULL,
	trade_count INTEGER NOT NULL,
	vwap REAL NOT NULL,
	sma_5 REAL,
	sma_10 REAL,
	sma_20 REAL,
	ema_12 REAL,
	ema_26 REAL,
	macd REAL,
	macd_signal REAL,
	macd_histogram REAL,
	bb_upper REAL,
	bb_middle REAL,
	bb_lower REAL,
	bb_std REAL,
	rsi REAL,
	volatility REAL,
	price_change REAL,
	price_change_percentage REAL,
	PRIMARY KEY (symbol, exchange, resolution, interval_start)
);

CREATE TABLE IF NOT EXISTS data_quality (
	exchange TEXT NOT NULL,
	symbol TEXT NOT NULL,
	date TEXT NOT NULL,
	total_records INTEGER NOT NULL,
	valid_records INTEGER NOT NULL,
	invalid_records INTEGER NOT NULL,
	duplicate_records INTEGER NOT NULL,
	late_records INTEGER NOT NULL,
	quality_score REAL NOT NULL,
	final INTEGER NOT NULL,
	PRIMARY KEY (exchange, symbol, date)
);
`

// PostgresSchema is the warehouse layout of the same tables.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS enriched_candles (
	symbol TEXT NOT NULL,
	exchange TEXT NOT NULL,
	resolution TEXT NOT NULL,
	interval_start TIMESTAMPTZ NOT NULL,
	interval_end TIMESTAMPTZ NOT NULL,
	open DOUBLE PRECISION NOT NULL,
	high DOUBLE PRECISION NOT NULL,
	low DOUBLE PRECISION NOT NULL,
	close DOUBLE PRECISION NOT NULL,
	volume DOUBLE PRECISION NOT NULL,
	trade_count BIGINT NOT NULL,
	vwap DOUBLE PRECISION NOT NULL,
	sma_5 DOUBLE PRECISION,
	sma_10 DOUBLE PRECISION,
	sma_20 DOUBLE PRECISION,
	ema_12 DOUBLE PRECISION,
	ema_26 DOUBLE PRECISION,
	macd DOUBLE PRECISION,
	macd_signal DOUBLE PRECISION,
	macd_histogram DOUBLE PRECISION,
	bb_upper DOUBLE PRECISION,
	bb_middle DOUBLE PRECISION,
	bb_lower DOUBLE PRECISION,
	bb_std DOUBLE PRECISION,
	rsi DOUBLE PRECISION,
	volatility DOUBLE PRECISION,
	price_change DOUBLE PRECISION,
	price_change_percentage DOUBLE PRECISION,
	PRIMARY KEY (symbol, exchange, resolution, interval_start)
);

CREATE TABLE IF NOT EXISTS data_quality (
	exchange TEXT NOT NULL,
	symbol TEXT NOT NULL,
	date DATE NOT NULL,
	total_records BIGINT NOT NULL,
	valid_records BIGINT NOT NULL,
	invalid_records BIGINT NOT NULL,
	duplicate_records BIGINT NOT NULL,
	late_records BIGINT NOT NULL,
	quality_score DOUBLE PRECISION NOT NULL,
	final BOOLEAN NOT NULL,
	PRIMARY KEY (exchange, symbol, date)
);
`
