package clickhouse

import "fmt"

// Schema returns the DDL for the price and result tables of database db.
func Schema(db, priceTable string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	symbol LowCardinality(String),
	bucket DateTime64(3, 'UTC'),
	open   Float64,
	high   Float64,
	low    Float64,
	close  Float64,
	volume Float64
) ENGINE = ReplacingMergeTree
ORDER BY (symbol, bucket)`, db, priceTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.exhaustion_points (
	run_id           UUID,
	symbol           LowCardinality(String),
	ts               DateTime64(3, 'UTC'),
	close            Float64,
	return           Float64,
	skewness         Float64,
	kurtosis         Float64,
	range            Float64,
	composite_raw    Float64,
	composite_score  Float64,
	trend            Int8,
	age              UInt32,
	multiplier       Float64,
	exhaustion_raw   Float64,
	exhaustion_score Float64,
	level            LowCardinality(String)
) ENGINE = MergeTree
ORDER BY (symbol, run_id, ts)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.regime_history (
	run_id          UUID,
	symbol          LowCardinality(String),
	start           DateTime64(3, 'UTC'),
	end             DateTime64(3, 'UTC'),
	open            UInt8,
	trend           Int8,
	duration_days   Int32,
	points          UInt32,
	mean_signal     Float64,
	above_normal    UInt32,
	lead_days       Nullable(Int32),
	last_exhaustion Nullable(DateTime64(3, 'UTC'))
) ENGINE = MergeTree
ORDER BY (symbol, run_id, start)`, db),
	}
}
