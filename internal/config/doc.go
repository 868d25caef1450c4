// Package config loads lotwatch configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/lotwatch/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing or zero, use defaults
//
// Files ending in .yaml or .yml are parsed as YAML; everything else as TOML.
// ${VAR} references in the file are expanded from the environment before
// parsing.
//
// # Environment
//
// Before reading the file, Load loads a .env file from the working directory
// and from the config file's directory (process variables are never
// overwritten). These variables then override file values:
//
//   - LOTWATCH_INDEXER_URL: indexer base URL
//   - LOTWATCH_NATS_URL: NATS server for cross-process signals
//   - LOTWATCH_METRICS_ADDR: listen address for /metrics
//
// # TOML Format
//
//	indexer_url = "http://127.0.0.1:4350"
//	page_limit = 100
//	poll_ms = 20000
//
//	[sync]
//	foreground_floor_ms = 12000
//	background_floor_ms = 90000
//	forced_gap_ms = 2500
//	ambient_gap_ms = 20000
//	backoff_base_ms = 5000
//	backoff_max_ms = 60000
//	backoff_max_step = 3
//	rate_limit_base_ms = 10000
//	rate_limit_max_ms = 300000
//	rate_limit_max_step = 6
//	seen_keys_limit = 500
//
//	[nats]
//	url = "nats://127.0.0.1:4222"
//	subject_prefix = "lotwatch"
//
//	[metrics]
//	listen = "127.0.0.1:9464"
//
// Every field is optional. Zero sync values keep the store's built-in
// timing; Config.Timing converts the section for syncstore.WithTiming.
package config
