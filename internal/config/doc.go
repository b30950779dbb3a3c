// Package config loads and watches the pairing engine configuration file
// (config.yaml).
//
// Top-level types:
//   - Config{Matching, Inventory, Server, Alerts}: full config tree parsed from YAML
//   - MatchingConfig: target_ratio, tolerance, max_pool_size, exclude_batches,
//     outlier, calibration, envelope
//   - InventoryConfig: driver (sqlite|memory), path, seed_file
//   - ServerConfig: http_port, history_ttl and auth for the serve command
//   - AlertsConfig: rules evaluated against every run, plus webhook targets
//
// Load(path) reads the YAML file, applies defaults (ratio 13 ± 0.5, z 3.5,
// 3000-point grid over [0, 200], cubic fit), then validates. Validation
// failures are *types.ConfigError values wrapped with the "config:" prefix.
//
// Watch(ctx, path, onChange) uses fsnotify on the file's directory, waits for
// a burst of events to settle, and calls onChange with the newly parsed
// Config when the content actually changed. Watching the directory keeps
// atomic-save editors (write temp, rename over) tracked.
package config
