// Package inventory implements the engine's Repository.
//
// Memory is a thread-safe in-process store, used by tests and by the memory
// driver. SQLite persists components, calibrations and committed assignments
// in a single database file through the pure-Go modernc.org/sqlite driver.
//
// Both stores can be filled from a YAML inventory file (LoadFile), which is
// how the seed command and the memory driver get their data.
package inventory
