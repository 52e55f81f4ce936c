// Package store mirrors sealed ledger blocks into an in-memory LevelDB so
// they can be looked up by index, by digest or by the parties they involve.
//
// Nothing is written to disk; the store lives as long as the process.
package store
