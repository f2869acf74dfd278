// Package database stores the crawler's run history in SQLite.
//
// Each run of a seed is kept with its depth, timing, counters and full
// report, plus one row per page outcome. The history lets a new run be
// compared with the previous run of the same seed: pages that appeared,
// disappeared, broke or recovered.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
//  1. The database is a single file in the XDG data directory
//  2. The CGO-free driver keeps cross-compilation simple
//  3. WAL mode lets `history` read while a crawl writes
package database
