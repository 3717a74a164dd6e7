// Package runlog keeps a SQLite journal of subtitle runs: who started them,
// the stage reached, and the outcome. It records metadata only.
//
// The daemon opens one Store at startup, fails any runs a previous process
// left running, and serves the journal through /api/runs.
package runlog
