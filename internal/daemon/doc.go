// Package daemon runs the long-lived captioner server.
//
// It binds the HTTP front door (subtitle uploads, run history, status,
// event stream, metrics) and the optional inbox watcher into one lifecycle
// guarded by a flock so only one instance uses a state directory. On start
// it fails runs a previous process left open and sweeps stale scratch
// files. Pipeline work itself lives in the pipeline package.
package daemon
