// Package daemonrun assembles the captioner process: it wires the pipeline
// stack from configuration and runs the daemon until a shutdown signal.
package daemonrun
