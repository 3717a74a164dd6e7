// Package main hosts the captioner CLI entrypoint and command graph.
//
// The Cobra command tree starts the HTTP server, captions single files from
// the terminal, inspects the run journal, queries a running server, and
// scaffolds configuration. Heavy lifting lives in the internal packages;
// commands here only resolve configuration and render output.
package main
