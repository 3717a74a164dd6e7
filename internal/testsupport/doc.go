// Package testsupport holds helpers shared by package tests: temp-dir
// configurations, stub binaries, and a seeded run journal.
package testsupport
