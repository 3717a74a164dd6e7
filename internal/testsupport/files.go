package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile writes data to path, creating parent directories. Nil data
// writes a single placeholder byte so the file is never empty.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if data == nil {
		data = []byte{0x42}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteAged writes data to path and backdates its modification time by age.
func WriteAged(t testing.TB, path string, data []byte, age time.Duration) {
	t.Helper()
	WriteFile(t, path, data)
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}
