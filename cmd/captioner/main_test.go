package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"captioner/internal/api"
	"captioner/internal/config"
	"captioner/internal/daemon"
	"captioner/internal/pipeline"
	"captioner/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestConfigInitValidateAndShow(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIToken("super-secret"))

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, redacted)
	if strings.Contains(out, "super-secret") {
		t.Fatalf("config show leaked the api token:\n%s", out)
	}

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestRunsListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenStore(t, env.cfg)
	testsupport.SeedRun(t, store, "0123456789abcdef", "lecture.mp4", "https://cdn.test/lecture.mp4", "")
	testsupport.SeedRun(t, store, "fedcba9876543210", "broken.mov", "", pipeline.StageAudioExtraction)

	out, _, err := runCLI(t, []string{"runs"}, env.configPath)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "01234567")
	requireContains(t, out, "lecture.mp4")
	requireContains(t, out, pipeline.StageAudioExtraction)

	out, _, err = runCLI(t, []string{"runs", "--status", "failed", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("runs --json: %v", err)
	}
	var list api.RunListResponse
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode runs json: %v", err)
	}
	if len(list.Runs) != 1 || list.Runs[0].Filename != "broken.mov" {
		t.Fatalf("unexpected filtered runs %+v", list.Runs)
	}

	out, _, err = runCLI(t, []string{"runs", "show", "0123456789abcdef"}, env.configPath)
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	requireContains(t, out, "https://cdn.test/lecture.mp4")

	if _, _, err := runCLI(t, []string{"runs", "show", "missing"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestBurnNoUploadRequiresKeepOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	video := filepath.Join(testsupport.BaseDir(env.cfg), "clip.mp4")
	testsupport.WriteFile(t, video, []byte("not really a video"))

	_, _, err := runCLI(t, []string{"burn", video, "--no-upload"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "--keep-output") {
		t.Fatalf("expected keep-output error, got %v", err)
	}
}

func TestStatusQueriesServer(t *testing.T) {
	env := setupCLITestEnv(t)
	d, err := daemon.New(daemon.Options{Config: env.cfg, Runner: nopRunner{}})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	server := httptest.NewServer(d.Handler())
	defer server.Close()

	out, _, err := runCLI(t, []string{"status", "--url", server.URL}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Store:    blob")
	requireContains(t, out, "Dependency")

	out, _, err = runCLI(t, []string{"status", "--url", server.URL, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.WorkDir != env.cfg.Paths.WorkDir {
		t.Fatalf("unexpected work dir %q", status.WorkDir)
	}
}

func TestCheckReportsDirectoriesAndTools(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	out, _, _ := runCLI(t, []string{"check"}, env.configPath)
	requireContains(t, out, "Work directory")
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "Credential checks skipped")
}

func TestDialableAddress(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:7488": "127.0.0.1:7488",
		"0.0.0.0:7488":   "127.0.0.1:7488",
		":9000":          "127.0.0.1:9000",
		"[::]:80":        "127.0.0.1:80",
	}
	for input, want := range cases {
		if got := dialableAddress(input); got != want {
			t.Fatalf("dialableAddress(%q) = %q, want %q", input, got, want)
		}
	}
}
