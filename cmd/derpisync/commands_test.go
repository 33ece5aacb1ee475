package main

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"derpisync/internal/testsupport"
)

func TestHistoryListsRuns(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath, "")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	if _, _, err := runCLI(t, []string{"sync"}, env.configPath, "/pics/100.png\n/pics/x.png\n"); err != nil {
		t.Fatalf("sync: %v", err)
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath, "")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "finished")

	syncOut, _, err := runCLI(t, []string{"sync"}, env.configPath, "/pics/100.png\n")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	var runID string
	for _, line := range strings.Split(syncOut, "\n") {
		if rest, ok := strings.CutPrefix(line, "Run: "); ok {
			runID = strings.TrimSpace(rest)
		}
	}
	if runID == "" {
		t.Fatalf("sync output has no run id: %q", syncOut)
	}

	out, _, err = runCLI(t, []string{"history", "--run", runID[:8]}, env.configPath, "")
	if err != nil {
		t.Fatalf("history --run: %v", err)
	}
	requireContains(t, out, runID)
	requireContains(t, out, "already_done")
}

func TestIndexListStatsAndForget(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteLines(t, env.cfg.Paths.IndexFile, "/pics/b.png", "/pics/a.png", "/other/c.png")

	out, _, err := runCLI(t, []string{"index", "list"}, env.configPath, "")
	if err != nil {
		t.Fatalf("index list: %v", err)
	}
	if got := strings.Fields(out); !slices.Equal(got, []string{"/other/c.png", "/pics/a.png", "/pics/b.png"}) {
		t.Fatalf("index list = %v", got)
	}

	out, _, err = runCLI(t, []string{"index", "list", "--contains", "/pics/"}, env.configPath, "")
	if err != nil {
		t.Fatalf("index list --contains: %v", err)
	}
	if got := strings.Fields(out); len(got) != 2 {
		t.Fatalf("filtered list = %v", got)
	}

	out, _, err = runCLI(t, []string{"index", "stats"}, env.configPath, "")
	if err != nil {
		t.Fatalf("index stats: %v", err)
	}
	requireContains(t, out, env.cfg.Paths.IndexFile)
	requireContains(t, out, "3")

	out, _, err = runCLI(t, []string{"index", "forget", "/pics/a.png", "/pics/missing.png"}, env.configPath, "")
	if err != nil {
		t.Fatalf("index forget: %v", err)
	}
	requireContains(t, out, "Not indexed: /pics/missing.png")
	requireContains(t, out, "Removed 1 of 2 paths")
	if got := testsupport.ReadLines(t, env.cfg.Paths.IndexFile); !slices.Equal(got, []string{"/other/c.png", "/pics/b.png"}) {
		t.Fatalf("index after forget = %v", got)
	}
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(filepath.Dir(env.cfg.Paths.IndexFile), 0o755); err != nil {
		t.Fatalf("create index directory: %v", err)
	}

	out, _, err := runCLI(t, []string{"check", "--network", "--probe-id", "100"}, env.configPath, "")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "[PASS]")
	if strings.Contains(out, "[FAIL]") {
		t.Fatalf("unexpected failure in %q", out)
	}

	env.cfg.TMSU.Binary = filepath.Join(t.TempDir(), "no-tmsu")
	writeTestConfig(t, env.configPath, env.cfg)
	out, _, err = runCLI(t, []string{"check"}, env.configPath, "")
	if !errors.Is(err, errPreflightFailed) {
		t.Fatalf("expected preflight failure, got %v", err)
	}
	requireContains(t, out, "[FAIL]")
	requireContains(t, out, "skipped (use --network)")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Paths.IndexFile)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
	out, _, err = runCLI(t, []string{"config", "validate"}, target, "")
	if err != nil {
		t.Fatalf("validate sample: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestInvalidLogLevelFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"--log-level", "loud", "index", "list"}, env.configPath, ""); err == nil {
		t.Fatal("expected error for invalid --log-level")
	}
}
