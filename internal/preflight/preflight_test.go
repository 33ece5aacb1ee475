package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"derpisync/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCreatableDirectory_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b")
	result := CheckCreatableDirectory("state", path)
	if !result.Passed || !strings.Contains(result.Detail, "will be created") {
		t.Fatalf("expected creatable pass, got %+v", result)
	}
}

func TestCheckTMSUBinary(t *testing.T) {
	bin := t.TempDir()
	stub := testsupport.WriteStub(t, bin, "tmsu", "exit 0")
	t.Setenv("PATH", bin)

	if result := CheckTMSUBinary("tmsu"); !result.Passed || result.Detail != stub {
		t.Fatalf("expected tmsu resolved to %s, got %+v", stub, result)
	}
	if result := CheckTMSUBinary("not-tmsu"); result.Passed || !strings.Contains(result.Detail, "binary not found") {
		t.Fatalf("expected missing binary to fail, got %+v", result)
	}
	if result := CheckTMSUBinary(""); result.Passed || result.Detail != "command not configured" {
		t.Fatalf("expected unconfigured binary to fail, got %+v", result)
	}
}

func TestCheckTMSUDatabase(t *testing.T) {
	bin := t.TempDir()
	ok := testsupport.WriteStub(t, bin, "tmsu-ok", "exit 0")
	missing := testsupport.WriteStub(t, bin, "tmsu-nodb", `echo "tmsu: no database found" >&2; exit 1`)

	if result := CheckTMSUDatabase(context.Background(), ok, ""); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
	result := CheckTMSUDatabase(context.Background(), missing, "")
	if result.Passed || !strings.Contains(result.Detail, "no database found") {
		t.Fatalf("expected database failure with stderr, got %+v", result)
	}
}

func TestCheckAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "bad" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path != "/api/v1/json/images/0" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"image":{"id":0,"tags":["safe"]}}`))
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(srv.URL+"/api/v1/json"))
	if result := CheckAPI(context.Background(), cfg, 0); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
	if result := CheckAPI(context.Background(), cfg, 99); result.Passed || !strings.Contains(result.Detail, "404") {
		t.Fatalf("expected 404 failure, got %+v", result)
	}
	cfg.API.APIKey = "bad"
	if result := CheckAPI(context.Background(), cfg, 0); result.Passed || !strings.Contains(result.Detail, "auth failed") {
		t.Fatalf("expected auth failure, got %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, Options{}); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_LocalChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.IndexFile), 0o755); err != nil {
		t.Fatalf("create index directory: %v", err)
	}

	results := RunAll(context.Background(), cfg, Options{})
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
		if !r.Passed {
			t.Fatalf("expected %s to pass, got %s", r.Name, r.Detail)
		}
	}
	want := "tmsu binary,tmsu database,Index directory,State directory"
	if strings.Join(names, ",") != want {
		t.Fatalf("checks = %v, want %s", names, want)
	}
	if Failed(results) {
		t.Fatal("expected no failures")
	}
}

func TestRunAll_NetworkAndJournalToggles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithJournalDisabled())
	cfg.TMSU.Binary = filepath.Join(t.TempDir(), "missing-tmsu")

	results := RunAll(context.Background(), cfg, Options{Network: true})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %+v", results)
	}
	if results[3].Name != "Image API" || results[3].Passed {
		t.Fatalf("expected failing API probe against unreachable host, got %+v", results[3])
	}
	if !Failed(results) {
		t.Fatal("expected failures to be reported")
	}
}
