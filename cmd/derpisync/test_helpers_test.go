package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"derpisync/internal/config"
	"derpisync/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	tmsuLog    string
	server     *httptest.Server
}

// testImages maps image ids to API response bodies.
var testImages = map[string]string{
	"100": `{"image":{"id":100,"tags":["safe","cute"]}}`,
	"200": `{"image":{"id":200,"duplicate_of":201}}`,
	"201": `{"image":{"id":201,"tags":["pony"]}}`,
	"300": `{"image":{"id":300}}`,
	"400": `{"image":{"id":400,"tags":["safe"]}}`,
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/json/images/")
		body, ok := testImages[id]
		if !ok {
			// Unknown ids would be retried forever; fail loudly instead.
			t.Errorf("unexpected image request %s", r.URL.Path)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(server.URL+"/api/v1/json"))
	tmsuLog := filepath.Join(base, "tmsu.log")
	cfg.TMSU.Binary = testsupport.WriteStub(t, filepath.Join(base, "bin"), "tmsu", fmt.Sprintf(`case "$1" in
  --version|info) exit 0 ;;
  tag)
    case "$2" in *fail*) echo "tmsu: cannot tag $2" >&2; exit 1 ;; esac
    printf '%%s\n' "$*" >> %q
    exit 0 ;;
esac
exit 2`, tmsuLog))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		tmsuLog:    tmsuLog,
		server:     server,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func tmsuCalls(t *testing.T, env *cliTestEnv) []string {
	t.Helper()
	if _, err := os.Stat(env.tmsuLog); os.IsNotExist(err) {
		return nil
	}
	return testsupport.ReadLines(t, env.tmsuLog)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
