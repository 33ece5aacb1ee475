package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"derpisync/internal/config"
	"derpisync/internal/deps"
	"derpisync/internal/tmsu"
)

const apiProbeTimeout = 10 * time.Second

// CheckTMSUBinary verifies that the tagging tool resolves and reports the
// executable that will run.
func CheckTMSUBinary(binary string) Result {
	const name = "tmsu binary"

	resolved, err := deps.LookBinary(binary)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// CheckTMSUDatabase runs `tmsu info` against the configured database.
func CheckTMSUDatabase(ctx context.Context, binary, database string) Result {
	const name = "tmsu database"

	client, err := tmsu.New(binary, tmsu.WithDatabase(database))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if err := client.CheckDatabase(ctx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	detail := "reachable"
	if database != "" {
		detail = database
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCreatableDirectory passes when path is an accessible directory, or when
// it is missing but its nearest existing ancestor is writable.
func CheckCreatableDirectory(name, path string) Result {
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return CheckDirectoryAccess(name, path)
	}
	ancestor := filepath.Dir(path)
	for {
		if _, err := os.Stat(ancestor); err == nil {
			break
		}
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			break
		}
		ancestor = parent
	}
	result := CheckDirectoryAccess(name, ancestor)
	if !result.Passed {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s)", path, ancestor)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckAPI issues one image request without retries.
func CheckAPI(ctx context.Context, cfg *config.Config, imageID uint64) Result {
	const name = "Image API"

	base := strings.TrimRight(strings.TrimSpace(cfg.API.BaseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing base url"}
	}

	endpoint := base + "/images/" + strconv.FormatUint(imageID, 10)
	if cfg.API.APIKey != "" {
		endpoint += "?" + url.Values{"key": {cfg.API.APIKey}}.Encode()
	}

	checkCtx, cancel := context.WithTimeout(ctx, apiProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("probe failed (%v)", err)}
	}
	req.Header.Set("Accept", "application/json")
	if cfg.API.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.API.UserAgent)
	}

	client := &http.Client{Timeout: apiProbeTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeProbeError(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", base)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("probe failed (%d)", resp.StatusCode)}
	}
}

func summarizeProbeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "probe timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "probe timed out (API unreachable)"
	}
	return fmt.Sprintf("probe failed (%v)", err)
}
