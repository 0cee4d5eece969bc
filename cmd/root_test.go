package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	base := []string{"--env-file", filepath.Join(t.TempDir(), "absent.env")}
	code := run(context.Background(), append(base, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestConfigErrorsExitWithConfigCode(t *testing.T) {
	t.Parallel()

	code, _, stderr := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "stats")
	require.Equal(t, ExitConfig, code)
	require.Contains(t, stderr, "read config")
}

func TestInvalidFlagValueIsConfigError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := filepath.Join(dir, "vanity.yaml")
	writeFile(t, cfg, "results:\n  full_log: "+filepath.Join(dir, "results.csv")+"\n")

	code, _, _ := runCLI(t, "--config", cfg, "check", "--concurrency", "-3")
	require.Equal(t, ExitConfig, code)
}

func TestStatsSummarizesFullLog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	log := filepath.Join(dir, "results.csv")
	writeFile(t, log, strings.Join([]string{
		"username,status,http_status,timestamp,note",
		"alpha,available,404,2026-03-14T09:00:00Z,not_found_status",
		"bravo,taken,200,2026-03-14T09:00:01Z,profile_markers",
		"charlie,error,503,2026-03-14T09:00:02Z,retries_exhausted: http_503",
		"",
	}, "\n"))

	code, stdout, stderr := runCLI(t, "stats", "--log", log)
	require.Equal(t, ExitOK, code, stderr)
	require.Contains(t, stdout, "Distinct candidates")
	require.Contains(t, stdout, "alpha")
	require.NotContains(t, stdout, "bravo")
}

func TestCheckWritesLogsAndSummary(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/id/alpha") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><div class="profile_header">someone</div></html>`))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	words := filepath.Join(dir, "Custom.txt")
	writeFile(t, words, "alpha\nbravo\ncharlie\n")
	full := filepath.Join(dir, "results.csv")
	avail := filepath.Join(dir, "Available.txt")
	cfg := filepath.Join(dir, "vanity.yaml")
	writeFile(t, cfg, fmt.Sprintf(`logging:
  development: false
  level: error
results:
  full_log: %s
  available_log: %s
  fsync: false
probe:
  url_template: %s/id/{}/
progress:
  no_color: true
`, full, avail, srv.URL))

	code, stdout, stderr := runCLI(t, "--config", cfg, "check", "--wordlist", words, "--concurrency", "2")
	require.Equal(t, ExitOK, code, stderr)
	require.Contains(t, stdout, "AVAILABLE: alpha")
	require.Contains(t, stdout, "Checked")

	got, err := os.ReadFile(avail)
	require.NoError(t, err)
	require.Equal(t, "alpha\n", string(got))

	// Everything is already in the full log.
	code, stdout, stderr = runCLI(t, "--config", cfg, "check", "--wordlist", words)
	require.Equal(t, ExitOK, code, stderr)
	require.Contains(t, stdout, "Skipped (resume)")
	require.NotContains(t, stdout, "AVAILABLE")
}

func TestCheckEmptyWordlistIsNoop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	words := filepath.Join(dir, "Custom.txt")
	writeFile(t, words, "\n  \nx\n")
	cfg := filepath.Join(dir, "vanity.yaml")
	writeFile(t, cfg, fmt.Sprintf("logging:\n  level: error\nresults:\n  full_log: %s\n  available_log: %s\n",
		filepath.Join(dir, "results.csv"), filepath.Join(dir, "Available.txt")))

	code, stdout, stderr := runCLI(t, "--config", cfg, "check", "--wordlist", words)
	require.Equal(t, ExitOK, code, stderr)
	require.Contains(t, stdout, "Nothing to check")
	_, err := os.Stat(filepath.Join(dir, "results.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
