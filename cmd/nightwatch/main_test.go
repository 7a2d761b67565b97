package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortechron/nightwatch-testing/internal/config"
	"github.com/vortechron/nightwatch-testing/internal/platform/logger"
)

// writeConfig writes a config file pointing at a fresh sqlite database and
// returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`server:
  log_level: error
database:
  driver: sqlite
  url: file:%s
cache:
  driver: memory
mail:
  driver: log
bulk:
  max_count: 4
%s`, filepath.Join(dir, "nightwatch.db"), extra)

	path := filepath.Join(dir, "nightwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := RootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	var names []string
	for _, c := range RootCmd().Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "test", "bulk", "migrate", "seed-user"} {
		assert.Contains(t, names, want)
	}
}

func TestMigrateAndSeedUser(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "migrate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 2 migration(s), now at version 2")

	out, err = execute(t, "migrate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 0 migration(s)")

	out, err = execute(t, "seed-user", "--config", path, "--email", "seeded@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user 1 <seeded@example.com>")

	out, err = execute(t, "seed-user", "--config", path, "--email", "seeded@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "User 1 <seeded@example.com> already exists")
}

func TestBulkCmd(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "bulk", "queries", "3", "--config", path, "--migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated 3 event(s)")

	out, err = execute(t, "bulk", "cache", "50", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Generating 4 cache event(s)")
	assert.Contains(t, out, "Generated 4 event(s)")
}

func TestBulkCmd_UnknownType(t *testing.T) {
	_, err := execute(t, "bulk", "users", "3", "--config", writeConfig(t, ""))
	assert.ErrorContains(t, err, `unknown type "users"`)
}

func TestBulkCmd_RequiresArgs(t *testing.T) {
	_, err := execute(t, "bulk", "queries")
	assert.Error(t, err)
}

func TestTestCmd(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "test", "--config", path, "--migrate",
		"--skip-requests", "--skip-internal-requests", "--skip-mail")
	require.NoError(t, err)

	assert.Contains(t, out, "== Database Queries ==")
	assert.Contains(t, out, "[OK  ] Fast query (simple count)")
	assert.Contains(t, out, "== Cache Operations ==")
	assert.Contains(t, out, "[SKIP] Mail: skip-mail")
	assert.Contains(t, out, "[FAIL] Send notification: no user found")
	assert.Contains(t, out, "======= SUMMARY =======")
}

func TestNewApplication_InvalidMailDriver(t *testing.T) {
	cfg, err := config.LoadFrom(writeConfig(t, ""))
	require.NoError(t, err)
	cfg.Mail.Driver = "pigeon"

	_, err = newApplication(context.Background(), cfg, logger.Discard())
	assert.ErrorContains(t, err, "unsupported mail driver")
}

func TestServe_HealthAndShutdown(t *testing.T) {
	cfg, err := config.LoadFrom(writeConfig(t, ""))
	require.NoError(t, err)

	app, err := newApplication(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	router, err := app.setupRouter()
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.startHTTPServer(ctx, ln, router) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.True(t, strings.Contains(string(body), "nightwatch_http_request_duration_seconds"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestSetSkipFlags(t *testing.T) {
	cmd := bulkCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--skip-mail", "--skip-failing-job"}))

	opts := setSkipFlags(cmd.Flags(), bulkSkipFlags)

	assert.True(t, opts.Has(flagSkipMail))
	assert.True(t, opts.Has(flagSkipFailingJob))
	assert.False(t, opts.Has(flagSkipException))
	assert.Len(t, opts, 2)
}
