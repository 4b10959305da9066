package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/gamedata-etl/internal/config"
	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

func init() {
	color.NoColor = true
}

var upstreamBodies = map[string]string{
	"agents":    `{"status":200,"data":[{"uuid":"a1","displayName":"Fade","isPlayableCharacter":true,"role":{"displayName":"Initiator"},"abilities":[{"slot":"Ultimate","displayName":"Nightfall"}]}]}`,
	"weapons":   `{"status":200,"data":[{"uuid":"w1","displayName":"Classic","category":"EEquippableCategory::Sidearm"}]}`,
	"maps":      `{"status":200,"data":[{"uuid":"m1","displayName":"Bind","callouts":[{}]}]}`,
	"gamemodes": `{"status":200,"data":[{"uuid":"g1","displayName":"Spike Rush"}]}`,
}

// newProject starts a fake upstream and writes a config pointing at it.
// Endpoints listed in failing answer 500.
func newProject(t *testing.T, failing ...string) *GlobalOptions {
	t.Helper()
	broken := make(map[string]bool, len(failing))
	for _, f := range failing {
		broken[f] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		body, ok := upstreamBodies[name]
		if !ok || broken[name] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	for _, k := range []string{config.EnvStorePath, config.EnvLogLevel, config.EnvAPIBaseURL, config.EnvArchiveDSN, config.EnvOTLP} {
		t.Setenv(k, "")
	}

	dir := t.TempDir()
	cfg := fmt.Sprintf(`api:
  base_url: %s
  language: en-US
endpoints:
  - {name: agents, url: agents}
  - {name: weapons, url: weapons}
  - {name: maps, url: maps}
  - {name: gamemodes, url: gamemodes}
retry:
  max_attempts: 1
  base_delay_seconds: 0.01
rate_limit_delay_seconds: 0
store_path: %s
log_level: error
log_file: %s
schedule_interval_hours: 1
`, srv.URL, filepath.Join(dir, "data", "etl.db"), filepath.Join(dir, "logs", "etl.log"))
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return &GlobalOptions{ConfigPath: path}
}

func TestRunOnce_Success(t *testing.T) {
	opts := newProject(t)
	var out bytes.Buffer
	require.NoError(t, runOnce(context.Background(), opts, &out))

	s := out.String()
	assert.Contains(t, s, "success")
	assert.Contains(t, s, "agents=1 abilities=1 weapons=1 weapon_damage=0 maps=1 gamemodes=1")
	assert.Contains(t, s, "rows:    5")
}

func TestRunOnce_FailureIsAnError(t *testing.T) {
	opts := newProject(t, "maps")
	var out bytes.Buffer
	err := runOnce(context.Background(), opts, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FetchExhaustedError")
	assert.Contains(t, out.String(), "failure")

	out.Reset()
	require.NoError(t, runHistory(context.Background(), opts, &out, historyOptions{limit: 5, json: true}))
	var runs []types.RunRecord
	require.NoError(t, json.Unmarshal(out.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunFailure, runs[0].Status)
	assert.Equal(t, "FetchExhaustedError", runs[0].ErrorKind)
}

func TestRunStatus(t *testing.T) {
	opts := newProject(t)
	var out bytes.Buffer
	require.NoError(t, runStatus(context.Background(), opts, &out))
	assert.Contains(t, out.String(), "No runs recorded.")

	require.NoError(t, runOnce(context.Background(), opts, &bytes.Buffer{}))
	out.Reset()
	require.NoError(t, runStatus(context.Background(), opts, &out))
	s := out.String()
	assert.Contains(t, s, "Last Run:")
	assert.Regexp(t, `agents\s+1`, s)
	assert.Regexp(t, `weapon_damage\s+0`, s)
}

func TestRunHistory(t *testing.T) {
	opts := newProject(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, runOnce(context.Background(), opts, &bytes.Buffer{}))
	}

	var out bytes.Buffer
	require.NoError(t, runHistory(context.Background(), opts, &out, historyOptions{limit: 2}))
	s := out.String()
	assert.Contains(t, s, "Recent Runs:")
	assert.Equal(t, 2, strings.Count(s, "success"))

	err := runHistory(context.Background(), opts, &out, historyOptions{limit: 2, status: types.RunFailure})
	assert.Error(t, err, "status filter needs the archive")
}

func TestPrintHistory_EmptyJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printHistory(&out, nil, true))
	assert.Equal(t, "[]\n", out.String())
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "pipeline.yaml")
	var out bytes.Buffer
	require.NoError(t, runInit(path, false, &out))
	assert.Contains(t, out.String(), "Wrote "+path)

	assert.Error(t, runInit(path, false, &out), "existing config is kept")
	require.NoError(t, runInit(path, true, &out))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Endpoints, 4)
}

func TestRunSchedule_UnreachableArchiveStartsNoRun(t *testing.T) {
	opts := newProject(t)
	t.Setenv(config.EnvArchiveDSN, "postgres://etl@127.0.0.1:1/etl?connect_timeout=2")

	err := runSchedule(context.Background(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting to Postgres")

	t.Setenv(config.EnvArchiveDSN, "")
	var out bytes.Buffer
	require.NoError(t, runHistory(context.Background(), opts, &out, historyOptions{limit: 5, json: true}))
	assert.Equal(t, "[]\n", out.String(), "no run is started when the archive cannot be opened")
}

func TestSetup_BadLogLevelOverride(t *testing.T) {
	opts := newProject(t)
	opts.LogLevel = "loud"
	_, err := setup(context.Background(), opts)
	assert.Error(t, err)
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "-", formatCounts(nil))
	assert.Equal(t, "agents=2 maps=0 zeta=1", formatCounts(types.LoadReport{
		"zeta":             1,
		types.EntityMaps:   0,
		types.EntityAgents: 2,
	}))
}
