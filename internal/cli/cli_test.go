package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wayfind/indoornav/internal/config"
	"github.com/wayfind/indoornav/internal/storage"
	"github.com/wayfind/indoornav/internal/storage/memory"
	sqlitestorage "github.com/wayfind/indoornav/internal/storage/sqlite"
	"github.com/wayfind/indoornav/pkg/core"
	gotel "go.opentelemetry.io/otel"
)

const surfaceJSON = `{
	"name": "corridor",
	"nodes": [
		{"id": 1, "position": [0, 0, 0]},
		{"id": 2, "position": [5, 0, 0]},
		{"id": 3, "position": [10, 0, 0]},
		{"id": 5, "position": [10, 0, 5]}
	],
	"edges": [[1, 2], [2, 3], [3, 5]]
}`

const scenarioJSON = `{
	"name": "lobby walk",
	"player": [0, 0, 0],
	"steps": [
		{"ticks": 1},
		{"marker": {"added": [{"id": "m1", "position": [0, 0, 0]}]}},
		{"ticks": 2},
		{"select": "Stairs"},
		{"move": [5, 0, 0]},
		{"ticks": 1}
	]
}`

// fixture writes a config, surface and scenario into a temp dir.
func fixture(t *testing.T, storageType string, extra ...map[string]any) string {
	t.Helper()
	dir := t.TempDir()

	cfg := map[string]any{
		"logLevel": "debug",
		"logsDir":  filepath.Join(dir, "logs"),
		"site":     "Test Site",
		"surface":  map[string]any{"file": "surface.json", "snapDistance": 1.5},
		"destinations": []map[string]any{
			{"name": "Lobby", "position": []float64{10, 0, 0}},
			{"name": "Stairs", "position": []float64{10, 0, 5}},
		},
		"storage": map[string]any{
			"type": storageType,
			"memory": map[string]any{
				"outputDir":      filepath.Join(dir, "routes"),
				"compressOutput": false,
			},
		},
	}
	for _, e := range extra {
		for k, v := range e {
			cfg[k] = v
		}
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "surface.json"), []byte(surfaceJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenario.json"), []byte(scenarioJSON), 0o644))
	return dir
}

func resetFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

// execute runs the root command with fresh global state.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	resetFlags(rootCmd.PersistentFlags())
	resetFlags(rootCmd.Flags())
	for _, c := range rootCmd.Commands() {
		resetFlags(c.Flags())
	}
	t.Cleanup(viper.Reset)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	out, _, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "indoornav")
	assert.Contains(t, out, "route")
	assert.Contains(t, out, "run")
}

func TestRootCommand_Version(t *testing.T) {
	SetVersion("1.2.3")
	defer SetVersion("dev")

	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.2.3")
}

func TestRootCommand_InvalidCommand(t *testing.T) {
	_, _, err := execute(t, "invalid-command")
	assert.Error(t, err)
}

func TestSetVersion_EmptyKeepsCurrent(t *testing.T) {
	SetVersion("2.0.0")
	SetVersion("")
	assert.Equal(t, "2.0.0", rootCmd.Version)
	SetVersion("dev")
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	out, errOut, err := execute(t, "destinations", "--config-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No destinations configured")
	assert.Contains(t, errOut, "No config file found")
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte("{not json"), 0o644))

	_, _, err := execute(t, "destinations", "--config-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadConfig_LogLevelOverride(t *testing.T) {
	dir := fixture(t, "none")
	_, _, err := execute(t, "destinations", "--config-dir", dir, "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "error", viper.GetString("logLevel"))
}

func TestDestinations_Text(t *testing.T) {
	dir := fixture(t, "none")
	out, _, err := execute(t, "destinations", "--config-dir", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "Lobby (default)")
	assert.Contains(t, out, "Stairs")
	assert.Less(t, strings.Index(out, "Lobby"), strings.Index(out, "Stairs"))
}

func TestDestinations_JSON(t *testing.T) {
	dir := fixture(t, "none")
	out, _, err := execute(t, "destinations", "--config-dir", dir, "--json")
	require.NoError(t, err)

	var dests []core.Destination
	require.NoError(t, json.Unmarshal([]byte(out), &dests))
	assert.Equal(t, []core.Destination{
		{Name: "Lobby", Position: core.Position3D{X: 10}},
		{Name: "Stairs", Position: core.Position3D{X: 10, Z: 5}},
	}, dests)
}

func TestRoute_DefaultDestination(t *testing.T) {
	dir := fixture(t, "none")
	out, _, err := execute(t, "route", "--config-dir", dir, "--json")
	require.NoError(t, err)

	var res routeResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Lobby", res.Destination)
	assert.Equal(t, []core.Position3D{{X: 0}, {X: 5}, {X: 10}}, res.Corners)
	assert.InDelta(t, 10.0, res.Length, 1e-9)
	assert.True(t, strings.HasPrefix(res.WKT, "LINESTRING"), res.WKT)
}

func TestRoute_NamedDestinationText(t *testing.T) {
	dir := fixture(t, "none")
	out, _, err := execute(t, "route", "--config-dir", dir, "--from", "5,0,0", "--to", "Stairs")
	require.NoError(t, err)
	assert.Contains(t, out, "Route to Stairs: 3 corners, 10.00 m")
}

func TestRoute_Errors(t *testing.T) {
	dir := fixture(t, "none")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"off surface", []string{"--marker", "100,0,0"}, "no route"},
		{"unknown destination", []string{"--to", "Roof"}, "not in catalog"},
		{"bad from", []string{"--from", "x"}, "--from"},
		{"bad marker", []string{"--marker", "1"}, "--marker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"route", "--config-dir", dir}, tt.args...)
			_, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRoute_MissingSurface(t *testing.T) {
	dir := fixture(t, "none")
	require.NoError(t, os.Remove(filepath.Join(dir, "surface.json")))

	_, _, err := execute(t, "route", "--config-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading surface definition")
}

func TestRun_RequiresScenario(t *testing.T) {
	dir := fixture(t, "none")
	_, _, err := execute(t, "run", "--config-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario")
}

func TestRun_MemoryExport(t *testing.T) {
	dir := fixture(t, "memory")
	out, _, err := execute(t, "run", "--config-dir", dir, "--scenario", filepath.Join(dir, "scenario.json"), "--json")
	require.NoError(t, err)

	var s runSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "lobby walk", s.Scenario)
	assert.NotEmpty(t, s.Session)
	assert.Equal(t, uint64(4), s.Frames)
	// start, four ticks and the selection change
	assert.Equal(t, 6, s.Routes)
	assert.Equal(t, "Stairs", s.Destination)
	assert.Equal(t, []core.Position3D{{X: 5}, {X: 10}, {X: 10, Z: 5}}, s.Corners)
	assert.InDelta(t, 10.0, s.Length, 1e-9)
	assert.False(t, s.Interrupted)

	require.NotEmpty(t, s.Export)
	assert.FileExists(t, s.Export)
	assert.True(t, strings.HasPrefix(filepath.Base(s.Export), "Test_Site_"), s.Export)

	data, err := os.ReadFile(s.Export)
	require.NoError(t, err)
	var export memory.SessionExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, s.Session, export.SessionID)
	assert.Len(t, export.Routes, 6)
	assert.Len(t, export.Alignments, 1)

	logs, err := filepath.Glob(filepath.Join(dir, "logs", "indoornav.*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRun_TextSummary(t *testing.T) {
	dir := fixture(t, "none")
	out, _, err := execute(t, "run", "--config-dir", dir, "-s", filepath.Join(dir, "scenario.json"))
	require.NoError(t, err)

	assert.Contains(t, out, "Replayed lobby walk")
	assert.Contains(t, out, "frames: 4")
	assert.Contains(t, out, "Stairs, 3 corners, 10.00 m")
	assert.NotContains(t, out, "export")
}

func TestRun_InvalidScenario(t *testing.T) {
	dir := fixture(t, "none")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"steps": [{}]}`), 0o644))

	_, _, err := execute(t, "run", "--config-dir", dir, "-s", bad)
	require.Error(t, err)
}

func TestCreateStorageBackend(t *testing.T) {
	tests := []struct {
		kind    string
		check   func(t *testing.T, b storage.Backend)
		wantErr bool
	}{
		{kind: "", check: func(t *testing.T, b storage.Backend) { assert.IsType(t, storage.Nop{}, b) }},
		{kind: "none", check: func(t *testing.T, b storage.Backend) { assert.IsType(t, storage.Nop{}, b) }},
		{kind: "memory", check: func(t *testing.T, b storage.Backend) { assert.IsType(t, &memory.Backend{}, b) }},
		{kind: "sqlite", check: func(t *testing.T, b storage.Backend) { assert.IsType(t, &sqlitestorage.Backend{}, b) }},
		{kind: "postgres", check: func(t *testing.T, b storage.Backend) { assert.NotNil(t, b) }},
		{kind: "mongo", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			b, err := createStorageBackend(config.StorageConfig{Type: tt.kind}, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, b)
		})
	}
}

func TestRun_SQLiteWithStatusFile(t *testing.T) {
	base := t.TempDir()
	dbPath := filepath.Join(base, "history.db")
	statusPath := filepath.Join(base, "status", "status.json")
	dir := fixture(t, "sqlite", map[string]any{
		"storage": map[string]any{
			"type":   "sqlite",
			"sqlite": map[string]any{"path": dbPath, "dumpInterval": "1h"},
		},
		"monitor": map[string]any{"statusFile": statusPath, "interval": "1h"},
	})

	out, _, err := execute(t, "run", "--config-dir", dir, "-s", filepath.Join(dir, "scenario.json"), "--json")
	require.NoError(t, err)

	var s runSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Empty(t, s.Export)
	assert.FileExists(t, dbPath)

	data, err := os.ReadFile(statusPath)
	require.NoError(t, err)
	var status struct {
		Session     string `json:"session"`
		Frame       uint64 `json:"frame"`
		Routes      int    `json:"routes"`
		Destination string `json:"destination"`
		Corners     int    `json:"corners"`
		Generation  uint64 `json:"surfaceGeneration"`
		Pending     int    `json:"pendingWrites"`
	}
	require.NoError(t, json.Unmarshal(data, &status))
	assert.Equal(t, s.Session, status.Session)
	assert.Equal(t, uint64(4), status.Frame)
	assert.Equal(t, 6, status.Routes)
	assert.Equal(t, "Stairs", status.Destination)
	assert.Equal(t, 3, status.Corners)
	assert.Equal(t, uint64(1), status.Generation)
}

func TestRun_RelativePathsResolveAgainstConfigDir(t *testing.T) {
	dir := fixture(t, "memory", map[string]any{
		"logsDir": "logs",
		"storage": map[string]any{
			"type":   "memory",
			"memory": map[string]any{"outputDir": "routes", "compressOutput": false},
		},
		"monitor": map[string]any{"statusFile": "status/status.json", "interval": "1h"},
	})

	out, _, err := execute(t, "run", "--config-dir", dir, "-s", filepath.Join(dir, "scenario.json"), "--json")
	require.NoError(t, err)

	var s runSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, filepath.Join(dir, "routes"), filepath.Dir(s.Export))
	assert.FileExists(t, filepath.Join(dir, "status", "status.json"))

	logs, err := filepath.Glob(filepath.Join(dir, "logs", "indoornav.*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestResolvePath(t *testing.T) {
	prev := configDir
	t.Cleanup(func() { configDir = prev })
	configDir = filepath.Join("etc", "indoornav")

	assert.Equal(t, "", resolvePath(""))
	assert.Equal(t, filepath.Join("etc", "indoornav", "logs"), resolvePath("logs"))
	abs := filepath.Join(t.TempDir(), "logs")
	assert.Equal(t, abs, resolvePath(abs))
}

func TestRun_OTelExportsLogsAndMetrics(t *testing.T) {
	prev := gotel.GetMeterProvider()
	t.Cleanup(func() { gotel.SetMeterProvider(prev) })

	dir := fixture(t, "none", map[string]any{
		"otel": map[string]any{
			"enabled":     true,
			"metricsFile": "telemetry/metrics.json",
			"logsFile":    "telemetry/logs.json",
		},
	})

	_, _, err := execute(t, "run", "--config-dir", dir, "-s", filepath.Join(dir, "scenario.json"))
	require.NoError(t, err)

	logs, err := os.ReadFile(filepath.Join(dir, "telemetry", "logs.json"))
	require.NoError(t, err)
	assert.Contains(t, string(logs), "Replaying scenario")
	assert.Contains(t, string(logs), "indoornav")

	metrics, err := os.ReadFile(filepath.Join(dir, "telemetry", "metrics.json"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "planner.recompute")

	// text log still written alongside the OTel export
	files, err := filepath.Glob(filepath.Join(dir, "logs", "indoornav.*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	text, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(text), "Replaying scenario")
}
