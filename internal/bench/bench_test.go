package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"go-docbench/internal/config"
	"go-docbench/internal/report"
	"go-docbench/internal/strategy"
	"go-docbench/pkg/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Counts = []int{2, 3}
	cfg.Sizes = []int{0, 16}
	cfg.Trials = 2
	return cfg
}

func TestRunnerSweepsEveryCombination(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	store := docstore.NewMemoryStore(docstore.MemoryOptions{})
	var out bytes.Buffer

	r, err := NewRunner(cfg, store, report.NewTextSink(&out), zaptest.NewLogger(t))
	require.NoError(t, err)

	failed, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, failed)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 12)
	assert.True(t, strings.HasPrefix(lines[0], "sequential, docs=2, size=0, trials=2, "), lines[0])
	assert.True(t, strings.HasPrefix(lines[11], "cooperative, docs=3, size=16, trials=2, "), lines[11])

	// (2+3) docs x 2 sizes x 3 strategies x 2 trials
	assert.Equal(t, int64(60), store.Writes())
	assert.Equal(t, int64(60), store.Deletes())
}

func TestRunnerJSONIncludesLatency(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Counts = []int{5}
	cfg.Sizes = []int{32}
	cfg.Strategies = []string{strategy.NamePooled}
	var out bytes.Buffer

	r, err := NewRunner(cfg, docstore.NewMemoryStore(docstore.MemoryOptions{}), report.NewJSONSink(&out), zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = r.Run(ctx)
	require.NoError(t, err)

	var line struct {
		Strategy string `json:"strategy"`
		Backend  string `json:"backend"`
		Latency  []struct {
			Op    string `json:"op"`
			Count int64  `json:"count"`
		} `json:"latency"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	assert.Equal(t, strategy.NamePooled, line.Strategy)
	assert.Equal(t, config.BackendMemory, line.Backend)
	require.Len(t, line.Latency, 2)
	assert.Equal(t, "delete", line.Latency[0].Op)
	assert.Equal(t, int64(10), line.Latency[0].Count)
	assert.Equal(t, "write", line.Latency[1].Op)
	assert.Equal(t, int64(10), line.Latency[1].Count)
}

func TestRunnerStopsOnFirstFailure(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Counts = []int{3}
	cfg.Sizes = []int{8}
	cfg.Trials = 1
	store := docstore.NewMemoryStore(docstore.MemoryOptions{FailOnWrite: 2})
	var out bytes.Buffer

	r, err := NewRunner(cfg, store, report.NewTextSink(&out), zaptest.NewLogger(t))
	require.NoError(t, err)

	failed, err := r.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, failed)
	assert.True(t, strategy.IsTrialError(err))
	assert.Contains(t, err.Error(), "sequential docs=3 size=8")
	assert.Empty(t, out.String(), "no report line for a failed parameter set")
}

func TestRunnerContinuesOnError(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Counts = []int{3}
	cfg.Sizes = []int{8}
	cfg.Trials = 1
	cfg.ContinueOnError = true
	store := docstore.NewMemoryStore(docstore.MemoryOptions{FailOnWrite: 2})
	var out bytes.Buffer

	r, err := NewRunner(cfg, store, report.NewTextSink(&out), zaptest.NewLogger(t))
	require.NoError(t, err)

	failed, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "pooled, "))
	assert.True(t, strings.HasPrefix(lines[1], "cooperative, "))

	// The aborted sequential run left its first document behind
	n, err := store.Count(ctx, cfg.Collections.Sync)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRunnerUsesSeparateCollections(t *testing.T) {
	cfg := testConfig()
	r, err := NewRunner(cfg, docstore.NewMemoryStore(docstore.MemoryOptions{}), report.NewTextSink(&bytes.Buffer{}), zaptest.NewLogger(t))
	require.NoError(t, err)

	for _, s := range r.strategies {
		want := "benchmark"
		if s.Name() == strategy.NameCooperative {
			want = "benchmark-async"
		}
		assert.Equal(t, want, r.collection(s), s.Name())
	}
}

func TestNewRunnerSetupErrors(t *testing.T) {
	store := docstore.NewMemoryStore(docstore.MemoryOptions{})
	sink := report.NewTextSink(&bytes.Buffer{})

	cfg := testConfig()
	cfg.Fixture = filepath.Join(t.TempDir(), "missing.bin")
	_, err := NewRunner(cfg, store, sink, zaptest.NewLogger(t))
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Trials = 0
	_, err = NewRunner(cfg, store, sink, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "trials")

	assert.Zero(t, store.Writes())
}

func TestOpenStoreMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.FailOnWrite = 1

	store, err := OpenStore(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Write(context.Background(), "benchmark", "a", docstore.Document{"x": 1})
	assert.ErrorIs(t, err, docstore.ErrInjected)
}
