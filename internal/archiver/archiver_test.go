package archiver

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// mockHistory serves runs in ID order like the local store.
type mockHistory struct {
	runs    []types.RunRecord
	listErr error
}

func (m *mockHistory) ListRuns(_ context.Context, limit int) ([]types.RunRecord, error) {
	out := make([]types.RunRecord, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *mockHistory) ListRunsAfter(_ context.Context, cursor string, limit int) ([]types.RunRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []types.RunRecord
	for _, r := range m.runs {
		if r.RunID > cursor && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

// mockPGStore records calls for testing without a real Postgres.
type mockPGStore struct {
	mu        sync.Mutex
	upserted  map[string]types.RunRecord
	cursors   map[string]string
	failRunID string
}

func newMockPG() *mockPGStore {
	return &mockPGStore{
		upserted: make(map[string]types.RunRecord),
		cursors:  make(map[string]string),
	}
}

func (m *mockPGStore) UpsertRun(_ context.Context, run types.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.RunID == m.failRunID {
		return assert.AnError
	}
	if _, ok := m.upserted[run.RunID]; !ok {
		m.upserted[run.RunID] = run
	}
	return nil
}

func (m *mockPGStore) GetCursor(_ context.Context, source string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[source], nil
}

func (m *mockPGStore) SetCursor(_ context.Context, source, cursorValue string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[source] = cursorValue
	return nil
}

func (m *mockPGStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserted)
}

func makeRuns(n int) []types.RunRecord {
	base := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	runs := make([]types.RunRecord, n)
	for i := range runs {
		runs[i] = types.RunRecord{
			RunID:     fmt.Sprintf("01RUN%05d", i),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Status:    types.RunSuccess,
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].RunID < runs[j].RunID })
	return runs
}

func TestArchiveOnce_IncrementalCursor(t *testing.T) {
	src := &mockHistory{runs: makeRuns(3)}
	pg := newMockPG()
	a := New(src, pg, time.Hour, nil)
	ctx := context.Background()

	n, err := a.ArchiveOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "01RUN00002", pg.cursors[CursorSource])

	src.runs = append(src.runs, makeRuns(5)[3:]...)
	n, err = a.ArchiveOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "only runs after the cursor are copied")
	assert.Equal(t, 5, pg.count())

	n, err = a.ArchiveOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestArchiveOnce_PagesThroughLargeHistory(t *testing.T) {
	src := &mockHistory{runs: makeRuns(runBatchSize + 7)}
	pg := newMockPG()

	n, err := New(src, pg, time.Hour, nil).ArchiveOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runBatchSize+7, n)
	assert.Equal(t, runBatchSize+7, pg.count())
}

func TestArchiveOnce_CursorNotAdvancedOnFailure(t *testing.T) {
	src := &mockHistory{runs: makeRuns(3)}
	pg := newMockPG()
	pg.failRunID = "01RUN00001"

	_, err := New(src, pg, time.Hour, nil).ArchiveOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, pg.cursors[CursorSource], "cursor should not advance on write failure")

	pg.failRunID = ""
	n, err := New(src, pg, time.Hour, nil).ArchiveOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, pg.count(), "rewrites of already-archived runs are harmless")
}

func TestArchiveOnce_SourceError(t *testing.T) {
	src := &mockHistory{listErr: assert.AnError}
	_, err := New(src, newMockPG(), time.Hour, nil).ArchiveOnce(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestArchiver_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &mockHistory{runs: makeRuns(2)}
	pg := newMockPG()
	a := New(src, pg, 10*time.Millisecond, nil)

	a.Start(context.Background())
	assert.Eventually(t, func() bool { return pg.count() == 2 }, time.Second, 5*time.Millisecond)
	a.Stop(context.Background())
}
