package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/row"
	"github.com/roach88/gridsync/internal/testutil"
)

func person(id, name string) row.Row {
	return row.New(row.ID(id), row.Fields{"name": row.String(name)})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects save notifications.
type recorder struct {
	mu        sync.Mutex
	succeeded int
	failed    []error
}

func (r *recorder) SaveSucceeded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded++
}

func (r *recorder) SaveFailed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.succeeded, len(r.failed)
}

// gateStore blocks calls of one operation until release is closed.
type gateStore struct {
	*remote.MemoryStore
	op      remote.Op
	entered chan struct{}
	release chan struct{}
}

func newGateStore(seed []row.Row, op remote.Op) *gateStore {
	return &gateStore{
		MemoryStore: remote.NewMemoryStore(seed),
		op:          op,
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
}

func (g *gateStore) wait(op remote.Op) {
	if op != g.op {
		return
	}
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
}

func (g *gateStore) ReadAll(ctx context.Context) ([]row.Row, error) {
	g.wait(remote.OpReadAll)
	return g.MemoryStore.ReadAll(ctx)
}

func (g *gateStore) CreateMany(ctx context.Context, fields []row.Fields) ([]row.Row, error) {
	g.wait(remote.OpCreateMany)
	return g.MemoryStore.CreateMany(ctx, fields)
}

func (g *gateStore) UpdateMany(ctx context.Context, rows []row.Row) ([]row.Row, error) {
	g.wait(remote.OpUpdateMany)
	return g.MemoryStore.UpdateMany(ctx, rows)
}

type harness struct {
	engine *Engine
	clock  *testutil.FakeClock
	notes  *recorder
}

// setupEngine builds a loaded engine over store with a fake clock and
// sequential draft ids ("new-1", "new-2", ...).
func setupEngine(t *testing.T, store remote.Store, opts ...Option) harness {
	t.Helper()

	h := harness{clock: testutil.NewFakeClock(), notes: &recorder{}}
	base := []Option{
		WithClock(h.clock),
		WithNotifier(h.notes),
		WithDraftIDs(testutil.NewSequenceGenerator("")),
		WithLogger(discardLogger()),
	}
	h.engine = New(store, append(base, opts...)...)
	require.NoError(t, h.engine.Load(context.Background()))
	return h
}

func ops(calls []remote.Call) []remote.Op {
	out := make([]remote.Op, len(calls))
	for i, c := range calls {
		out[i] = c.Op
	}
	return out
}

// shortCreateStore creates every requested row but reports none of them
// back.
type shortCreateStore struct {
	*remote.MemoryStore
}

func (s shortCreateStore) CreateMany(ctx context.Context, fields []row.Fields) ([]row.Row, error) {
	if _, err := s.MemoryStore.CreateMany(ctx, fields); err != nil {
		return nil, err
	}
	return nil, nil
}
