package httpstore_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/engine"
	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/remote/httpstore"
	"github.com/roach88/gridsync/internal/row"
	"github.com/roach88/gridsync/internal/server"
	"github.com/roach88/gridsync/internal/testutil"
)

func karyawan(id, name string) row.Row {
	return row.New(row.ID(id), row.Fields{"karyawanName": row.String(name)})
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupClient starts a batch API server over a memory store and returns a
// client pointed at it.
func setupClient(t *testing.T, serverOpts []server.Option, clientOpts ...httpstore.Option) (*httpstore.Client, *remote.MemoryStore) {
	t.Helper()
	store := remote.NewMemoryStore([]row.Row{karyawan("1", "Ani"), karyawan("2", "Budi")})

	sopts := append([]server.Option{server.WithIDField("karyawanId"), server.WithLogger(quiet())}, serverOpts...)
	ts := httptest.NewServer(server.New("karyawan", store, sopts...).Handler())
	t.Cleanup(ts.Close)

	copts := append([]httpstore.Option{
		httpstore.WithIDField("karyawanId"),
		httpstore.WithHTTPClient(ts.Client()),
		httpstore.WithLogger(quiet()),
	}, clientOpts...)
	return httpstore.New(ts.URL+"/", "karyawan", copts...), store
}

func TestClient_ReadAll(t *testing.T) {
	c, _ := setupClient(t, nil)

	rows, err := c.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []row.Row{karyawan("1", "Ani"), karyawan("2", "Budi")}, rows)
}

func TestClient_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	c, store := setupClient(t, nil)

	created, err := c.CreateMany(ctx, []row.Fields{{"karyawanName": row.String("Citra")}})
	require.NoError(t, err)
	assert.Equal(t, []row.Row{karyawan("3", "Citra")}, created)

	updated, err := c.UpdateMany(ctx, []row.Row{karyawan("1", "Ani P.")})
	require.NoError(t, err)
	assert.Equal(t, []row.Row{karyawan("1", "Ani P.")}, updated)

	require.NoError(t, c.DeleteMany(ctx, []row.ID{"2"}))

	assert.Equal(t, []row.Row{karyawan("1", "Ani P."), karyawan("3", "Citra")}, store.Rows())
}

func TestClient_NotFoundMapsToSentinel(t *testing.T) {
	c, _ := setupClient(t, nil)

	err := c.DeleteMany(context.Background(), []row.ID{"42"})
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.True(t, httpstore.IsStatus(err, http.StatusNotFound))

	var se *httpstore.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "batch-delete", se.Endpoint)
	assert.Equal(t, remote.CodeNotFound, se.Code)
}

func TestClient_InvalidBatchMapsToSentinel(t *testing.T) {
	c, _ := setupClient(t, nil)

	_, err := c.UpdateMany(context.Background(), []row.Row{karyawan("1", "A"), karyawan("1", "B")})
	assert.ErrorIs(t, err, remote.ErrInvalidBatch)
}

func TestClient_PlainErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	c := httpstore.New(ts.URL, "karyawan", httpstore.WithLogger(quiet()))
	_, err := c.ReadAll(context.Background())

	var se *httpstore.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Empty(t, se.Code)
	assert.Contains(t, se.Body, "bad gateway")
	assert.NotErrorIs(t, err, remote.ErrNotFound)
}

func TestClient_CreateCountMismatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer ts.Close()

	c := httpstore.New(ts.URL, "karyawan", httpstore.WithLogger(quiet()))
	_, err := c.CreateMany(context.Background(), []row.Fields{{"name": row.String("x")}})
	assert.ErrorContains(t, err, "got 0 rows for a batch of 1")
}

func TestClient_EmptyReadIsEmptySlice(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null}`))
	}))
	defer ts.Close()

	c := httpstore.New(ts.URL, "karyawan", httpstore.WithLogger(quiet()))
	rows, err := c.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestClient_BearerToken(t *testing.T) {
	auth := server.NewJWTAuth("secret")
	token, err := auth.GenerateToken("tester", "karyawan", time.Minute)
	require.NoError(t, err)

	c, _ := setupClient(t, []server.Option{server.WithAuth(auth)}, httpstore.WithStaticToken(token))
	_, err = c.ReadAll(context.Background())
	require.NoError(t, err)

	anon, _ := setupClient(t, []server.Option{server.WithAuth(auth)})
	_, err = anon.ReadAll(context.Background())
	assert.True(t, httpstore.IsUnauthorized(err))
}

func TestClient_TokenError(t *testing.T) {
	boom := errors.New("no credentials")
	c, _ := setupClient(t, nil, httpstore.WithToken(func(context.Context) (string, error) {
		return "", boom
	}))

	_, err := c.ReadAll(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestClient_ContextCanceled(t *testing.T) {
	c, _ := setupClient(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ReadAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// The engine saves through the HTTP client exactly as through a local store.
func TestClient_EngineRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, store := setupClient(t, nil)

	e := engine.New(c,
		engine.WithClock(testutil.NewFakeClock()),
		engine.WithDraftIDs(testutil.NewSequenceGenerator("")),
		engine.WithLogger(quiet()),
	)
	require.NoError(t, e.Load(ctx))

	require.NoError(t, e.OnCellCommitted("1", karyawan("1", "Ani P."), karyawan("1", "Ani")))
	require.NoError(t, e.OnRowDeleteRequested("2"))
	draft, err := e.OnRowAddRequested()
	require.NoError(t, err)
	require.NoError(t, e.OnCellCommitted(draft.ID, draft.With("karyawanName", row.String("Citra")), draft))

	require.NoError(t, e.Save(ctx))

	want := []row.Row{karyawan("1", "Ani P."), karyawan("3", "Citra")}
	assert.Equal(t, want, store.Rows())
	assert.Equal(t, want, e.Rows())
	assert.False(t, e.IsDirty())
}
