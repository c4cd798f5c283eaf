package pgstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gridsync/internal/remote"
	"github.com/roach88/gridsync/internal/row"
)

// setupTestStore connects to GRIDSYNC_PG_URL and binds a fresh dataset name,
// so runs never see each other's rows.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	url := os.Getenv("GRIDSYNC_PG_URL")
	if url == "" {
		t.Skip("GRIDSYNC_PG_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	dataset := fmt.Sprintf("test_%d", time.Now().UnixNano())
	s, err := New(ctx, pool, dataset, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM grid_rows WHERE dataset = $1`, dataset)
	})
	return s
}

func name(n string) row.Fields {
	return row.Fields{"name": row.String(n)}
}

func TestNew_RequiresDataset(t *testing.T) {
	_, err := New(context.Background(), nil, "", nil)
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	n, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	_, err = parseID("new-1")
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.Equal(t, row.ID("42"), formatID(42))
}

func TestStore_BatchLifecycle(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	created, err := s.CreateMany(ctx, []row.Fields{
		name("Ani"),
		{"name": row.String("Budi"), "age": row.Int(30), "active": row.Bool(false)},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	_, err = s.UpdateMany(ctx, []row.Row{row.New(created[0].ID, name("Ani P."))})
	require.NoError(t, err)

	rows, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []row.Row{row.New(created[0].ID, name("Ani P.")), created[1]}, rows)

	require.NoError(t, s.DeleteMany(ctx, []row.ID{created[1].ID}))
	rows, err = s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestStore_UpdateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	created, err := s.CreateMany(ctx, []row.Fields{name("Ani")})
	require.NoError(t, err)

	_, err = s.UpdateMany(ctx, []row.Row{
		row.New(created[0].ID, name("changed")),
		row.New("999999999", name("ghost")),
	})
	assert.ErrorIs(t, err, remote.ErrNotFound)

	rows, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, created, rows)
}

func TestStore_DeleteUnknown(t *testing.T) {
	s := setupTestStore(t)
	err := s.DeleteMany(context.Background(), []row.ID{"999999999"})
	assert.ErrorIs(t, err, remote.ErrNotFound)
}
