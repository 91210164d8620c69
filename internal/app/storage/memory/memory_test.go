package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
	"github.com/hbnb-network/catalog_layer/internal/app/storage"
	"github.com/hbnb-network/catalog_layer/internal/app/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Engine {
		s, err := Open(context.Background(), filepath.Join(t.TempDir(), "file.json"))
		require.NoError(t, err)
		return s
	})
}

func TestStoreContractWithoutFile(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Engine {
		return New("")
	})
}

func TestStoreContractGzip(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Engine {
		s, err := Open(context.Background(), filepath.Join(t.TempDir(), "file.json.gz"))
		require.NoError(t, err)
		return s
	})
}

func TestPersistAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "file.json")

	first, err := Open(ctx, path)
	require.NoError(t, err)
	f := storagetest.Seed(t, first)
	require.NoError(t, first.Close())

	second, err := Open(ctx, path)
	require.NoError(t, err)
	sess, err := second.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	n, err := sess.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	got, ok, err := sess.Get(ctx, rental.KindUser, f.User.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "host@example.com", got.(*rental.User).Email)
	assert.True(t, got.Meta().CreatedAt.Equal(f.User.CreatedAt))

	place, ok, err := sess.Get(ctx, rental.KindPlace, f.Place.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{f.Amenity.ID}, place.(*rental.Place).AmenityIDs)
}

func TestSnapshotLayout(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "file.json")
	s, err := Open(ctx, path)
	require.NoError(t, err)
	f := storagetest.Seed(t, s)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc, 6)

	obj, ok := doc["State."+f.State.ID]
	require.True(t, ok)
	assert.Equal(t, "State", obj["__class__"])
	assert.Equal(t, "California", obj["name"])
	assert.Equal(t, f.State.ID, obj["id"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestLoadTolerantSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "file.json")
	legacy := `{
  "State.s1": {"__class__": "State", "id": "s1", "name": "Texas",
               "created_at": "2017-03-25T02:17:06.000000", "updated_at": "2017-03-25T02:17:06.123456"},
  "Spaceship.x1": {"__class__": "Spaceship", "id": "x1"},
  "City.c1": {"id": "c1", "state_id": "s1", "name": "Austin",
              "created_at": "2017-03-25T02:17:06", "updated_at": "2017-03-25T02:17:06"}
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	s, err := Open(ctx, path)
	require.NoError(t, err)
	sess, err := s.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	n, err := sess.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, ok, err := sess.Get(ctx, rental.KindCity, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "s1", got.(*rental.City).StateID)
	assert.Equal(t, 2017, got.Meta().CreatedAt.Year())

	st, ok, err := sess.Get(ctx, rental.KindState, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 123456000, st.Meta().UpdatedAt.Nanosecond())
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Open(context.Background(), path)
	require.Error(t, err)
	var pe *storage.PersistenceError
	assert.ErrorAs(t, err, &pe)
}

func TestFailedCommitLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	s := New("")
	f := storagetest.Seed(t, s)

	sess, err := s.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()
	sess.New(&rental.State{Name: "Ohio"})
	sess.New(&rental.City{StateID: "missing", Name: "Ghost"})
	require.ErrorIs(t, sess.Save(ctx), storage.ErrMissingReference)

	n, err := s.Count(ctx, rental.KindState)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok, err := s.Load(ctx, rental.KindState, f.State.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoadReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New("")
	f := storagetest.Seed(t, s)

	e, ok, err := s.Load(ctx, rental.KindState, f.State.ID)
	require.NoError(t, err)
	require.True(t, ok)
	e.(*rental.State).Name = "Mutated"

	again, _, err := s.Load(ctx, rental.KindState, f.State.ID)
	require.NoError(t, err)
	assert.Equal(t, "California", again.(*rental.State).Name)
}

func TestConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "file.json"))
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := s.Open(ctx)
			if err != nil {
				errs <- err
				return
			}
			defer sess.Close()
			sess.New(&rental.State{Name: fmt.Sprintf("state-%d", i)})
			errs <- sess.Save(ctx)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.NoError(t, s.Reload(ctx))
	n, err := s.Count(ctx, rental.KindState)
	require.NoError(t, err)
	assert.Equal(t, workers, n)
}

func TestClosedStore(t *testing.T) {
	s := New("")
	require.NoError(t, s.Close())
	_, err := s.Open(context.Background())
	assert.ErrorIs(t, err, storage.ErrClosed)
}
