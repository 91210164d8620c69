package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
	"github.com/hbnb-network/catalog_layer/internal/app/storage"
	"github.com/hbnb-network/catalog_layer/internal/app/storage/memory"
)

func openSession(t *testing.T, engine storage.Engine) storage.Session {
	t.Helper()
	sess, err := engine.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestUntouchedEntitiesAreNotWritten(t *testing.T) {
	ctx := context.Background()
	var commits int
	engine := storage.Instrument(memory.New(""), func(string, time.Duration, error) { commits++ })

	sess := openSession(t, engine)
	st := &rental.State{Name: "A"}
	sess.New(st)
	require.NoError(t, sess.Save(ctx))
	updated := st.UpdatedAt

	require.NoError(t, sess.Save(ctx))
	assert.Equal(t, 1, commits, "an empty save does not reach the backend")

	other := openSession(t, engine)
	_, _, err := other.Get(ctx, rental.KindState, st.ID)
	require.NoError(t, err)
	require.NoError(t, other.Save(ctx))
	assert.Equal(t, 1, commits)

	got, _, err := openSession(t, engine).Get(ctx, rental.KindState, st.ID)
	require.NoError(t, err)
	assert.True(t, got.Meta().UpdatedAt.Equal(updated))
}

func TestMutationAfterUnrelatedSave(t *testing.T) {
	ctx := context.Background()
	engine := memory.New("")
	seed := openSession(t, engine)
	st := &rental.State{Name: "A"}
	seed.New(st)
	require.NoError(t, seed.Save(ctx))

	sess := openSession(t, engine)
	got, ok, err := sess.Get(ctx, rental.KindState, st.ID)
	require.NoError(t, err)
	require.True(t, ok)

	sess.New(&rental.Amenity{Name: "Wifi"})
	require.NoError(t, sess.Save(ctx))

	got.(*rental.State).Name = "B"
	require.NoError(t, sess.Save(ctx))

	fresh, _, err := openSession(t, engine).Get(ctx, rental.KindState, st.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", fresh.(*rental.State).Name)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	engine := memory.New("")
	sess := openSession(t, engine)

	st := &rental.State{Name: "A"}
	sess.New(st)
	require.NoError(t, sess.Save(ctx))

	sess.Delete(st)
	sess.Delete(st)
	require.NoError(t, sess.Save(ctx))

	again := openSession(t, engine)
	again.Delete(st)
	require.NoError(t, again.Save(ctx))

	n, err := again.Count(ctx, rental.KindState)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewThenDeleteBeforeSave(t *testing.T) {
	ctx := context.Background()
	engine := memory.New("")
	sess := openSession(t, engine)

	st := &rental.State{Name: "A"}
	sess.New(st)
	sess.Delete(st)
	n, err := sess.Count(ctx, rental.KindState)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, sess.Save(ctx))

	_, ok, err := openSession(t, engine).Get(ctx, rental.KindState, st.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountWithStagedDeletes(t *testing.T) {
	ctx := context.Background()
	engine := memory.New("")
	sess := openSession(t, engine)

	a, b := &rental.Amenity{Name: "A"}, &rental.Amenity{Name: "B"}
	sess.New(a)
	sess.New(b)
	require.NoError(t, sess.Save(ctx))

	sess.Delete(a)
	sess.Delete(&rental.Amenity{Base: rental.Base{ID: "never-saved"}})
	n, err := sess.Count(ctx, rental.KindAmenity)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := sess.All(ctx, rental.KindAmenity)
	require.NoError(t, err)
	assert.Contains(t, all, b.ID)
	assert.NotContains(t, all, a.ID)
}

func TestTimestampsOnSave(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t, memory.New(""))

	st := &rental.State{Name: "A"}
	sess.New(st)
	assert.True(t, st.CreatedAt.IsZero(), "timestamps are assigned at save")
	require.NoError(t, sess.Save(ctx))
	require.False(t, st.CreatedAt.IsZero())
	assert.True(t, st.CreatedAt.Equal(st.UpdatedAt))

	created := st.CreatedAt
	time.Sleep(2 * time.Millisecond)
	st.Name = "B"
	require.NoError(t, sess.Save(ctx))
	assert.True(t, st.CreatedAt.Equal(created))
	assert.True(t, st.UpdatedAt.After(created))
}

func TestInstrumentReportsFailures(t *testing.T) {
	ctx := context.Background()
	var (
		backend string
		failed  error
	)
	engine := storage.Instrument(memory.New(""), func(b string, _ time.Duration, err error) {
		backend, failed = b, err
	})
	sess := openSession(t, engine)
	sess.New(&rental.City{StateID: "missing", Name: "X"})
	err := sess.Save(ctx)
	require.Error(t, err)
	assert.Equal(t, "memory", backend)
	assert.True(t, errors.Is(failed, storage.ErrMissingReference))
}

func TestSessionContext(t *testing.T) {
	_, ok := storage.SessionFrom(context.Background())
	assert.False(t, ok)

	sess := openSession(t, memory.New(""))
	ctx := storage.WithSession(context.Background(), sess)
	got, ok := storage.SessionFrom(ctx)
	require.True(t, ok)
	assert.Same(t, sess, got)
}

func TestPersistenceWrapping(t *testing.T) {
	assert.NoError(t, storage.Persistence("memory", "save", nil))
	assert.Same(t, storage.ErrConflict, storage.Persistence("memory", "save", storage.ErrConflict))

	err := storage.Persistence("postgres", "commit", errors.New("disk full"))
	var pe *storage.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "postgres storage: commit: disk full", err.Error())
	assert.Same(t, err, storage.Persistence("postgres", "commit", err))
}
