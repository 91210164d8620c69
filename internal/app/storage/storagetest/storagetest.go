// Package storagetest holds the behavioural suite every storage engine must
// pass. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
	"github.com/hbnb-network/catalog_layer/internal/app/storage"
)

// Factory returns a fresh, empty engine. The suite closes it.
type Factory func(t *testing.T) storage.Engine

// Run executes the shared engine suite against engines built by factory.
func Run(t *testing.T, factory Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, engine storage.Engine)
	}{
		{"SaveThenGet", testSaveThenGet},
		{"GetMissing", testGetMissing},
		{"CountAndAll", testCountAndAll},
		{"PendingVisibility", testPendingVisibility},
		{"UpdateTimestamps", testUpdateTimestamps},
		{"CascadeDelete", testCascadeDelete},
		{"AmenityLinks", testAmenityLinks},
		{"InterleavedLinks", testInterleavedLinks},
		{"UpdateAfterAmenityDeleted", testUpdateAfterAmenityDeleted},
		{"LinkMissingAmenity", testLinkMissingAmenity},
		{"DuplicateEmail", testDuplicateEmail},
		{"MissingParent", testMissingParent},
		{"Children", testChildren},
		{"Reload", testReload},
		{"ClosedSession", testClosedSession},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			engine := factory(t)
			t.Cleanup(func() { _ = engine.Close() })
			tc.fn(t, engine)
		})
	}
}

func open(t *testing.T, engine storage.Engine) storage.Session {
	t.Helper()
	sess, err := engine.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

// Fixture is a small connected graph: one of each kind.
type Fixture struct {
	State   *rental.State
	City    *rental.City
	User    *rental.User
	Place   *rental.Place
	Review  *rental.Review
	Amenity *rental.Amenity
}

// Seed persists a Fixture through engine.
func Seed(t *testing.T, engine storage.Engine) Fixture {
	t.Helper()
	ctx := context.Background()
	sess, err := engine.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	f := Fixture{
		State:   &rental.State{Name: "California"},
		User:    &rental.User{Email: "host@example.com", Password: "hash", FirstName: "Ada"},
		Amenity: &rental.Amenity{Name: "Wifi"},
	}
	sess.New(f.State)
	sess.New(f.User)
	sess.New(f.Amenity)
	f.City = &rental.City{StateID: f.State.ID, Name: "San Francisco"}
	sess.New(f.City)
	f.Place = &rental.Place{CityID: f.City.ID, UserID: f.User.ID, Name: "Loft", NumberRooms: 2, PriceByNight: 120}
	f.Place.LinkAmenity(f.Amenity.ID)
	sess.New(f.Place)
	f.Review = &rental.Review{PlaceID: f.Place.ID, UserID: f.User.ID, Text: "Great"}
	sess.New(f.Review)
	require.NoError(t, sess.Save(ctx))
	return f
}

func testSaveThenGet(t *testing.T, engine storage.Engine) {
	f := Seed(t, engine)
	sess := open(t, engine)

	got, ok, err := sess.Get(context.Background(), rental.KindPlace, f.Place.ID)
	require.NoError(t, err)
	require.True(t, ok)
	place := got.(*rental.Place)
	assert.Equal(t, "Loft", place.Name)
	assert.Equal(t, f.City.ID, place.CityID)
	assert.Equal(t, 120, place.PriceByNight)
	assert.False(t, place.CreatedAt.IsZero())
	assert.True(t, f.Place.CreatedAt.Equal(place.CreatedAt), "created_at %v != %v", f.Place.CreatedAt, place.CreatedAt)
	assert.True(t, f.Place.UpdatedAt.Equal(place.UpdatedAt), "updated_at %v != %v", f.Place.UpdatedAt, place.UpdatedAt)
	assert.Equal(t, []string{f.Amenity.ID}, place.AmenityIDs)

	again, _, err := sess.Get(context.Background(), rental.KindPlace, f.Place.ID)
	require.NoError(t, err)
	assert.Same(t, got, again)
}

func testGetMissing(t *testing.T, engine storage.Engine) {
	sess := open(t, engine)
	ctx := context.Background()

	_, ok, err := sess.Get(ctx, rental.KindState, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = sess.Get(ctx, rental.Kind("Spaceship"), "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = sess.Get(ctx, rental.KindState, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testCountAndAll(t *testing.T, engine storage.Engine) {
	f := Seed(t, engine)
	sess := open(t, engine)
	ctx := context.Background()

	n, err := sess.Count(ctx, rental.KindState)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = sess.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = sess.Count(ctx, rental.Kind("Spaceship"))
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := sess.All(ctx, rental.KindCity)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Contains(t, all, f.City.ID)

	everything, err := sess.All(ctx, "")
	require.NoError(t, err)
	assert.Len(t, everything, 6)
}

func testPendingVisibility(t *testing.T, engine storage.Engine) {
	ctx := context.Background()
	writer := open(t, engine)
	reader := open(t, engine)

	st := &rental.State{Name: "Nevada"}
	writer.New(st)
	require.NotEmpty(t, st.ID)

	n, err := writer.Count(ctx, rental.KindState)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err := reader.Get(ctx, rental.KindState, st.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, writer.Save(ctx))

	got, ok, err := reader.Get(ctx, rental.KindState, st.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Nevada", got.(*rental.State).Name)
}

func testUpdateTimestamps(t *testing.T, engine storage.Engine) {
	f := Seed(t, engine)
	ctx := context.Background()
	sess := open(t, engine)

	got, ok, err := sess.Get(ctx, rental.KindState, f.State.ID)
	require.NoError(t, err)
	require.True(t, ok)
	st := got.(*rental.State)
	created, updated := st.CreatedAt, st.UpdatedAt

	st.Name = "Oregon"
	require.NoError(t, sess.Save(ctx))
	assert.True(t, st.CreatedAt.Equal(created))
	assert.False(t, st.UpdatedAt.Before(updated))

	fresh := open(t, engine)
	again, ok, err := fresh.Get(ctx, rental.KindState, f.State.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Oregon", again.(*rental.State).Name)
}

func testCascadeDelete(t *testing.T, engine storage.Engine) {
	f := Seed(t, engine)
	ctx := context.Background()
	sess := open(t, engine)

	sess.Delete(f.State)
	_, ok, err := sess.Get(ctx, rental.KindState, f.State.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, sess.Save(ctx))

	fresh := open(t, engine)
	for _, gone := range []rental.Entity{f.State, f.City, f.Place, f.Review} {
		_, ok, err := fresh.Get(ctx, gone.Kind(), gone.Meta().ID)
		require.NoError(t, err)
		assert.False(t, ok, "%s should be gone", gone.Kind())
	}
	for _, kept := range []rental.Entity{f.User, f.Amenity} {
		_, ok, err := fresh.Get(ctx, kept.Kind(), kept.Meta().ID)
		require.NoError(t, err)
		assert.True(t, ok, "%s should remain", kept.Kind())
	}
}

func testAmenityLinks(t *testing.T, engine storage.Engine) {
	f := Seed(t, engine)
	ctx := context.Background()
	sess := open(t, engine)

	got, _, err := sess.Get(ctx, rental.KindPlace, f.Place.ID)
	require.NoError(t, err)
	place := got.(*rental.Place)
	amenities, err := sess.AmenitiesOf(ctx, place)
	require.NoError(t, err)
	require.Len(t, amenities, 1)
	assert.Equal(t, "Wifi", amenities[0].Name)

	pool := &rental.Amenity{Name: "Pool"}
	sess.New(pool)
	require.True(t, place.LinkAmenity(pool.ID))
	amenities, err = sess.AmenitiesOf(ctx, place)
	require.NoError(t, err)
	assert.Len(t, amenities, 2)
	require.NoError(t, sess.Save(ctx))

	// Deleting an amenity drops it from every link set.
	cleanup := open(t, engine)
	wifi, _, err := cleanup.Get(ctx, rental.KindAmenity, f.Amenity.ID)
	require.NoError(t, err)
	cleanup.Delete(wifi)
	require.NoError(t, cleanup.Save(ctx))

	fresh := open(t, engine)
	reloaded, ok, err := fresh.Get(ctx, rental.KindPlace, f.Place.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{pool.ID}, reloaded.(*rental.Place).AmenityIDs)
	amenities, err = fresh.AmenitiesOf(ctx, reloaded.(*rental.Place))
	require.NoError(t, err)
	require.Len(t, amenities, 1)
	assert.Equal(t, "Pool", amenities[0].Name)
}

func getPlace(t *testing.T, sess storage.Session, id string) *rental.Place {
	t.Helper()
	e, ok, err := sess.Get(context.Background(), rental.KindPlace, id)
	require.NoError(t, err)
	require.True(t, ok, "place %s", id)
	return e.(*rental.Place)
}

func newAmenity(t *testing.T, engine storage.Engine, name string) *rental.Amenity {
	t.Helper()
	sess := open(t, engine)
	a := &rental.Amenity{Name: name}
	sess.New(a)
	require.NoError(t, sess.Save(context.Background()))
	return a
}

// Two sessions that read the same place and each link a different amenity
// must both keep their link.
func testInterleavedLinks(t *testing.T, engine storage.Engine) {
	f := Seed(t, engine)
	ctx := context.Background()
	pool := newAmenity(t, engine, "Pool")
	sauna := newAmenity(t, engine, "Sauna")

	first, second := open(t, engine), open(t, engine)
	a := getPlace(t, first, f.Place.ID)
	b := getPlace(t, second, f.Place.ID)

	a.LinkAmenity(pool.ID)
	require.NoError(t, first.Save(ctx))
	b.LinkAmenity(sauna.ID)
	b.UnlinkAmenity(f.Amenity.ID)
	require.NoError(t, second.Save(ctx))

	got, err := open(t, engine).AmenitiesOf(ctx, getPlace(t, open(t, engine), f.Place.ID))
	require.NoError(t, err)
	names := make([]string, 0, len(got))
	for _, am := range got {
		names = append(names, am.Name)
	}
	assert.ElementsMatch(t, []string{"Pool", "Sauna"}, names)
}

// A place read before one of its amenities was deleted can still be updated.
func testUpdateAfterAmenityDeleted(t *testing.T, engine storage.Engine) {
	f := Seed(t, engine)
	ctx := context.Background()

	stale := open(t, engine)
	place := getPlace(t, stale, f.Place.ID)

	deleter := open(t, engine)
	amenity, ok, err := deleter.Get(ctx, rental.KindAmenity, f.Amenity.ID)
	require.NoError(t, err)
	require.True(t, ok)
	deleter.Delete(amenity)
	require.NoError(t, deleter.Save(ctx))

	place.Name = "Loft2"
	require.NoError(t, stale.Save(ctx))

	got := getPlace(t, open(t, engine), f.Place.ID)
	assert.Equal(t, "Loft2", got.Name)
	assert.Empty(t, got.AmenityIDs)
}

func testLinkMissingAmenity(t *testing.T, engine storage.Engine) {
	f := Seed(t, engine)
	sess := open(t, engine)
	place := getPlace(t, sess, f.Place.ID)
	place.LinkAmenity("no-such-amenity")
	assert.ErrorIs(t, sess.Save(context.Background()), storage.ErrMissingReference)

	got := getPlace(t, open(t, engine), f.Place.ID)
	assert.Equal(t, []string{f.Amenity.ID}, got.AmenityIDs)
}

func testDuplicateEmail(t *testing.T, engine storage.Engine) {
	Seed(t, engine)
	ctx := context.Background()
	sess := open(t, engine)

	sess.New(&rental.User{Email: "host@example.com", Password: "other"})
	err := sess.Save(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrConflict)

	first := open(t, engine)
	first.New(&rental.User{Password: "a"})
	require.NoError(t, first.Save(ctx))
	second := open(t, engine)
	second.New(&rental.User{Password: "b"})
	assert.ErrorIs(t, second.Save(ctx), storage.ErrConflict, "empty emails are unique too")
}

func testMissingParent(t *testing.T, engine storage.Engine) {
	ctx := context.Background()
	sess := open(t, engine)

	sess.New(&rental.City{StateID: "nope", Name: "Nowhere"})
	err := sess.Save(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrMissingReference)

	fresh := open(t, engine)
	n, err := fresh.Count(ctx, rental.KindCity)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testChildren(t *testing.T, engine storage.Engine) {
	f := Seed(t, engine)
	ctx := context.Background()
	sess := open(t, engine)

	extra := &rental.City{StateID: f.State.ID, Name: "Oakland"}
	sess.New(extra)

	cities, err := sess.Children(ctx, f.State, rental.KindCity)
	require.NoError(t, err)
	names := make([]string, 0, len(cities))
	for _, c := range cities {
		names = append(names, c.(*rental.City).Name)
	}
	assert.ElementsMatch(t, []string{"San Francisco", "Oakland"}, names)

	reviews, err := sess.Children(ctx, f.User, rental.KindReview)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)

	none, err := sess.Children(ctx, f.State, rental.KindReview)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testReload(t *testing.T, engine storage.Engine) {
	f := Seed(t, engine)
	ctx := context.Background()
	require.NoError(t, engine.Reload(ctx))

	sess := open(t, engine)
	_, ok, err := sess.Get(ctx, rental.KindReview, f.Review.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func testClosedSession(t *testing.T, engine storage.Engine) {
	ctx := context.Background()
	sess, err := engine.Open(ctx)
	require.NoError(t, err)

	st := &rental.State{Name: "Utah"}
	sess.New(st)
	require.NoError(t, sess.Close())
	assert.ErrorIs(t, sess.Save(ctx), storage.ErrClosed)

	fresh := open(t, engine)
	_, ok, err := fresh.Get(ctx, rental.KindState, st.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
