package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
	"github.com/hbnb-network/catalog_layer/internal/app/storage"
	"github.com/hbnb-network/catalog_layer/internal/app/storage/memory"
)

type fixture struct {
	svc    *Service
	engine storage.Engine
	sess   storage.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine := memory.New("")
	return &fixture{svc: New(nil, nil), engine: engine, sess: openSession(t, engine)}
}

func openSession(t *testing.T, engine storage.Engine) storage.Session {
	t.Helper()
	sess, err := engine.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func (f *fixture) create(t *testing.T, kind rental.Kind, parentID, body string) rental.Entity {
	t.Helper()
	e, err := f.svc.Create(context.Background(), f.sess, kind, parentID, []byte(body))
	require.NoError(t, err)
	return e
}

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st := f.create(t, rental.KindState, "", `{"name": "California", "id": "forced"}`)
	assert.NotEqual(t, "forced", st.Meta().ID)

	got, err := f.svc.Get(ctx, openSession(t, f.engine), rental.KindState, st.Meta().ID)
	require.NoError(t, err)
	assert.Equal(t, "California", got.(*rental.State).Name)
	assert.False(t, got.Meta().CreatedAt.IsZero())
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	st := f.create(t, rental.KindState, "", `{"name": "California"}`)

	cases := []struct {
		name     string
		kind     rental.Kind
		parentID string
		body     string
		message  string
	}{
		{"not json", rental.KindState, "", `not json`, "Not a JSON"},
		{"not an object", rental.KindState, "", `["name"]`, "Not a JSON"},
		{"missing name", rental.KindState, "", `{"title": "x"}`, "Missing name"},
		{"missing email", rental.KindUser, "", `{"password": "pw"}`, "Missing email"},
		{"missing password", rental.KindUser, "", `{"email": "a@b.c"}`, "Missing password"},
		{"wrong type", rental.KindCity, st.Meta().ID, `{"name": 7}`, "name must be a string"},
		{"empty password", rental.KindUser, "", `{"email": "a@b.c", "password": " "}`, "password cannot be empty"},
		{"empty email", rental.KindUser, "", `{"email": "", "password": "pw"}`, "email must not be empty"},
		{"blank email", rental.KindUser, "", `{"email": "  ", "password": "pw"}`, "email must not be empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), f.sess, tc.kind, tc.parentID, []byte(tc.body))
			require.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tc.message, err.Error())
		})
	}
}

func TestUpdateRejectsBlankEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.create(t, rental.KindUser, "", `{"email": "a@x.com", "password": "pw"}`)

	_, err := f.svc.Update(ctx, f.sess, rental.KindUser, user.Meta().ID, []byte(`{"email": ""}`))
	require.ErrorIs(t, err, ErrValidation)

	got, err := f.svc.Get(ctx, openSession(t, f.engine), rental.KindUser, user.Meta().ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.(*rental.User).Email)
}

func TestCreateRequiresParents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.sess, rental.KindCity, "missing", []byte(`{"name": "Nowhere"}`))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	st := f.create(t, rental.KindState, "", `{"name": "California"}`)
	city := f.create(t, rental.KindCity, st.Meta().ID, `{"name": "San Francisco"}`)
	assert.Equal(t, st.Meta().ID, city.(*rental.City).StateID)

	_, err = f.svc.Create(ctx, f.sess, rental.KindPlace, city.Meta().ID, []byte(`{"user_id": "ghost", "name": "Loft"}`))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.svc.Create(ctx, f.sess, rental.KindPlace, city.Meta().ID, []byte(`{"name": "Loft"}`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUserPasswordIsHashed(t *testing.T) {
	f := newFixture(t)
	u := f.create(t, rental.KindUser, "", `{"email": "a@example.com", "password": "secret"}`).(*rental.User)
	assert.NotEqual(t, "secret", u.Password)
	assert.True(t, u.CheckPassword("secret"))

	first := u.Password
	_, err := f.svc.Update(context.Background(), f.sess, rental.KindUser, u.ID, []byte(`{"password": "secret"}`))
	require.NoError(t, err)
	assert.NotEqual(t, first, u.Password)
	assert.True(t, u.CheckPassword("secret"))
}

func TestDuplicateEmailConflicts(t *testing.T) {
	f := newFixture(t)
	f.create(t, rental.KindUser, "", `{"email": "a@example.com", "password": "pw"}`)

	_, err := f.svc.Create(context.Background(), openSession(t, f.engine), rental.KindUser, "", []byte(`{"email": "a@example.com", "password": "pw"}`))
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestUpdateIgnoresProtectedKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.create(t, rental.KindUser, "", `{"email": "old@x.com", "password": "pw", "first_name": "Ada"}`).(*rental.User)
	id, created := u.ID, u.CreatedAt

	updated, err := f.svc.Update(ctx, f.sess, rental.KindUser, id, []byte(`{"email": "new@x.com", "id": "other", "created_at": "2000-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, id, updated.Meta().ID)
	assert.True(t, updated.Meta().CreatedAt.Equal(created))

	fresh, err := f.svc.Get(ctx, openSession(t, f.engine), rental.KindUser, id)
	require.NoError(t, err)
	user := fresh.(*rental.User)
	assert.Equal(t, "new@x.com", user.Email)
	assert.Equal(t, "Ada", user.FirstName)
}

func TestUpdateIgnoresForeignKeys(t *testing.T) {
	f := newFixture(t)
	st := f.create(t, rental.KindState, "", `{"name": "A"}`)
	other := f.create(t, rental.KindState, "", `{"name": "B"}`)
	city := f.create(t, rental.KindCity, st.Meta().ID, `{"name": "C"}`)

	updated, err := f.svc.Update(context.Background(), f.sess, rental.KindCity, city.Meta().ID,
		[]byte(`{"state_id": "`+other.Meta().ID+`", "name": "D"}`))
	require.NoError(t, err)
	assert.Equal(t, st.Meta().ID, updated.(*rental.City).StateID)
	assert.Equal(t, "D", updated.(*rental.City).Name)
}

func TestUpdateRejectsBadTypesAtomically(t *testing.T) {
	f := newFixture(t)
	st := f.create(t, rental.KindState, "", `{"name": "S"}`)
	city := f.create(t, rental.KindCity, st.Meta().ID, `{"name": "C"}`)
	u := f.create(t, rental.KindUser, "", `{"email": "h@x.com", "password": "pw"}`)
	place := f.create(t, rental.KindPlace, city.Meta().ID, `{"user_id": "`+u.Meta().ID+`", "name": "Loft", "number_rooms": 2}`)

	_, err := f.svc.Update(context.Background(), f.sess, rental.KindPlace, place.Meta().ID, []byte(`{"name": "New", "number_rooms": 1.5}`))
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Loft", place.(*rental.Place).Name)
	assert.Equal(t, 2, place.(*rental.Place).NumberRooms)
}

func TestUpdateMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Update(context.Background(), f.sess, rental.KindAmenity, "nope", []byte(`{}`))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.create(t, rental.KindState, "", `{"name": "California"}`)
	city := f.create(t, rental.KindCity, st.Meta().ID, `{"name": "San Francisco"}`)
	u := f.create(t, rental.KindUser, "", `{"email": "h@x.com", "password": "pw"}`)
	place := f.create(t, rental.KindPlace, city.Meta().ID, `{"user_id": "`+u.Meta().ID+`", "name": "Loft"}`)

	places, err := f.svc.Children(ctx, f.sess, rental.KindCity, city.Meta().ID, rental.KindPlace)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Loft", places[0].(*rental.Place).Name)

	require.NoError(t, f.svc.Delete(ctx, f.sess, rental.KindState, st.Meta().ID))

	fresh := openSession(t, f.engine)
	_, err = f.svc.Get(ctx, fresh, rental.KindPlace, place.Meta().ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, fresh, rental.KindState, st.Meta().ID), storage.ErrNotFound)
}

func TestAmenityLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.create(t, rental.KindState, "", `{"name": "S"}`)
	city := f.create(t, rental.KindCity, st.Meta().ID, `{"name": "C"}`)
	u := f.create(t, rental.KindUser, "", `{"email": "h@x.com", "password": "pw"}`)
	place := f.create(t, rental.KindPlace, city.Meta().ID, `{"user_id": "`+u.Meta().ID+`", "name": "Loft"}`)
	wifi := f.create(t, rental.KindAmenity, "", `{"name": "Wifi"}`)

	a, created, err := f.svc.LinkAmenity(ctx, f.sess, place.Meta().ID, wifi.Meta().ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Wifi", a.Name)

	_, created, err = f.svc.LinkAmenity(ctx, f.sess, place.Meta().ID, wifi.Meta().ID)
	require.NoError(t, err)
	assert.False(t, created)

	amenities, err := f.svc.Amenities(ctx, openSession(t, f.engine), place.Meta().ID)
	require.NoError(t, err)
	require.Len(t, amenities, 1)

	require.NoError(t, f.svc.UnlinkAmenity(ctx, f.sess, place.Meta().ID, wifi.Meta().ID))
	assert.ErrorIs(t, f.svc.UnlinkAmenity(ctx, f.sess, place.Meta().ID, wifi.Meta().ID), storage.ErrNotFound)

	_, _, err = f.svc.LinkAmenity(ctx, f.sess, place.Meta().ID, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The amenity itself survives unlinking.
	_, err = f.svc.Get(ctx, openSession(t, f.engine), rental.KindAmenity, wifi.Meta().ID)
	require.NoError(t, err)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.create(t, rental.KindState, "", `{"name": "S"}`)
	city := f.create(t, rental.KindCity, st.Meta().ID, `{"name": "C"}`)
	u := f.create(t, rental.KindUser, "", `{"email": "h@x.com", "password": "pw"}`)
	f.create(t, rental.KindPlace, city.Meta().ID, `{"user_id": "`+u.Meta().ID+`", "name": "Loft"}`)

	got, err := f.svc.Search(ctx, f.sess, []byte(`{}`))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = f.svc.Search(ctx, f.sess, []byte(`{"states": ["`+st.Meta().ID+`"]}`))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = f.svc.Search(ctx, f.sess, []byte(`nope`))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Search(ctx, f.sess, []byte(`{"states": "x"}`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.create(t, rental.KindState, "", `{"name": "S"}`)
	f.create(t, rental.KindAmenity, "", `{"name": "Wifi"}`)
	f.create(t, rental.KindAmenity, "", `{"name": "Pool"}`)

	stats, err := f.svc.Stats(context.Background(), f.sess)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"amenities": 2, "cities": 0, "places": 0, "reviews": 0, "states": 1, "users": 0,
	}, stats)
}

func TestListSortedByCreation(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, rental.KindAmenity, "", `{"name": "A"}`)
	second := f.create(t, rental.KindAmenity, "", `{"name": "B"}`)

	list, err := f.svc.List(context.Background(), f.sess, rental.KindAmenity)
	require.NoError(t, err)
	require.Len(t, list, 2)
	if first.Meta().CreatedAt.Equal(second.Meta().CreatedAt) {
		t.Skip("identical timestamps; ordering falls back to ids")
	}
	assert.Equal(t, first.Meta().ID, list[0].Meta().ID)
}
