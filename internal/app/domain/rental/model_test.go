package rental

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func TestBaseTouchKeepsCreatedAt(t *testing.T) {
	var b Base
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.Touch(first)
	if !b.CreatedAt.Equal(first) || !b.UpdatedAt.Equal(first) {
		t.Fatalf("first touch: got created=%v updated=%v", b.CreatedAt, b.UpdatedAt)
	}

	later := first.Add(time.Hour)
	b.Touch(later)
	if !b.CreatedAt.Equal(first) {
		t.Fatalf("created_at moved to %v", b.CreatedAt)
	}
	if !b.UpdatedAt.Equal(later) {
		t.Fatalf("updated_at: got %v want %v", b.UpdatedAt, later)
	}
}

func TestBaseTouchTruncatesToMicroseconds(t *testing.T) {
	var b Base
	now := time.Date(2024, 1, 1, 12, 0, 0, 123456789, time.UTC)
	b.Touch(now)
	want := time.Date(2024, 1, 1, 12, 0, 0, 123456000, time.UTC)
	if !b.CreatedAt.Equal(want) || !b.UpdatedAt.Equal(want) {
		t.Fatalf("got created=%v updated=%v, want %v", b.CreatedAt, b.UpdatedAt, want)
	}
}

func TestBaseGenerateIDIsStable(t *testing.T) {
	var b Base
	b.GenerateID()
	if b.ID == "" {
		t.Fatal("expected generated id")
	}
	id := b.ID
	b.GenerateID()
	if b.ID != id {
		t.Fatalf("id changed from %s to %s", id, b.ID)
	}
}

func TestPlaceLinkAmenityIdempotent(t *testing.T) {
	p := &Place{}
	if !p.LinkAmenity("a1") {
		t.Fatal("first link should report a new link")
	}
	if p.LinkAmenity("a1") {
		t.Fatal("second link should be a no-op")
	}
	if !slices.Equal(p.AmenityIDs, []string{"a1"}) {
		t.Fatalf("unexpected links %v", p.AmenityIDs)
	}

	if p.UnlinkAmenity("missing") {
		t.Fatal("unlinking a missing amenity should report false")
	}
	if !p.UnlinkAmenity("a1") {
		t.Fatal("unlink should report true")
	}
	if len(p.AmenityIDs) != 0 {
		t.Fatalf("links not empty: %v", p.AmenityIDs)
	}
}

func TestDiffLinks(t *testing.T) {
	removed, added := DiffLinks([]string{"a", "b"}, []string{"b", "c"})
	if !slices.Equal(removed, []string{"a"}) {
		t.Fatalf("removed: got %v", removed)
	}
	if !slices.Equal(added, []string{"c"}) {
		t.Fatalf("added: got %v", added)
	}
}

func TestMergeLinks(t *testing.T) {
	tests := []struct {
		name       string
		current    []string
		before     []string
		after      []string
		wantMerged []string
		wantAdded  []string
	}{
		{"no change keeps current", []string{"a", "x"}, []string{"a"}, []string{"a"}, []string{"a", "x"}, nil},
		{"add on top of concurrent add", []string{"a", "x"}, []string{"a"}, []string{"a", "y"}, []string{"a", "x", "y"}, []string{"y"}},
		{"remove keeps concurrent add", []string{"a", "x"}, []string{"a"}, nil, []string{"x"}, nil},
		{"link dropped elsewhere stays dropped", []string{}, []string{"a"}, []string{"a"}, []string{}, nil},
		{"same link added twice", []string{"a"}, nil, []string{"a"}, []string{"a"}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, added := MergeLinks(tt.current, tt.before, tt.after)
			if !slices.Equal(merged, tt.wantMerged) {
				t.Fatalf("merged: got %v want %v", merged, tt.wantMerged)
			}
			if !slices.Equal(added, tt.wantAdded) {
				t.Fatalf("added: got %v want %v", added, tt.wantAdded)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := &Place{Name: "Loft", AmenityIDs: []string{"a1"}}
	p.ID = "p1"
	c := Clone(p).(*Place)
	c.AmenityIDs[0] = "changed"
	c.Name = "Other"

	if p.AmenityIDs[0] != "a1" || p.Name != "Loft" {
		t.Fatalf("original mutated: %+v", p)
	}
	if c.ID != "p1" {
		t.Fatalf("clone id: got %s", c.ID)
	}
}

func TestUserSetPasswordHashes(t *testing.T) {
	u := &User{}
	if err := u.SetPassword("secret"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	first := u.Password
	if first == "secret" {
		t.Fatal("password stored in plaintext")
	}
	if !u.CheckPassword("secret") || u.CheckPassword("wrong") {
		t.Fatal("password check mismatch")
	}

	if err := u.SetPassword("secret"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if u.Password == first {
		t.Fatal("every set should rehash with a new salt")
	}

	if err := u.SetPassword("  "); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
}

func TestRelations(t *testing.T) {
	rel, ok := RelationBetween(KindState, KindCity)
	if !ok || rel.Field != "state_id" {
		t.Fatalf("state->city relation: %+v ok=%v", rel, ok)
	}
	if _, ok := RelationBetween(KindCity, KindState); ok {
		t.Fatal("city->state should not be a parent relation")
	}

	if n := len(ChildRelations(KindUser)); n != 2 {
		t.Fatalf("user children: got %d", n)
	}
	if n := len(ParentRelations(KindReview)); n != 2 {
		t.Fatalf("review parents: got %d", n)
	}
	if n := len(ChildRelations(KindAmenity)); n != 0 {
		t.Fatalf("amenity children: got %d", n)
	}

	review := &Review{PlaceID: "p", UserID: "u"}
	if review.ParentID(KindPlace) != "p" || review.ParentID(KindUser) != "u" || review.ParentID(KindState) != "" {
		t.Fatalf("unexpected parent ids for %+v", review)
	}
}

func TestKinds(t *testing.T) {
	for _, k := range Kinds() {
		if !k.Valid() {
			t.Fatalf("%s should be valid", k)
		}
		e := NewOf(k)
		if e == nil || e.Kind() != k {
			t.Fatalf("NewOf(%s) = %v", k, e)
		}
	}
	if Kind("InvalidClass").Valid() {
		t.Fatal("InvalidClass should not be valid")
	}
	if NewOf("InvalidClass") != nil {
		t.Fatal("NewOf(InvalidClass) should be nil")
	}
}
