// Package rental holds the catalog entities: states, cities, users, places,
// reviews and amenities, plus the relationships between them.
package rental

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Kind names an entity type. Values match the class names used in snapshot
// files ("State", "City", ...).
type Kind string

const (
	KindState   Kind = "State"
	KindCity    Kind = "City"
	KindUser    Kind = "User"
	KindPlace   Kind = "Place"
	KindReview  Kind = "Review"
	KindAmenity Kind = "Amenity"
)

var kinds = []Kind{KindState, KindCity, KindUser, KindPlace, KindReview, KindAmenity}

// Kinds returns every known kind in dependency order (parents first).
func Kinds() []Kind {
	return slices.Clone(kinds)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return slices.Contains(kinds, k)
}

// Entity is implemented by every persisted catalog object.
type Entity interface {
	Kind() Kind
	Meta() *Base
	// ParentID returns the foreign key pointing at the given parent kind, or
	// "" if this entity has no such parent.
	ParentID(parent Kind) string
}

// Base carries the identifier and timestamps shared by all entities.
type Base struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Meta returns the base fields.
func (b *Base) Meta() *Base {
	return b
}

// GenerateID assigns a random identifier if none is set yet.
func (b *Base) GenerateID() {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
}

// Touch stamps the entity as modified at now. CreatedAt is only set once.
// Timestamps are kept at microsecond precision, the resolution of TIMESTAMPTZ.
func (b *Base) Touch(now time.Time) {
	now = now.Truncate(time.Microsecond)
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// Relation is a one-to-many link from Parent to Child through a foreign key
// column on the child.
type Relation struct {
	Parent Kind
	Child  Kind
	Field  string
}

// Relations lists every parent/child relationship. Deleting a parent deletes
// all of its children.
var Relations = []Relation{
	{Parent: KindState, Child: KindCity, Field: "state_id"},
	{Parent: KindCity, Child: KindPlace, Field: "city_id"},
	{Parent: KindUser, Child: KindPlace, Field: "user_id"},
	{Parent: KindUser, Child: KindReview, Field: "user_id"},
	{Parent: KindPlace, Child: KindReview, Field: "place_id"},
}

// RelationBetween returns the relation from parent to child, if one exists.
func RelationBetween(parent, child Kind) (Relation, bool) {
	for _, rel := range Relations {
		if rel.Parent == parent && rel.Child == child {
			return rel, true
		}
	}
	return Relation{}, false
}

// ChildRelations returns the relations whose parent is k.
func ChildRelations(k Kind) []Relation {
	var out []Relation
	for _, rel := range Relations {
		if rel.Parent == k {
			out = append(out, rel)
		}
	}
	return out
}

// ParentRelations returns the relations whose child is k.
func ParentRelations(k Kind) []Relation {
	var out []Relation
	for _, rel := range Relations {
		if rel.Child == k {
			out = append(out, rel)
		}
	}
	return out
}

// NewOf returns a zero value of the given kind, or nil for unknown kinds.
func NewOf(k Kind) Entity {
	switch k {
	case KindState:
		return &State{}
	case KindCity:
		return &City{}
	case KindUser:
		return &User{}
	case KindPlace:
		return &Place{}
	case KindReview:
		return &Review{}
	case KindAmenity:
		return &Amenity{}
	default:
		return nil
	}
}

// Clone returns a deep copy of e.
func Clone(e Entity) Entity {
	switch v := e.(type) {
	case *State:
		c := *v
		return &c
	case *City:
		c := *v
		return &c
	case *User:
		c := *v
		return &c
	case *Place:
		c := *v
		c.AmenityIDs = slices.Clone(v.AmenityIDs)
		return &c
	case *Review:
		c := *v
		return &c
	case *Amenity:
		c := *v
		return &c
	default:
		return nil
	}
}
