package storage

import (
	"context"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
)

// Engine is the process-wide storage handle. A single engine is chosen at
// startup; callers never see which backend it is.
type Engine interface {
	// Name identifies the backend ("memory", "postgres").
	Name() string
	// Reload (re)initializes state from the durable store.
	Reload(ctx context.Context) error
	// Open starts a session. Each request gets its own session and must
	// close it when done.
	Open(ctx context.Context) (Session, error)
	// Close releases backend resources at process teardown.
	Close() error
}

// Session is a unit of work over an Engine. Entities returned by a session
// are tracked: the same id always yields the same pointer, and attribute
// changes made to a tracked entity are written by the next Save.
//
// A Session is not safe for concurrent use.
type Session interface {
	// New stages e for insertion. It assigns an ID if e has none. Nothing
	// is persisted until Save.
	New(e rental.Entity)

	// Save persists staged inserts, mutations of tracked entities, staged
	// deletes and link changes as one unit. On failure nothing is applied.
	// Entities written by a successful Save stay tracked; every other
	// entity is dropped from the session and will be reloaded on access.
	Save(ctx context.Context) error

	// Delete stages e for removal. Children are removed with it at Save.
	// Deleting an entity that does not exist is a no-op.
	Delete(e rental.Entity)

	// Get returns the entity with the given id. ok is false when the id
	// is missing or the kind is unknown; err is only set on backend
	// failure.
	Get(ctx context.Context, kind rental.Kind, id string) (e rental.Entity, ok bool, err error)

	// All returns every entity of the kind keyed by id. An empty kind
	// returns entities of every kind; an unknown kind returns an empty map.
	All(ctx context.Context, kind rental.Kind) (map[string]rental.Entity, error)

	// Count returns len(All(kind)).
	Count(ctx context.Context, kind rental.Kind) (int, error)

	// Children returns the entities of kind whose foreign key points at
	// parent. It returns nil when no relation links the two kinds.
	Children(ctx context.Context, parent rental.Entity, kind rental.Kind) ([]rental.Entity, error)

	// AmenitiesOf returns the amenities linked to place. Links to
	// amenities that no longer exist are skipped.
	AmenitiesOf(ctx context.Context, place *rental.Place) ([]*rental.Amenity, error)

	// Close ends the session and discards anything not saved.
	Close() error
}

// Driver is the raw access a backend provides to NewSession. Load methods
// return committed state only; Commit applies a changeset atomically.
type Driver interface {
	Backend() string
	Load(ctx context.Context, kind rental.Kind, id string) (rental.Entity, bool, error)
	LoadAll(ctx context.Context, kind rental.Kind) ([]rental.Entity, error)
	LoadChildren(ctx context.Context, rel rental.Relation, parentID string) ([]rental.Entity, error)
	LoadLinked(ctx context.Context, placeID string) ([]rental.Entity, error)
	Count(ctx context.Context, kind rental.Kind) (int, error)
	Commit(ctx context.Context, cs Changeset) error
}
