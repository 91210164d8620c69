package storage

import (
	"context"
	"time"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
)

// session implements Session on top of a Driver. Both backends use it, so
// staging, identity and visibility rules are the same regardless of where
// the data lives.
type session struct {
	driver  Driver
	tracker *tracker
	closed  bool
	now     func() time.Time
}

// NewSession returns a session backed by d.
func NewSession(d Driver) Session {
	return &session{
		driver:  d,
		tracker: newTracker(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *session) New(e rental.Entity) {
	if s.closed || e == nil {
		return
	}
	s.tracker.add(e)
}

func (s *session) Delete(e rental.Entity) {
	if s.closed || e == nil {
		return
	}
	s.tracker.remove(e)
}

func (s *session) Save(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	cs := s.tracker.changes(s.now())
	if cs.Empty() {
		return nil
	}
	if err := s.driver.Commit(ctx, cs); err != nil {
		return Persistence(s.driver.Backend(), "commit", err)
	}
	s.tracker.commit(cs)
	return nil
}

func (s *session) Get(ctx context.Context, kind rental.Kind, id string) (rental.Entity, bool, error) {
	if s.closed {
		return nil, false, ErrClosed
	}
	if !kind.Valid() || id == "" {
		return nil, false, nil
	}
	if cur, ok := s.tracker.lookup(kind, id); ok {
		if cur.state == stateDeleted {
			return nil, false, nil
		}
		return cur.entity, true, nil
	}
	loaded, ok, err := s.driver.Load(ctx, kind, id)
	if err != nil {
		return nil, false, Persistence(s.driver.Backend(), "get", err)
	}
	if !ok {
		return nil, false, nil
	}
	return s.tracker.resolve(loaded), true, nil
}

func (s *session) All(ctx context.Context, kind rental.Kind) (map[string]rental.Entity, error) {
	if s.closed {
		return nil, ErrClosed
	}
	out := make(map[string]rental.Entity)
	for _, k := range kindsFor(kind) {
		loaded, err := s.driver.LoadAll(ctx, k)
		if err != nil {
			return nil, Persistence(s.driver.Backend(), "all", err)
		}
		for _, e := range loaded {
			if tracked := s.tracker.resolve(e); tracked != nil {
				out[tracked.Meta().ID] = tracked
			}
		}
		for _, e := range s.tracker.pending(k) {
			out[e.Meta().ID] = e
		}
	}
	return out, nil
}

func (s *session) Count(ctx context.Context, kind rental.Kind) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	total := 0
	for _, k := range kindsFor(kind) {
		if s.tracker.deletedCount(k) > 0 {
			// Staged deletes may name ids that were never persisted.
			all, err := s.All(ctx, k)
			if err != nil {
				return 0, err
			}
			total += len(all)
			continue
		}
		n, err := s.driver.Count(ctx, k)
		if err != nil {
			return 0, Persistence(s.driver.Backend(), "count", err)
		}
		total += n + len(s.tracker.pending(k))
	}
	return total, nil
}

func (s *session) Children(ctx context.Context, parent rental.Entity, kind rental.Kind) ([]rental.Entity, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if parent == nil {
		return nil, nil
	}
	rel, ok := rental.RelationBetween(parent.Kind(), kind)
	if !ok {
		return nil, nil
	}
	parentID := parent.Meta().ID
	loaded, err := s.driver.LoadChildren(ctx, rel, parentID)
	if err != nil {
		return nil, Persistence(s.driver.Backend(), "children", err)
	}
	out := make([]rental.Entity, 0, len(loaded))
	for _, e := range loaded {
		if tracked := s.tracker.resolve(e); tracked != nil && tracked.ParentID(rel.Parent) == parentID {
			out = append(out, tracked)
		}
	}
	for _, e := range s.tracker.pending(kind) {
		if e.ParentID(rel.Parent) == parentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *session) AmenitiesOf(ctx context.Context, place *rental.Place) ([]*rental.Amenity, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if place == nil {
		return nil, nil
	}
	// A link set that differs from committed state has to be read from the
	// entity itself; otherwise the backend resolves the join.
	if cur, ok := s.tracker.lookup(rental.KindPlace, place.ID); !ok || cur.state != stateLoaded || cur.dirty() {
		return s.amenitiesByID(ctx, place.AmenityIDs)
	}
	loaded, err := s.driver.LoadLinked(ctx, place.ID)
	if err != nil {
		return nil, Persistence(s.driver.Backend(), "amenities", err)
	}
	out := make([]*rental.Amenity, 0, len(loaded))
	for _, e := range loaded {
		if a, ok := s.tracker.resolve(e).(*rental.Amenity); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *session) amenitiesByID(ctx context.Context, ids []string) ([]*rental.Amenity, error) {
	out := make([]*rental.Amenity, 0, len(ids))
	for _, id := range ids {
		e, ok, err := s.Get(ctx, rental.KindAmenity, id)
		if err != nil {
			return nil, err
		}
		if a, isAmenity := e.(*rental.Amenity); ok && isAmenity {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.tracker.reset()
	return nil
}

func kindsFor(kind rental.Kind) []rental.Kind {
	if kind == "" {
		return rental.Kinds()
	}
	if !kind.Valid() {
		return nil
	}
	return []rental.Kind{kind}
}
