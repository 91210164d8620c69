// Package memory implements the storage engine that keeps every entity in
// process memory and persists the whole catalog as one JSON snapshot file.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
	"github.com/hbnb-network/catalog_layer/internal/app/storage"
	"github.com/hbnb-network/catalog_layer/pkg/logger"
)

const backendName = "memory"

// Store is the in-memory engine. Committed state is replaced wholesale on
// every successful commit, so readers never observe a partially applied
// changeset. An empty path disables persistence.
type Store struct {
	path string
	log  *logger.Logger

	mu    sync.RWMutex
	state *state

	// writeMu serializes commits and the file write that goes with them.
	writeMu sync.Mutex
	closed  bool
}

var _ storage.Engine = (*Store)(nil)
var _ storage.Driver = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(log *logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates an empty store persisting to path.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:  path,
		log:   logger.NewDefault("storage.memory"),
		state: newState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store and loads the snapshot at path, if one exists.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := New(path, opts...)
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Name implements storage.Engine.
func (s *Store) Name() string { return backendName }

// Backend implements storage.Driver.
func (s *Store) Backend() string { return backendName }

// Path returns the snapshot file the store persists to.
func (s *Store) Path() string { return s.path }

// Reload replaces committed state with the contents of the snapshot file. A
// missing file leaves the store empty.
func (s *Store) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}

	next := newState()
	if s.path != "" {
		data, err := readFile(s.path)
		if err != nil {
			return storage.Persistence(backendName, "reload", err)
		}
		objects, skips, err := decodeSnapshot(data)
		if err != nil {
			return storage.Persistence(backendName, "reload", err)
		}
		for _, sk := range skips {
			s.log.WithField("key", sk.Key).Warnf("skipping snapshot object: %s", sk.Reason)
		}
		next = stateFrom(objects)
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	s.log.WithField("path", s.path).Debugf("loaded %d objects", next.size())
	return nil
}

// Open implements storage.Engine.
func (s *Store) Open(ctx context.Context) (storage.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, storage.ErrClosed
	}
	return storage.NewSession(s), nil
}

// Close marks the store closed. Sessions opened afterwards fail.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Load implements storage.Driver.
func (s *Store) Load(ctx context.Context, kind rental.Kind, id string) (rental.Entity, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	e, ok := s.snapshot().objects[kind][id]
	if !ok {
		return nil, false, nil
	}
	return rental.Clone(e), true, nil
}

// LoadAll implements storage.Driver.
func (s *Store) LoadAll(ctx context.Context, kind rental.Kind) ([]rental.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	byID := s.snapshot().objects[kind]
	out := make([]rental.Entity, 0, len(byID))
	for _, e := range byID {
		out = append(out, rental.Clone(e))
	}
	return out, nil
}

// LoadChildren implements storage.Driver.
func (s *Store) LoadChildren(ctx context.Context, rel rental.Relation, parentID string) ([]rental.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := s.snapshot()
	ids := st.children(rel, parentID)
	out := make([]rental.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := st.objects[rel.Child][id]; ok {
			out = append(out, rental.Clone(e))
		}
	}
	return out, nil
}

// LoadLinked implements storage.Driver.
func (s *Store) LoadLinked(ctx context.Context, placeID string) ([]rental.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := s.snapshot()
	p, ok := st.objects[rental.KindPlace][placeID].(*rental.Place)
	if !ok {
		return nil, nil
	}
	out := make([]rental.Entity, 0, len(p.AmenityIDs))
	for _, id := range p.AmenityIDs {
		if a, ok := st.objects[rental.KindAmenity][id]; ok {
			out = append(out, rental.Clone(a))
		}
	}
	return out, nil
}

// Count implements storage.Driver.
func (s *Store) Count(ctx context.Context, kind rental.Kind) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(s.snapshot().objects[kind]), nil
}

// Commit implements storage.Driver. The changeset is applied to a copy of
// committed state, written to disk, and only then made visible.
func (s *Store) Commit(ctx context.Context, cs storage.Changeset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}

	next := s.snapshot().clone()
	if err := next.apply(cs); err != nil {
		return err
	}
	if s.path != "" {
		data, err := encodeSnapshot(next.objects)
		if err != nil {
			return err
		}
		if err := writeFile(s.path, data); err != nil {
			return fmt.Errorf("write %s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	return nil
}

type fkKey struct {
	child    rental.Kind
	parent   rental.Kind
	parentID string
}

// state is an immutable-once-published view of the catalog. Entities held
// here are never handed out directly; callers receive clones.
type state struct {
	objects map[rental.Kind]map[string]rental.Entity
	fk      map[fkKey]map[string]struct{}
	emails  map[string]string
}

func newState() *state {
	return &state{
		objects: emptyObjects(),
		fk:      make(map[fkKey]map[string]struct{}),
		emails:  make(map[string]string),
	}
}

func stateFrom(objects map[rental.Kind]map[string]rental.Entity) *state {
	st := newState()
	for _, k := range rental.Kinds() {
		for _, e := range objects[k] {
			st.put(e)
		}
	}
	return st
}

func (st *state) size() int {
	n := 0
	for _, byID := range st.objects {
		n += len(byID)
	}
	return n
}

// clone copies the indexes. Entity values are shared since they are
// replaced, never mutated, once published.
func (st *state) clone() *state {
	next := &state{
		objects: make(map[rental.Kind]map[string]rental.Entity, len(st.objects)),
		fk:      make(map[fkKey]map[string]struct{}, len(st.fk)),
		emails:  maps.Clone(st.emails),
	}
	for k, byID := range st.objects {
		next.objects[k] = maps.Clone(byID)
	}
	for k, ids := range st.fk {
		next.fk[k] = maps.Clone(ids)
	}
	return next
}

func (st *state) children(rel rental.Relation, parentID string) []string {
	ids := st.fk[fkKey{child: rel.Child, parent: rel.Parent, parentID: parentID}]
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (st *state) exists(kind rental.Kind, id string) bool {
	_, ok := st.objects[kind][id]
	return ok
}

// put stores e and indexes it. Any previous version must have been removed
// with unindex first.
func (st *state) put(e rental.Entity) {
	id := e.Meta().ID
	st.objects[e.Kind()][id] = e
	for _, rel := range rental.ParentRelations(e.Kind()) {
		key := fkKey{child: rel.Child, parent: rel.Parent, parentID: e.ParentID(rel.Parent)}
		if st.fk[key] == nil {
			st.fk[key] = make(map[string]struct{})
		}
		st.fk[key][id] = struct{}{}
	}
	if u, ok := e.(*rental.User); ok {
		st.emails[u.Email] = id
	}
}

func (st *state) unindex(e rental.Entity) {
	id := e.Meta().ID
	for _, rel := range rental.ParentRelations(e.Kind()) {
		key := fkKey{child: rel.Child, parent: rel.Parent, parentID: e.ParentID(rel.Parent)}
		delete(st.fk[key], id)
		if len(st.fk[key]) == 0 {
			delete(st.fk, key)
		}
	}
	if u, ok := e.(*rental.User); ok && st.emails[u.Email] == id {
		delete(st.emails, u.Email)
	}
}

func (st *state) apply(cs storage.Changeset) error {
	// linked holds, per place, the amenity ids this changeset links.
	linked := make(map[string][]string)

	for _, e := range cs.Inserts {
		if st.exists(e.Kind(), e.Meta().ID) {
			return fmt.Errorf("%s %s already exists: %w", e.Kind(), e.Meta().ID, storage.ErrConflict)
		}
		if err := st.checkParents(e); err != nil {
			return err
		}
		if err := st.checkEmail(e); err != nil {
			return err
		}
		st.put(rental.Clone(e))
		if p, ok := e.(*rental.Place); ok {
			linked[p.ID] = p.AmenityIDs
		}
	}

	for _, u := range cs.Updates {
		e := u.Entity
		prev, ok := st.objects[e.Kind()][e.Meta().ID]
		if !ok {
			return fmt.Errorf("%s %s: %w", e.Kind(), e.Meta().ID, storage.ErrNotFound)
		}
		if err := st.checkParents(e); err != nil {
			return err
		}
		st.unindex(prev)
		if err := st.checkEmail(e); err != nil {
			return err
		}
		next := rental.Clone(e)
		if p, ok := next.(*rental.Place); ok {
			linked[p.ID] = mergePlaceLinks(p, prev, u.Previous)
		}
		st.put(next)
	}

	for _, e := range cs.Deletes {
		st.cascade(e.Kind(), e.Meta().ID)
	}

	for id, aids := range linked {
		p, ok := st.objects[rental.KindPlace][id].(*rental.Place)
		if !ok {
			continue
		}
		for _, aid := range aids {
			if p.HasAmenity(aid) && !st.exists(rental.KindAmenity, aid) {
				return fmt.Errorf("place %s links amenity %s: %w", id, aid, storage.ErrMissingReference)
			}
		}
	}
	return nil
}

// mergePlaceLinks rebases the session's link change onto the committed link
// set, so links written by other sessions since the place was read survive.
// It returns the ids the change adds.
func mergePlaceLinks(next *rental.Place, committed, previous rental.Entity) []string {
	var current, before []string
	if c, ok := committed.(*rental.Place); ok {
		current = c.AmenityIDs
	}
	if p, ok := previous.(*rental.Place); ok {
		before = p.AmenityIDs
	}
	merged, added := rental.MergeLinks(current, before, next.AmenityIDs)
	next.AmenityIDs = merged
	return added
}

func (st *state) checkParents(e rental.Entity) error {
	for _, rel := range rental.ParentRelations(e.Kind()) {
		pid := e.ParentID(rel.Parent)
		if !st.exists(rel.Parent, pid) {
			return fmt.Errorf("%s %s: %s %q: %w", e.Kind(), e.Meta().ID, rel.Field, pid, storage.ErrMissingReference)
		}
	}
	return nil
}

func (st *state) checkEmail(e rental.Entity) error {
	u, ok := e.(*rental.User)
	if !ok {
		return nil
	}
	if owner, taken := st.emails[u.Email]; taken && owner != u.ID {
		return fmt.Errorf("email %q: %w", u.Email, storage.ErrConflict)
	}
	return nil
}

// cascade removes kind/id and, recursively, everything that references it.
// Deleting an amenity also drops it from every place's link set.
func (st *state) cascade(kind rental.Kind, id string) {
	e, ok := st.objects[kind][id]
	if !ok {
		return
	}
	for _, rel := range rental.ChildRelations(kind) {
		for _, childID := range st.children(rel, id) {
			st.cascade(rel.Child, childID)
		}
	}
	if kind == rental.KindAmenity {
		for pid, pe := range st.objects[rental.KindPlace] {
			p := pe.(*rental.Place)
			if !p.HasAmenity(id) {
				continue
			}
			updated := rental.Clone(p).(*rental.Place)
			updated.UnlinkAmenity(id)
			st.objects[rental.KindPlace][pid] = updated
		}
	}
	st.unindex(e)
	delete(st.objects[kind], id)
}
