package storage

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
)

// Update is a mutated entity together with its state as last loaded.
type Update struct {
	Entity   rental.Entity
	Previous rental.Entity
}

// Changeset is everything a Save has to apply. Inserts are ordered parents
// first so foreign keys resolve inside a single commit.
type Changeset struct {
	Inserts []rental.Entity
	Updates []Update
	Deletes []rental.Entity
}

// Empty reports whether the changeset has nothing to apply.
func (cs Changeset) Empty() bool {
	return len(cs.Inserts) == 0 && len(cs.Updates) == 0 && len(cs.Deletes) == 0
}

type entryState int

const (
	stateLoaded entryState = iota
	stateAdded
	stateDeleted
)

type trackKey struct {
	kind rental.Kind
	id   string
}

type entry struct {
	entity   rental.Entity
	original rental.Entity
	state    entryState
	seq      int
}

// tracker is the identity map behind a session.
type tracker struct {
	entries map[trackKey]*entry
	seq     int
}

func newTracker() *tracker {
	return &tracker{entries: make(map[trackKey]*entry)}
}

func keyOf(e rental.Entity) trackKey {
	return trackKey{kind: e.Kind(), id: e.Meta().ID}
}

func (t *tracker) next() int {
	t.seq++
	return t.seq
}

func (t *tracker) add(e rental.Entity) {
	e.Meta().GenerateID()
	k := keyOf(e)
	if cur, ok := t.entries[k]; ok {
		cur.entity = e
		if cur.state == stateDeleted {
			cur.state = stateLoaded
		}
		return
	}
	t.entries[k] = &entry{entity: e, state: stateAdded, seq: t.next()}
}

func (t *tracker) remove(e rental.Entity) {
	if e.Meta().ID == "" {
		return
	}
	k := keyOf(e)
	cur, ok := t.entries[k]
	if !ok {
		t.entries[k] = &entry{entity: e, original: rental.Clone(e), state: stateDeleted, seq: t.next()}
		return
	}
	if cur.state == stateAdded {
		delete(t.entries, k)
		return
	}
	cur.state = stateDeleted
}

// lookup returns the tracked entry for kind/id, if any.
func (t *tracker) lookup(kind rental.Kind, id string) (*entry, bool) {
	cur, ok := t.entries[trackKey{kind: kind, id: id}]
	return cur, ok
}

// resolve maps a freshly loaded entity onto the identity map. It returns
// nil if the entity is staged for deletion.
func (t *tracker) resolve(loaded rental.Entity) rental.Entity {
	k := keyOf(loaded)
	if cur, ok := t.entries[k]; ok {
		if cur.state == stateDeleted {
			return nil
		}
		return cur.entity
	}
	t.entries[k] = &entry{entity: loaded, original: rental.Clone(loaded), state: stateLoaded, seq: t.next()}
	return loaded
}

// pending returns staged inserts of kind in staging order.
func (t *tracker) pending(kind rental.Kind) []rental.Entity {
	var out []*entry
	for k, cur := range t.entries {
		if k.kind == kind && cur.state == stateAdded {
			out = append(out, cur)
		}
	}
	slices.SortFunc(out, func(a, b *entry) int { return a.seq - b.seq })
	result := make([]rental.Entity, 0, len(out))
	for _, cur := range out {
		result = append(result, cur.entity)
	}
	return result
}

// deletedCount returns how many persisted entities of kind are staged for
// deletion.
func (t *tracker) deletedCount(kind rental.Kind) int {
	n := 0
	for k, cur := range t.entries {
		if k.kind == kind && cur.state == stateDeleted {
			n++
		}
	}
	return n
}

func (e *entry) dirty() bool {
	if e.original == nil {
		return true
	}
	before, err1 := json.Marshal(e.original)
	after, err2 := json.Marshal(e.entity)
	if err1 != nil || err2 != nil {
		return true
	}
	return !bytes.Equal(before, after)
}

// changes collects the changeset and stamps timestamps on inserted and
// mutated entities.
func (t *tracker) changes(now time.Time) Changeset {
	ordered := make([]*entry, 0, len(t.entries))
	for _, cur := range t.entries {
		ordered = append(ordered, cur)
	}
	rank := make(map[rental.Kind]int)
	for i, k := range rental.Kinds() {
		rank[k] = i
	}
	slices.SortFunc(ordered, func(a, b *entry) int {
		if d := rank[a.entity.Kind()] - rank[b.entity.Kind()]; d != 0 {
			return d
		}
		return a.seq - b.seq
	})

	var cs Changeset
	for _, cur := range ordered {
		switch cur.state {
		case stateAdded:
			cur.entity.Meta().Touch(now)
			cs.Inserts = append(cs.Inserts, cur.entity)
		case stateDeleted:
			cs.Deletes = append(cs.Deletes, cur.entity)
		case stateLoaded:
			if cur.dirty() {
				cur.entity.Meta().Touch(now)
				cs.Updates = append(cs.Updates, Update{Entity: cur.entity, Previous: cur.original})
			}
		}
	}
	return cs
}

// commit rebases the identity map after a successful Save. Written entities
// become the new baseline. A changeset with deletes may have cascaded into
// anything else the session holds, so those entries are dropped and reloaded
// on next access.
func (t *tracker) commit(cs Changeset) {
	if len(cs.Deletes) > 0 {
		t.entries = make(map[trackKey]*entry, len(cs.Inserts)+len(cs.Updates))
	}
	written := append(slices.Clone(cs.Inserts), make([]rental.Entity, 0, len(cs.Updates))...)
	for _, u := range cs.Updates {
		written = append(written, u.Entity)
	}
	for _, e := range written {
		t.entries[keyOf(e)] = &entry{entity: e, original: rental.Clone(e), state: stateLoaded, seq: t.next()}
	}
}

func (t *tracker) reset() {
	t.entries = make(map[trackKey]*entry)
}
