// Package search resolves place filters by walking catalog relationships
// through a storage session. It never touches backend internals.
package search

import (
	"context"
	"slices"
	"strings"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
	"github.com/hbnb-network/catalog_layer/internal/app/storage"
	"github.com/hbnb-network/catalog_layer/pkg/logger"
)

// Filter selects places. States and Cities widen the candidate set (union);
// Amenities narrows it (a place must carry every listed amenity). An empty
// or absent list does not restrict.
type Filter struct {
	States    []string `json:"states"`
	Cities    []string `json:"cities"`
	Amenities []string `json:"amenities"`
}

// Empty reports whether no category restricts the result.
func (f Filter) Empty() bool {
	return len(f.States) == 0 && len(f.Cities) == 0 && len(f.Amenities) == 0
}

// ResultObserver receives the size of each search result.
type ResultObserver func(n int)

// Engine runs place searches.
type Engine struct {
	log     *logger.Logger
	observe ResultObserver
}

// New returns a search engine. observe may be nil.
func New(log *logger.Logger, observe ResultObserver) *Engine {
	if log == nil {
		log = logger.NewDefault("search")
	}
	return &Engine{log: log, observe: observe}
}

// Places returns every place matching f, each at most once, ordered by
// creation time then id.
func (e *Engine) Places(ctx context.Context, sess storage.Session, f Filter) ([]*rental.Place, error) {
	var (
		candidates []*rental.Place
		err        error
	)
	if len(f.States) == 0 && len(f.Cities) == 0 {
		candidates, err = allPlaces(ctx, sess)
	} else {
		candidates, err = placesInCities(ctx, sess, f)
	}
	if err != nil {
		return nil, err
	}

	if want := newIDSet(f.Amenities...); len(want) > 0 {
		kept := candidates[:0]
		for _, p := range candidates {
			ok, err := hasAll(ctx, sess, p, want)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, p)
			}
		}
		candidates = kept
	}

	sortPlaces(candidates)
	e.log.WithField("states", len(f.States)).
		WithField("cities", len(f.Cities)).
		WithField("amenities", len(f.Amenities)).
		Debugf("search matched %d places", len(candidates))
	if e.observe != nil {
		e.observe(len(candidates))
	}
	return candidates, nil
}

func allPlaces(ctx context.Context, sess storage.Session) ([]*rental.Place, error) {
	all, err := sess.All(ctx, rental.KindPlace)
	if err != nil {
		return nil, err
	}
	out := make([]*rental.Place, 0, len(all))
	for _, e := range all {
		if p, ok := e.(*rental.Place); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// placesInCities gathers every place in the listed cities and in the cities
// of the listed states. Unknown ids contribute nothing.
func placesInCities(ctx context.Context, sess storage.Session, f Filter) ([]*rental.Place, error) {
	cities := newIDSet()
	for _, id := range f.States {
		st, ok, err := sess.Get(ctx, rental.KindState, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		children, err := sess.Children(ctx, st, rental.KindCity)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			cities.add(c.Meta().ID)
		}
	}
	cities.merge(newIDSet(f.Cities...))

	seen := newIDSet()
	var out []*rental.Place
	for _, id := range cities.sorted() {
		city, ok, err := sess.Get(ctx, rental.KindCity, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		children, err := sess.Children(ctx, city, rental.KindPlace)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			p, isPlace := c.(*rental.Place)
			if !isPlace || seen.has(p.ID) {
				continue
			}
			seen.add(p.ID)
			out = append(out, p)
		}
	}
	return out, nil
}

func hasAll(ctx context.Context, sess storage.Session, p *rental.Place, want idSet) (bool, error) {
	linked, err := sess.AmenitiesOf(ctx, p)
	if err != nil {
		return false, err
	}
	have := newIDSet()
	for _, a := range linked {
		have.add(a.ID)
	}
	return have.containsAll(want), nil
}

func sortPlaces(places []*rental.Place) {
	slices.SortFunc(places, func(a, b *rental.Place) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
