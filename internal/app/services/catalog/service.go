// Package catalog implements the business rules between the HTTP handlers
// and storage: validation, parent checks, allow-listed updates, amenity
// links and search.
package catalog

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
	"github.com/hbnb-network/catalog_layer/internal/app/search"
	"github.com/hbnb-network/catalog_layer/internal/app/storage"
	"github.com/hbnb-network/catalog_layer/pkg/logger"
)

// Service operates on the session carried by each call. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	search *search.Engine
	log    *logger.Logger
}

// New constructs a catalog service.
func New(searchEngine *search.Engine, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	if searchEngine == nil {
		searchEngine = search.New(log, nil)
	}
	return &Service{search: searchEngine, log: log}
}

// Get returns the entity of kind with id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, sess storage.Session, kind rental.Kind, id string) (rental.Entity, error) {
	e, ok, err := sess.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(kind, id)
	}
	return e, nil
}

// List returns every entity of kind ordered by creation time.
func (s *Service) List(ctx context.Context, sess storage.Session, kind rental.Kind) ([]rental.Entity, error) {
	all, err := sess.All(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]rental.Entity, 0, len(all))
	for _, e := range all {
		out = append(out, e)
	}
	sortEntities(out)
	return out, nil
}

// Children returns the entities of kind owned by the given parent.
func (s *Service) Children(ctx context.Context, sess storage.Session, parent rental.Kind, parentID string, kind rental.Kind) ([]rental.Entity, error) {
	p, err := s.Get(ctx, sess, parent, parentID)
	if err != nil {
		return nil, err
	}
	children, err := sess.Children(ctx, p, kind)
	if err != nil {
		return nil, err
	}
	sortEntities(children)
	return children, nil
}

// Create builds a new entity of kind from body and saves it. parentID is
// the path-supplied owner (state for cities, city for places, place for
// reviews) and is ignored for top-level kinds.
func (s *Service) Create(ctx context.Context, sess storage.Session, kind rental.Kind, parentID string, body []byte) (rental.Entity, error) {
	e := rental.NewOf(kind)
	if e == nil {
		return nil, invalid("unknown kind %s", kind)
	}

	if pathParent, ok := pathParentOf(kind); ok {
		if _, err := s.Get(ctx, sess, pathParent, parentID); err != nil {
			return nil, err
		}
	}

	parsed, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	if err := checkRequired(kind, parsed); err != nil {
		return nil, err
	}

	var userID string
	if kind == rental.KindPlace || kind == rental.KindReview {
		if userID, err = stringAt(parsed, "user_id"); err != nil {
			return nil, err
		}
		if _, err := s.Get(ctx, sess, rental.KindUser, userID); err != nil {
			return nil, err
		}
	}

	switch x := e.(type) {
	case *rental.City:
		x.StateID = parentID
	case *rental.Place:
		x.CityID = parentID
		x.UserID = userID
	case *rental.Review:
		x.PlaceID = parentID
		x.UserID = userID
	}
	if err := patch(e, parsed); err != nil {
		return nil, err
	}

	sess.New(e)
	if err := sess.Save(ctx); err != nil {
		return nil, err
	}
	s.log.WithField("kind", kind).WithField("id", e.Meta().ID).Info("entity created")
	return e, nil
}

// Update applies the allow-listed keys of body to the entity and saves it.
func (s *Service) Update(ctx context.Context, sess storage.Session, kind rental.Kind, id string, body []byte) (rental.Entity, error) {
	e, err := s.Get(ctx, sess, kind, id)
	if err != nil {
		return nil, err
	}
	parsed, err := parseObject(body)
	if err != nil {
		return nil, err
	}
	if err := patch(e, parsed); err != nil {
		return nil, err
	}
	if err := sess.Save(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Delete removes the entity and everything that depends on it.
func (s *Service) Delete(ctx context.Context, sess storage.Session, kind rental.Kind, id string) error {
	e, err := s.Get(ctx, sess, kind, id)
	if err != nil {
		return err
	}
	sess.Delete(e)
	if err := sess.Save(ctx); err != nil {
		return err
	}
	s.log.WithField("kind", kind).WithField("id", id).Info("entity deleted")
	return nil
}

// Amenities lists the amenities linked to a place.
func (s *Service) Amenities(ctx context.Context, sess storage.Session, placeID string) ([]*rental.Amenity, error) {
	place, err := s.place(ctx, sess, placeID)
	if err != nil {
		return nil, err
	}
	amenities, err := sess.AmenitiesOf(ctx, place)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(amenities, func(a, b *rental.Amenity) int { return compareBase(&a.Base, &b.Base) })
	return amenities, nil
}

// LinkAmenity links an amenity to a place. created is false if the link
// already existed.
func (s *Service) LinkAmenity(ctx context.Context, sess storage.Session, placeID, amenityID string) (amenity *rental.Amenity, created bool, err error) {
	place, err := s.place(ctx, sess, placeID)
	if err != nil {
		return nil, false, err
	}
	e, err := s.Get(ctx, sess, rental.KindAmenity, amenityID)
	if err != nil {
		return nil, false, err
	}
	amenity = e.(*rental.Amenity)
	if !place.LinkAmenity(amenityID) {
		return amenity, false, nil
	}
	if err := sess.Save(ctx); err != nil {
		return nil, false, err
	}
	return amenity, true, nil
}

// UnlinkAmenity removes a link. Removing a link that does not exist is
// reported as ErrNotFound.
func (s *Service) UnlinkAmenity(ctx context.Context, sess storage.Session, placeID, amenityID string) error {
	place, err := s.place(ctx, sess, placeID)
	if err != nil {
		return err
	}
	if _, err := s.Get(ctx, sess, rental.KindAmenity, amenityID); err != nil {
		return err
	}
	if !place.UnlinkAmenity(amenityID) {
		return notFound("PlaceAmenity", placeID+"/"+amenityID)
	}
	return sess.Save(ctx)
}

// Search decodes a filter from body and returns the matching places.
func (s *Service) Search(ctx context.Context, sess storage.Session, body []byte) ([]*rental.Place, error) {
	if _, err := parseObject(body); err != nil {
		return nil, err
	}
	var f search.Filter
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, invalid("invalid search filter: %v", err)
	}
	return s.search.Places(ctx, sess, f)
}

// statsKeys names each kind in stats output.
var statsKeys = map[rental.Kind]string{
	rental.KindAmenity: "amenities",
	rental.KindCity:    "cities",
	rental.KindPlace:   "places",
	rental.KindReview:  "reviews",
	rental.KindState:   "states",
	rental.KindUser:    "users",
}

// Stats counts the entities of every kind.
func (s *Service) Stats(ctx context.Context, sess storage.Session) (map[string]int, error) {
	out := make(map[string]int, len(statsKeys))
	for kind, key := range statsKeys {
		n, err := sess.Count(ctx, kind)
		if err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, nil
}

func (s *Service) place(ctx context.Context, sess storage.Session, id string) (*rental.Place, error) {
	e, err := s.Get(ctx, sess, rental.KindPlace, id)
	if err != nil {
		return nil, err
	}
	return e.(*rental.Place), nil
}

// pathParentOf returns the kind whose id arrives in the URL when creating
// kind.
func pathParentOf(kind rental.Kind) (rental.Kind, bool) {
	switch kind {
	case rental.KindCity:
		return rental.KindState, true
	case rental.KindPlace:
		return rental.KindCity, true
	case rental.KindReview:
		return rental.KindPlace, true
	default:
		return "", false
	}
}

func sortEntities(es []rental.Entity) {
	slices.SortFunc(es, func(a, b rental.Entity) int { return compareBase(a.Meta(), b.Meta()) })
}

func compareBase(a, b *rental.Base) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
