package rental

import "slices"

// State is a top-level region owning cities.
type State struct {
	Base
	Name string `json:"name" db:"name"`
}

func (*State) Kind() Kind { return KindState }
func (*State) ParentID(Kind) string { return "" }

// City belongs to a state and owns places.
type City struct {
	Base
	StateID string `json:"state_id" db:"state_id"`
	Name    string `json:"name" db:"name"`
}

func (*City) Kind() Kind { return KindCity }

func (c *City) ParentID(parent Kind) string {
	if parent == KindState {
		return c.StateID
	}
	return ""
}

// Place is a rentable listing owned by a user in a city.
type Place struct {
	Base
	CityID          string  `json:"city_id" db:"city_id"`
	UserID          string  `json:"user_id" db:"user_id"`
	Name            string  `json:"name" db:"name"`
	Description     string  `json:"description" db:"description"`
	NumberRooms     int     `json:"number_rooms" db:"number_rooms"`
	NumberBathrooms int     `json:"number_bathrooms" db:"number_bathrooms"`
	MaxGuest        int     `json:"max_guest" db:"max_guest"`
	PriceByNight    int     `json:"price_by_night" db:"price_by_night"`
	Latitude        float64 `json:"latitude" db:"latitude"`
	Longitude       float64 `json:"longitude" db:"longitude"`

	// AmenityIDs is the place's side of the place/amenity link set.
	AmenityIDs []string `json:"amenity_ids" db:"-"`
}

func (*Place) Kind() Kind { return KindPlace }

func (p *Place) ParentID(parent Kind) string {
	switch parent {
	case KindCity:
		return p.CityID
	case KindUser:
		return p.UserID
	default:
		return ""
	}
}

// HasAmenity reports whether the amenity is linked to the place.
func (p *Place) HasAmenity(amenityID string) bool {
	return slices.Contains(p.AmenityIDs, amenityID)
}

// LinkAmenity adds the amenity to the link set. It returns false if the
// amenity was already linked.
func (p *Place) LinkAmenity(amenityID string) bool {
	if p.HasAmenity(amenityID) {
		return false
	}
	p.AmenityIDs = append(p.AmenityIDs, amenityID)
	return true
}

// UnlinkAmenity removes the amenity from the link set. It returns false if
// the amenity was not linked.
func (p *Place) UnlinkAmenity(amenityID string) bool {
	idx := slices.Index(p.AmenityIDs, amenityID)
	if idx < 0 {
		return false
	}
	p.AmenityIDs = slices.Delete(p.AmenityIDs, idx, idx+1)
	return true
}

// DiffLinks returns the ids present in before but not after, and the ids
// present in after but not before.
func DiffLinks(before, after []string) (removed, added []string) {
	for _, id := range before {
		if !slices.Contains(after, id) {
			removed = append(removed, id)
		}
	}
	for _, id := range after {
		if !slices.Contains(before, id) {
			added = append(added, id)
		}
	}
	return removed, added
}

// MergeLinks applies the change between before and after to current and
// returns the resulting link set along with the ids the change adds.
func MergeLinks(current, before, after []string) (merged, added []string) {
	removed, added := DiffLinks(before, after)
	merged = make([]string, 0, len(current)+len(added))
	for _, id := range current {
		if !slices.Contains(removed, id) && !slices.Contains(merged, id) {
			merged = append(merged, id)
		}
	}
	for _, id := range added {
		if !slices.Contains(merged, id) {
			merged = append(merged, id)
		}
	}
	return merged, added
}

// Review is a user's text review of a place.
type Review struct {
	Base
	PlaceID string `json:"place_id" db:"place_id"`
	UserID  string `json:"user_id" db:"user_id"`
	Text    string `json:"text" db:"text"`
}

func (*Review) Kind() Kind { return KindReview }

func (r *Review) ParentID(parent Kind) string {
	switch parent {
	case KindPlace:
		return r.PlaceID
	case KindUser:
		return r.UserID
	default:
		return ""
	}
}

// Amenity is a feature that any number of places can share.
type Amenity struct {
	Base
	Name string `json:"name" db:"name"`
}

func (*Amenity) Kind() Kind { return KindAmenity }
func (*Amenity) ParentID(Kind) string { return "" }
