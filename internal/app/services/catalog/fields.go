package catalog

import (
	"math"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
)

// field is one client-settable attribute. Identifiers, timestamps and
// foreign keys are never listed, so bodies cannot overwrite them.
type field struct {
	name string
	set  func(e rental.Entity, v gjson.Result) error
}

func stringField(name string, assign func(e rental.Entity, v string)) field {
	return field{name: name, set: func(e rental.Entity, v gjson.Result) error {
		if v.Type != gjson.String {
			return invalid("%s must be a string", name)
		}
		assign(e, v.Str)
		return nil
	}}
}

func intField(name string, assign func(e rental.Entity, v int)) field {
	return field{name: name, set: func(e rental.Entity, v gjson.Result) error {
		if v.Type != gjson.Number || v.Num != math.Trunc(v.Num) {
			return invalid("%s must be an integer", name)
		}
		assign(e, int(v.Int()))
		return nil
	}}
}

func floatField(name string, assign func(e rental.Entity, v float64)) field {
	return field{name: name, set: func(e rental.Entity, v gjson.Result) error {
		if v.Type != gjson.Number {
			return invalid("%s must be a number", name)
		}
		assign(e, v.Float())
		return nil
	}}
}

var nameField = stringField("name", func(e rental.Entity, v string) {
	switch x := e.(type) {
	case *rental.State:
		x.Name = v
	case *rental.City:
		x.Name = v
	case *rental.Place:
		x.Name = v
	case *rental.Amenity:
		x.Name = v
	}
})

var mutable = map[rental.Kind][]field{
	rental.KindState:   {nameField},
	rental.KindCity:    {nameField},
	rental.KindAmenity: {nameField},
	rental.KindUser: {
		{name: "email", set: func(e rental.Entity, v gjson.Result) error {
			if v.Type != gjson.String {
				return invalid("email must be a string")
			}
			if strings.TrimSpace(v.Str) == "" {
				return invalid("email must not be empty")
			}
			e.(*rental.User).Email = v.Str
			return nil
		}},
		{name: "password", set: func(e rental.Entity, v gjson.Result) error {
			if v.Type != gjson.String {
				return invalid("password must be a string")
			}
			if err := e.(*rental.User).SetPassword(v.Str); err != nil {
				return invalid("%v", err)
			}
			return nil
		}},
		stringField("first_name", func(e rental.Entity, v string) { e.(*rental.User).FirstName = v }),
		stringField("last_name", func(e rental.Entity, v string) { e.(*rental.User).LastName = v }),
	},
	rental.KindPlace: {
		nameField,
		stringField("description", func(e rental.Entity, v string) { e.(*rental.Place).Description = v }),
		intField("number_rooms", func(e rental.Entity, v int) { e.(*rental.Place).NumberRooms = v }),
		intField("number_bathrooms", func(e rental.Entity, v int) { e.(*rental.Place).NumberBathrooms = v }),
		intField("max_guest", func(e rental.Entity, v int) { e.(*rental.Place).MaxGuest = v }),
		intField("price_by_night", func(e rental.Entity, v int) { e.(*rental.Place).PriceByNight = v }),
		floatField("latitude", func(e rental.Entity, v float64) { e.(*rental.Place).Latitude = v }),
		floatField("longitude", func(e rental.Entity, v float64) { e.(*rental.Place).Longitude = v }),
	},
	rental.KindReview: {
		stringField("text", func(e rental.Entity, v string) { e.(*rental.Review).Text = v }),
	},
}

// required lists the body keys a create request must carry.
var required = map[rental.Kind][]string{
	rental.KindState:   {"name"},
	rental.KindCity:    {"name"},
	rental.KindAmenity: {"name"},
	rental.KindUser:    {"email", "password"},
	rental.KindPlace:   {"user_id", "name"},
	rental.KindReview:  {"user_id", "text"},
}

// patch applies every allow-listed key present in body to e. Nothing is
// assigned unless every present key has the right type.
func patch(e rental.Entity, body gjson.Result) error {
	fields := mutable[e.Kind()]
	values := make([]gjson.Result, len(fields))
	for i, f := range fields {
		values[i] = body.Get(f.name)
	}

	staged := rental.Clone(e)
	for i, f := range fields {
		if !values[i].Exists() {
			continue
		}
		if err := f.set(staged, values[i]); err != nil {
			return err
		}
	}
	copyInto(e, staged)
	return nil
}

// copyInto overwrites dst's fields with src's, keeping dst's identity.
func copyInto(dst, src rental.Entity) {
	switch d := dst.(type) {
	case *rental.State:
		*d = *src.(*rental.State)
	case *rental.City:
		*d = *src.(*rental.City)
	case *rental.User:
		*d = *src.(*rental.User)
	case *rental.Place:
		*d = *src.(*rental.Place)
	case *rental.Review:
		*d = *src.(*rental.Review)
	case *rental.Amenity:
		*d = *src.(*rental.Amenity)
	}
}

// parseObject validates that body is a JSON object.
func parseObject(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errNotJSON
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return gjson.Result{}, errNotJSON
	}
	return parsed, nil
}

func checkRequired(kind rental.Kind, body gjson.Result) error {
	for _, key := range required[kind] {
		if !body.Get(key).Exists() {
			return invalid("Missing %s", key)
		}
	}
	return nil
}

// stringAt returns the string stored under key, or a validation error.
func stringAt(body gjson.Result, key string) (string, error) {
	v := body.Get(key)
	if v.Type != gjson.String {
		return "", invalid("%s must be a string", key)
	}
	return v.Str, nil
}
