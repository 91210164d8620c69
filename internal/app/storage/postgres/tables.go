package postgres

import (
	"fmt"
	"strings"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
)

// table maps a kind onto its relational table. Columns are listed in the
// order values returns them, id first.
type table struct {
	name    string
	columns []string
	values  func(rental.Entity) []any
}

var tables = map[rental.Kind]table{
	rental.KindState: {
		name:    "states",
		columns: []string{"id", "created_at", "updated_at", "name"},
		values: func(e rental.Entity) []any {
			s := e.(*rental.State)
			return []any{s.ID, s.CreatedAt, s.UpdatedAt, s.Name}
		},
	},
	rental.KindCity: {
		name:    "cities",
		columns: []string{"id", "created_at", "updated_at", "state_id", "name"},
		values: func(e rental.Entity) []any {
			c := e.(*rental.City)
			return []any{c.ID, c.CreatedAt, c.UpdatedAt, c.StateID, c.Name}
		},
	},
	rental.KindUser: {
		name:    "users",
		columns: []string{"id", "created_at", "updated_at", "email", "password", "first_name", "last_name"},
		values: func(e rental.Entity) []any {
			u := e.(*rental.User)
			return []any{u.ID, u.CreatedAt, u.UpdatedAt, u.Email, u.Password, u.FirstName, u.LastName}
		},
	},
	rental.KindPlace: {
		name: "places",
		columns: []string{
			"id", "created_at", "updated_at", "city_id", "user_id", "name", "description",
			"number_rooms", "number_bathrooms", "max_guest", "price_by_night", "latitude", "longitude",
		},
		values: func(e rental.Entity) []any {
			p := e.(*rental.Place)
			return []any{
				p.ID, p.CreatedAt, p.UpdatedAt, p.CityID, p.UserID, p.Name, p.Description,
				p.NumberRooms, p.NumberBathrooms, p.MaxGuest, p.PriceByNight, p.Latitude, p.Longitude,
			}
		},
	},
	rental.KindReview: {
		name:    "reviews",
		columns: []string{"id", "created_at", "updated_at", "place_id", "user_id", "text"},
		values: func(e rental.Entity) []any {
			r := e.(*rental.Review)
			return []any{r.ID, r.CreatedAt, r.UpdatedAt, r.PlaceID, r.UserID, r.Text}
		},
	},
	rental.KindAmenity: {
		name:    "amenities",
		columns: []string{"id", "created_at", "updated_at", "name"},
		values: func(e rental.Entity) []any {
			a := e.(*rental.Amenity)
			return []any{a.ID, a.CreatedAt, a.UpdatedAt, a.Name}
		},
	},
}

func tableFor(kind rental.Kind) (table, bool) {
	t, ok := tables[kind]
	return t, ok
}

func (t table) selectList(alias string) string {
	if alias == "" {
		return strings.Join(t.columns, ", ")
	}
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func (t table) selectBy(where string) string {
	q := fmt.Sprintf("SELECT %s FROM %s", t.selectList(""), t.name)
	if where != "" {
		q += " WHERE " + where
	}
	return q + " ORDER BY created_at, id"
}

func (t table) insertSQL() string {
	marks := make([]string, len(t.columns))
	for i := range t.columns {
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(t.columns, ", "), strings.Join(marks, ", "))
}

// updateSQL rewrites every column except id and created_at. The id is
// always $1.
func (t table) updateSQL() string {
	sets := make([]string, 0, len(t.columns))
	n := 1
	for _, c := range t.columns {
		if c == "id" || c == "created_at" {
			continue
		}
		n++
		sets = append(sets, fmt.Sprintf("%s = $%d", c, n))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", t.name, strings.Join(sets, ", "))
}

// updateArgs matches updateSQL: id, then every column after created_at.
func (t table) updateArgs(e rental.Entity) []any {
	vals := t.values(e)
	return append([]any{vals[0]}, vals[2:]...)
}

func (t table) deleteSQL() string {
	return fmt.Sprintf("DELETE FROM %s WHERE id = $1", t.name)
}

func (t table) countSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", t.name)
}
