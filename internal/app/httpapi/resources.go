package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
)

func (h *handler) list(kind rental.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.session(w, r)
		if !ok {
			return
		}
		items, err := h.catalog.List(r.Context(), sess, kind)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.writeEntities(w, r, items)
	}
}

func (h *handler) get(kind rental.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.session(w, r)
		if !ok {
			return
		}
		e, err := h.catalog.Get(r.Context(), sess, kind, mux.Vars(r)["id"])
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.writeEntity(w, r, http.StatusOK, e)
	}
}

func (h *handler) create(kind rental.Kind) http.HandlerFunc {
	return h.createUnder(kind, func(*http.Request) string { return "" })
}

func (h *handler) createChild(kind rental.Kind) http.HandlerFunc {
	return h.createUnder(kind, func(r *http.Request) string { return mux.Vars(r)["id"] })
}

func (h *handler) createUnder(kind rental.Kind, parentID func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.session(w, r)
		if !ok {
			return
		}
		body, err := readBody(w, r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		e, err := h.catalog.Create(r.Context(), sess, kind, parentID(r), body)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.writeEntity(w, r, http.StatusCreated, e)
	}
}

func (h *handler) update(kind rental.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.session(w, r)
		if !ok {
			return
		}
		body, err := readBody(w, r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		e, err := h.catalog.Update(r.Context(), sess, kind, mux.Vars(r)["id"], body)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.writeEntity(w, r, http.StatusOK, e)
	}
}

func (h *handler) remove(kind rental.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.session(w, r)
		if !ok {
			return
		}
		if err := h.catalog.Delete(r.Context(), sess, kind, mux.Vars(r)["id"]); err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, struct{}{})
	}
}

func (h *handler) listChildren(parent, child rental.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := h.session(w, r)
		if !ok {
			return
		}
		items, err := h.catalog.Children(r.Context(), sess, parent, mux.Vars(r)["id"], child)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.writeEntities(w, r, items)
	}
}

func (h *handler) placeAmenities(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	amenities, err := h.catalog.Amenities(r.Context(), sess, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]rental.Entity, 0, len(amenities))
	for _, a := range amenities {
		out = append(out, a)
	}
	h.writeEntities(w, r, out)
}

func (h *handler) linkAmenity(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	amenity, created, err := h.catalog.LinkAmenity(r.Context(), sess, vars["id"], vars["amenity_id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeEntity(w, r, status, amenity)
}

func (h *handler) unlinkAmenity(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := h.catalog.UnlinkAmenity(r.Context(), sess, vars["id"], vars["amenity_id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *handler) searchPlaces(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	places, err := h.catalog.Search(r.Context(), sess, body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]rental.Entity, 0, len(places))
	for _, p := range places {
		out = append(out, p)
	}
	h.writeEntities(w, r, out)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	counts, err := h.catalog.Stats(r.Context(), sess)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
