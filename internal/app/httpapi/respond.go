package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
	"github.com/hbnb-network/catalog_layer/internal/app/services/catalog"
	"github.com/hbnb-network/catalog_layer/internal/app/storage"
	"github.com/hbnb-network/catalog_layer/pkg/logger"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

var (
	errNoSession    = errors.New("no storage session bound to request")
	errBodyTooLarge = errors.New("request body too large")
)

func (h *handler) session(w http.ResponseWriter, r *http.Request) (storage.Session, bool) {
	sess, ok := storage.SessionFrom(r.Context())
	if !ok {
		h.fail(w, r, errNoSession)
		return nil, false
	}
	return sess, true
}

// statusFor maps service and storage errors onto HTTP statuses and the
// message shown to clients.
func statusFor(err error) (int, string) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrMissingReference):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "Conflict"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).
			WithField("path", r.URL.Path).
			WithField("trace_id", logger.TraceID(r.Context())).
			Error("request failed")
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, err
	}
	return body, nil
}

// render turns an entity into its API representation: every JSON field plus
// "__class__", never the password hash.
func render(e rental.Entity) (map[string]any, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", e.Kind(), e.Meta().ID, err)
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", e.Kind(), e.Meta().ID, err)
	}
	delete(out, "password")
	out["__class__"] = string(e.Kind())
	return out, nil
}

func renderAll(es []rental.Entity) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(es))
	for _, e := range es {
		m, err := render(e)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (h *handler) writeEntity(w http.ResponseWriter, r *http.Request, status int, e rental.Entity) {
	body, err := render(e)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, body)
}

func (h *handler) writeEntities(w http.ResponseWriter, r *http.Request, es []rental.Entity) {
	body, err := renderAll(es)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
