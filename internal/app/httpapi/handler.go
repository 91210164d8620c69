// Package httpapi exposes the catalog over a JSON REST API.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hbnb-network/catalog_layer/internal/app/domain/rental"
	"github.com/hbnb-network/catalog_layer/internal/app/metrics"
	"github.com/hbnb-network/catalog_layer/internal/app/services/catalog"
	"github.com/hbnb-network/catalog_layer/internal/app/storage"
	"github.com/hbnb-network/catalog_layer/internal/middleware"
	"github.com/hbnb-network/catalog_layer/pkg/logger"
)

// APIPrefix is the versioned mount point. Routes are also served at the
// root for older clients.
const APIPrefix = "/api/v1"

// Options configures the HTTP handler.
type Options struct {
	Engine      storage.Engine
	Catalog     *catalog.Service
	Logger      *logger.Logger
	CORSOrigins []string
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
}

// handler bundles HTTP endpoints for the catalog service.
type handler struct {
	catalog *catalog.Service
	backend string
	log     *logger.Logger
}

// NewHandler returns the fully wired API handler.
func NewHandler(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	svc := opts.Catalog
	if svc == nil {
		svc = catalog.New(nil, log)
	}
	h := &handler{catalog: svc, backend: opts.Engine.Name(), log: log}

	root := mux.NewRouter()
	root.NotFoundHandler = http.HandlerFunc(h.notFound)
	root.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)
	root.Use(middleware.LoggingMiddleware(log), middleware.MetricsMiddleware(), middleware.SessionMiddleware(opts.Engine, log))

	root.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	root.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)

	h.routes(root.PathPrefix(APIPrefix).Subrouter())
	h.routes(root)

	var out http.Handler = root
	if len(opts.CORSOrigins) > 0 {
		out = middleware.NewCORSMiddleware(opts.CORSOrigins).Handler(out)
	}
	if opts.RateLimiter != nil {
		out = opts.RateLimiter.Handler(out)
	}
	return out
}

func (h *handler) routes(r *mux.Router) {
	r.HandleFunc("/status", h.status).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.stats).Methods(http.MethodGet)

	h.collection(r, "/states", rental.KindState)
	h.item(r, "/states/{id}", rental.KindState)
	h.nested(r, "/states/{id}/cities", rental.KindState, rental.KindCity)
	h.item(r, "/cities/{id}", rental.KindCity)

	h.collection(r, "/users", rental.KindUser)
	h.item(r, "/users/{id}", rental.KindUser)

	h.collection(r, "/amenities", rental.KindAmenity)
	h.item(r, "/amenities/{id}", rental.KindAmenity)

	h.nested(r, "/cities/{id}/places", rental.KindCity, rental.KindPlace)
	h.item(r, "/places/{id}", rental.KindPlace)
	h.nested(r, "/places/{id}/reviews", rental.KindPlace, rental.KindReview)
	h.item(r, "/reviews/{id}", rental.KindReview)

	r.HandleFunc("/places/{id}/amenities", h.placeAmenities).Methods(http.MethodGet)
	r.HandleFunc("/places/{id}/amenities/{amenity_id}", h.linkAmenity).Methods(http.MethodPost)
	r.HandleFunc("/places/{id}/amenities/{amenity_id}", h.unlinkAmenity).Methods(http.MethodDelete)
	r.HandleFunc("/places_search", h.searchPlaces).Methods(http.MethodPost)

	// Legacy city listing kept for older clients; registered last so the
	// named collections above win.
	r.HandleFunc("/{id}/places", h.listChildren(rental.KindCity, rental.KindPlace)).Methods(http.MethodGet)
}

func (h *handler) collection(r *mux.Router, path string, kind rental.Kind) {
	r.HandleFunc(path, h.list(kind)).Methods(http.MethodGet)
	r.HandleFunc(path, h.create(kind)).Methods(http.MethodPost)
}

func (h *handler) item(r *mux.Router, path string, kind rental.Kind) {
	r.HandleFunc(path, h.get(kind)).Methods(http.MethodGet)
	r.HandleFunc(path, h.update(kind)).Methods(http.MethodPut)
	r.HandleFunc(path, h.remove(kind)).Methods(http.MethodDelete)
}

func (h *handler) nested(r *mux.Router, path string, parent, child rental.Kind) {
	r.HandleFunc(path, h.listChildren(parent, child)).Methods(http.MethodGet)
	r.HandleFunc(path, h.createChild(child)).Methods(http.MethodPost)
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "storage": h.backend})
}

func (h *handler) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

func (h *handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
}
