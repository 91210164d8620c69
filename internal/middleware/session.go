package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hbnb-network/catalog_layer/internal/app/storage"
	"github.com/hbnb-network/catalog_layer/pkg/logger"
)

// SessionMiddleware opens a storage session for every request and closes it
// once the handler returns. Handlers retrieve it with storage.SessionFrom.
func SessionMiddleware(engine storage.Engine, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := engine.Open(r.Context())
			if err != nil {
				log.WithError(err).WithField("trace_id", logger.TraceID(r.Context())).Error("open storage session")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "storage unavailable"})
				return
			}
			defer func() {
				if err := sess.Close(); err != nil {
					log.WithError(err).Warn("close storage session")
				}
			}()
			next.ServeHTTP(w, r.WithContext(storage.WithSession(r.Context(), sess)))
		})
	}
}
