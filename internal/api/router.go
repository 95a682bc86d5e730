// Package api is the HTTP surface of the photo storage backend.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/cjeanneret/FotoBoo/internal/photostore"
)

// DefaultMaxUploadBytes is the upload cap when Options leaves it unset.
const DefaultMaxUploadBytes = 10 << 20

var tracer = otel.Tracer("github.com/cjeanneret/FotoBoo/internal/api")

// Options configures the router.
type Options struct {
	MaxUploadBytes int64
	CORSOrigin     string // "*" if empty
}

// NewRouter returns the backend handler:
//
//	POST /photos                 raw image body -> 201 {id, created_at}
//	GET  /photos/{id}            stored bytes
//	GET  /photos/{id}/thumbnail  300x300 JPEG
//	GET  /health
func NewRouter(svc *photostore.Service, o Options) http.Handler {
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if o.CORSOrigin == "" {
		o.CORSOrigin = "*"
	}
	h := &Handlers{photos: svc, maxUpload: o.MaxUploadBytes, thumbs: newThumbCache(256)}

	r := mux.NewRouter()
	r.Use(traceMiddleware)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/photos", h.UploadPhoto).Methods(http.MethodPost)
	r.HandleFunc("/photos/{id}", h.GetPhoto).Methods(http.MethodGet)
	r.HandleFunc("/photos/{id}/thumbnail", h.GetThumbnail).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return cors(o.CORSOrigin, r)
}

// cors answers preflight requests and decorates every response.
func cors(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// traceMiddleware opens one span per matched route, continuing the caller's
// trace when the kiosk sent one.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				name = tpl
			}
		}
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method+" "+name, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		span.SetAttributes(attribute.String("http.request.method", r.Method), attribute.String("http.route", name))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
