package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/metrics"
	"github.com/cwrk-planet/meet-bridge/internal/repository"
	"github.com/cwrk-planet/meet-bridge/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RoomPresence: сколько вкладок комнаты подключено к этому инстансу.
type RoomPresence interface {
	Count(room string) int
}

type Deps struct {
	// Store == nil: аналитика выключена, API отвечает 503
	Store          repository.Store
	Presence       RoomPresence
	WS             http.Handler
	Metrics        *metrics.Metrics
	StaleAfter     time.Duration
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := &Handlers{Store: d.Store, Presence: d.Presence, StaleAfter: d.StaleAfter}

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.OK(w, r, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", h.Ready)

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	// WS endpoint; без Timeout и Compress: соединение hijack-ится
	if d.WS != nil {
		r.Method(http.MethodGet, "/ws/meetings", d.WS)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(d.RequestTimeout))
		api.Use(middleware.Compress(5))

		api.Route("/sessions/{id}", func(rs chi.Router) {
			rs.Get("/", h.GetSession)
			rs.Get("/participants", h.ListParticipants)
		})
		api.Get("/rooms/{room}", h.GetRoom)
	})

	return r
}
