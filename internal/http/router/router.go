package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"service-dispatcher/internal/http/handlers"
	obs "service-dispatcher/internal/http/middleware"
	"service-dispatcher/internal/http/middleware/ratelimit"
	"service-dispatcher/internal/logx"
)

// New constructs a chi-based http.Handler with base middleware and routes.
// rl limits each client and perDelivery limits commands aimed at one delivery.
// Either may be nil.
func New(
	logger logx.Logger,
	h *handlers.Handlers,
	dispatch *handlers.DispatchHandler,
	drivers *handlers.DriverHandler,
	rl *ratelimit.Middleware,
	perDelivery *ratelimit.Middleware,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(obs.Observability(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/ping", h.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(h.HealthcheckHead))

	r.Group(func(r chi.Router) {
		if rl != nil {
			r.Use(rl.Handler())
		}

		r.Route("/deliveries/{id}", func(r chi.Router) {
			if perDelivery != nil {
				r.Use(perDelivery.Handler())
			}
			r.Post("/assign", dispatch.Assign)
			r.Put("/driver", dispatch.AssignDriver)
			r.Post("/emergency-replace", dispatch.EmergencyReplace)
			r.Post("/complete", dispatch.Complete)
			r.Post("/cancel", dispatch.Cancel)
			r.Post("/in-transit", dispatch.InTransit)
		})
		r.Put("/parcels/{id}/status", dispatch.ParcelStatus)
		r.Get("/drivers/nearby", drivers.Nearby)
		r.Get("/drivers/{id}/capacity", drivers.Capacity)
	})

	r.NotFound(http.HandlerFunc(h.NotFound))

	return r
}
