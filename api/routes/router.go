package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/danielvega/tradeyard-backend/api/controllers"
	ordercontrollers "github.com/danielvega/tradeyard-backend/api/controllers/orders"
	"github.com/danielvega/tradeyard-backend/api/middleware"
	internalorders "github.com/danielvega/tradeyard-backend/internal/orders"
	"github.com/danielvega/tradeyard-backend/pkg/config"
	"github.com/danielvega/tradeyard-backend/pkg/db"
	"github.com/danielvega/tradeyard-backend/pkg/logger"
	"github.com/danielvega/tradeyard-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	ordersSvc internalorders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Identity(logg))

		r.Post("/", ordercontrollers.Create(ordersSvc, logg))
		r.Get("/", ordercontrollers.List(ordersSvc, logg))

		r.Route("/{orderId}", func(r chi.Router) {
			r.Get("/", ordercontrollers.Detail(ordersSvc, logg))
			r.Post("/pay", ordercontrollers.Pay(ordersSvc, logg))
			r.Post("/ship", ordercontrollers.Ship(ordersSvc, logg))
			r.Post("/confirm", ordercontrollers.Confirm(ordersSvc, logg))
			r.Post("/cancel", ordercontrollers.Cancel(ordersSvc, logg))
		})
	})

	return r
}
