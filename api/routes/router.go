package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cantadelicia/estanquillo-backend/api/controllers"
	"github.com/cantadelicia/estanquillo-backend/api/middleware"
	"github.com/cantadelicia/estanquillo-backend/internal/authsession"
	"github.com/cantadelicia/estanquillo-backend/internal/catalog"
	"github.com/cantadelicia/estanquillo-backend/internal/register"
	"github.com/cantadelicia/estanquillo-backend/internal/sales"
	"github.com/cantadelicia/estanquillo-backend/pkg/config"
	"github.com/cantadelicia/estanquillo-backend/pkg/db"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	clientDeps controllers.ClientDeps,
	approvals *authsession.Approvals,
	saleFactory *sales.Factory,
	gate *register.Gate,
	products *catalog.Repository,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(products, logg))
			r.Get("/{productId}", controllers.ProductDetail(products, logg))
			r.With(middleware.RequireSupervisor(logg)).Post("/", controllers.ProductCreate(products, logg))
			r.With(middleware.RequireSupervisor(logg)).Put("/{productId}", controllers.ProductUpdate(products, logg))
		})

		r.Route("/carts", func(r chi.Router) {
			r.Get("/", controllers.CartList(clientDeps, logg))
			r.Post("/", controllers.CartCreate(clientDeps, logg))
			r.Post("/{index}/switch", controllers.CartSwitch(clientDeps, logg))
			r.Delete("/{index}", controllers.CartClose(clientDeps, logg))
			r.Patch("/{index}/name", controllers.CartRename(clientDeps, logg))
			r.Post("/active/lines", controllers.CartAddLine(clientDeps, logg))
			r.Patch("/active/lines/{line}/quantity", controllers.CartSetLineQuantity(clientDeps, logg))
			r.Patch("/active/lines/{line}/price", controllers.CartSetLinePrice(clientDeps, logg))
			r.Patch("/active/sale-type", controllers.CartSetSaleType(clientDeps, logg))
			r.Patch("/active/payment-method", controllers.CartSetPaymentMethod(clientDeps, logg))
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/state", controllers.SessionState(clientDeps, logg))
			r.Post("/request", controllers.SessionRequest(clientDeps, logg))
			r.Delete("/request", controllers.SessionCancelRequest(clientDeps, logg))
			r.Post("/teardown", controllers.SessionTeardown(clientDeps, logg))
		})

		r.Route("/approvals", func(r chi.Router) {
			r.Use(middleware.RequireSupervisor(logg))
			r.Get("/", controllers.EditRequestList(approvals, logg))
			r.Post("/{requestId}/approve", controllers.EditRequestApprove(approvals, logg))
			r.Post("/{requestId}/deny", controllers.EditRequestDeny(approvals, logg))
		})

		r.Route("/register", func(r chi.Router) {
			r.Get("/", controllers.RegisterStatus(gate, logg))
			r.With(middleware.RequireSupervisor(logg)).Post("/open", controllers.RegisterOpen(gate, logg))
			r.With(middleware.RequireSupervisor(logg)).Post("/close", controllers.RegisterClose(gate, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", controllers.SaleList(saleFactory, logg))
			r.Get("/search", controllers.SaleSearch(saleFactory, logg))
			r.Post("/", controllers.SaleSubmit(clientDeps, saleFactory, logg))
			r.Post("/{saleId}/cancel", controllers.SaleCancel(saleFactory, logg))
		})
	})

	return r
}
