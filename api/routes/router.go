package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nexusauctions/nexus-backend/api/controllers"
	"github.com/nexusauctions/nexus-backend/api/middleware"
	"github.com/nexusauctions/nexus-backend/internal/bidding"
	"github.com/nexusauctions/nexus-backend/internal/items"
	"github.com/nexusauctions/nexus-backend/internal/notifications"
	"github.com/nexusauctions/nexus-backend/internal/settlement"
	"github.com/nexusauctions/nexus-backend/internal/transactions"
	"github.com/nexusauctions/nexus-backend/internal/users"
	"github.com/nexusauctions/nexus-backend/internal/wallet"
	"github.com/nexusauctions/nexus-backend/pkg/config"
	"github.com/nexusauctions/nexus-backend/pkg/db"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
	"github.com/nexusauctions/nexus-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	client *db.Client,
	redisClient *redis.Client,
	usersService users.Service,
	itemsService items.Service,
	biddingService bidding.Service,
	walletService wallet.Service,
	transactionsService transactions.Service,
	notificationsService notifications.Service,
	settlementService settlement.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, client, redisClient, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.Register(usersService, logg))
		r.Post("/login", controllers.Login(usersService, logg))
	})

	// Browsing the catalog needs no account.
	r.Route("/api/v1/items", func(r chi.Router) {
		r.Get("/", controllers.ListItems(itemsService, logg))
		r.Get("/{itemId}", controllers.GetItem(itemsService, logg))
		r.Get("/{itemId}/bids", controllers.ListItemBids(itemsService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/v1/me", controllers.Me(usersService, logg))

		r.Route("/v1/items", func(r chi.Router) {
			r.Post("/", controllers.CreateItem(itemsService, logg))
			r.Post("/{itemId}/bids", controllers.PlaceBid(biddingService, logg))
			r.Post("/{itemId}/buy", controllers.BuyNow(biddingService, logg))
		})

		r.Route("/v1/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletBalance(walletService, logg))
			r.Post("/deposits", controllers.WalletDeposit(walletService, logg))
			r.Post("/deposits/capture", controllers.WalletCapture(walletService, logg))
			r.Get("/credits", controllers.WalletCredits(walletService, logg))
		})

		r.Route("/v1/transactions", func(r chi.Router) {
			r.Get("/purchases", controllers.ListPurchases(transactionsService, logg))
			r.Get("/sales", controllers.ListSales(transactionsService, logg))
			r.Get("/{transactionId}", controllers.GetTransaction(transactionsService, logg))
			r.Post("/{transactionId}/pay", controllers.PayTransaction(transactionsService, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.UserRoleModerator, logg))
		r.Post("/v1/settlement/run", controllers.TriggerSettlement(settlementService, logg))
	})

	return r
}
