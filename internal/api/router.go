package api

import (
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vikasavnish/gymledger/internal/config"
	"github.com/vikasavnish/gymledger/internal/handlers"
	"github.com/vikasavnish/gymledger/internal/messaging"
	"github.com/vikasavnish/gymledger/internal/metrics"
	"github.com/vikasavnish/gymledger/internal/middleware"
	"github.com/vikasavnish/gymledger/internal/models"
	"github.com/vikasavnish/gymledger/internal/services"
	"github.com/vikasavnish/gymledger/internal/websocket"
)

// Services bundles the application services shared by the router and the
// scheduler.
type Services struct {
	Settings  *services.SettingsService
	Ledger    *services.LedgerService
	Payments  *services.PaymentService
	Members   *services.MemberService
	Reminders *services.ReminderService
}

// NewServices creates the application services. A nil redisClient keeps the
// last dispatch result in memory.
func NewServices(
	db *gorm.DB,
	redisClient *redis.Client,
	wsHub *websocket.Hub,
	gateway messaging.Gateway,
	m *metrics.Metrics,
	cfg *config.Config,
	log *zap.Logger,
) *Services {
	var store services.RunStore = services.NewMemoryRunStore()
	if redisClient != nil {
		store = services.NewRedisRunStore(redisClient)
	}

	settings := services.NewSettingsService(db, cfg.Gym)
	return &Services{
		Settings:  settings,
		Ledger:    services.NewLedgerService(db, settings),
		Payments:  services.NewPaymentService(db, settings, wsHub, m, log.Named("payments")),
		Members:   services.NewMemberService(db, settings, log.Named("members")),
		Reminders: services.NewReminderService(db, settings, gateway, cfg.Messaging, store, wsHub, m, log.Named("reminders")),
	}
}

// SetupRouter configures all routes and returns the router
func SetupRouter(
	db *gorm.DB,
	svc *Services,
	wsHub *websocket.Hub,
	m *metrics.Metrics,
	cfg *config.Config,
	log *zap.Logger,
) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(log.Named("http")))

	// Public endpoints
	router.HandleFunc("/api/health", HealthHandler(db)).Methods("GET")
	router.Handle("/metrics", m.Handler()).Methods("GET")
	router.HandleFunc("/ws", wsHub.HandleWebSocket)

	feeHandler := handlers.NewFeeHandler(svc.Ledger, log)
	paymentHandler := handlers.NewPaymentHandler(svc.Payments, log)
	memberHandler := handlers.NewMemberHandler(svc.Members, log)
	settingsHandler := handlers.NewSettingsHandler(svc.Settings, log)
	reminderHandler := handlers.NewReminderHandler(svc.Reminders, log)

	apiRouter := router.PathPrefix("/api").Subrouter()

	// Admin-only routes
	adminRouter := apiRouter.PathPrefix("/admin").Subrouter()
	adminRouter.Use(middleware.AuthMiddleware(cfg.JWT.SecretKey))
	adminRouter.Use(middleware.RequireRole(cfg.JWT.SecretKey, models.RoleAdmin))
	reminderHandler.RegisterAdminRoutes(adminRouter)
	adminRouter.HandleFunc("/routes", PrintRoutesHandler(router)).Methods("GET")

	// Authenticated endpoints
	authRouter := apiRouter.PathPrefix("").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg.JWT.SecretKey))

	feeHandler.RegisterRoutes(authRouter)
	paymentHandler.RegisterRoutes(authRouter)
	memberHandler.RegisterRoutes(authRouter)
	settingsHandler.RegisterRoutes(authRouter)
	reminderHandler.RegisterRoutes(authRouter)

	return router
}
