// Package routes defines the API routing configuration.
// It wires services to handlers and sets up all HTTP routes,
// including middleware and authentication requirements.
package routes

import (
	"github.com/LILIANSRL/chibank/internal/config"
	"github.com/LILIANSRL/chibank/internal/handlers"
	"github.com/LILIANSRL/chibank/internal/metrics"
	"github.com/LILIANSRL/chibank/internal/middleware"
	"github.com/LILIANSRL/chibank/internal/repositories"
	"github.com/LILIANSRL/chibank/internal/services/approval"
	"github.com/LILIANSRL/chibank/internal/services/auth"
	"github.com/LILIANSRL/chibank/internal/services/authorization"
	"github.com/LILIANSRL/chibank/internal/services/notification"
	"github.com/LILIANSRL/chibank/internal/services/signer"
	"github.com/LILIANSRL/chibank/internal/services/transaction"
	"github.com/LILIANSRL/chibank/internal/services/wallet"
	"github.com/LILIANSRL/chibank/internal/services/walletauth"
	"github.com/LILIANSRL/chibank/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Dependencies are the collaborators built by main.
type Dependencies struct {
	Config       *config.Config
	Repos        *repositories.Repositories
	Cache        wallet.Cache
	Broadcaster  transaction.Broadcaster
	Verifiers    walletauth.Verifiers
	Metrics      *metrics.Collector
	HealthChecks map[string]handlers.HealthCheckFunc
}

// Services holds the wired application services.
type Services struct {
	Tokens       *utils.TokenManager
	Signers      signer.Service
	Wallets      wallet.Service
	Transactions transaction.Service
	WalletAuth   walletauth.Service
	Auth         auth.Service
}

// NewServices builds every service in dependency order.
func NewServices(d Dependencies) *Services {
	if d.Metrics == nil {
		d.Metrics = metrics.NewCollector()
	}

	tokens := utils.NewTokenManager(d.Config)
	signers := signer.NewService(d.Repos)
	approvals := approval.NewLedger(d.Repos)
	gate := authorization.NewGate(signers, approvals)
	wallets := wallet.NewService(d.Repos, gate, d.Cache, d.Metrics)

	return &Services{
		Tokens:  tokens,
		Signers: signers,
		Wallets: wallets,
		Transactions: transaction.NewService(transaction.Config{
			Repos:       d.Repos,
			Wallets:     wallets,
			Gate:        gate,
			Approvals:   approvals,
			Broadcaster: d.Broadcaster,
			Metrics:     d.Metrics,
			Notifier:    notification.NewService(d.Repos.Signers),
		}),
		WalletAuth: walletauth.NewService(walletauth.Config{
			Repos:     d.Repos,
			Verifiers: d.Verifiers,
			Tokens:    tokens,
			Metrics:   d.Metrics,
			NonceTTL:  d.Config.NonceTTL,
		}),
		Auth: auth.NewService(d.Repos.Users, tokens),
	}
}

// SetupRoutes configures all application routes.
// It groups routes by functionality and applies appropriate middleware.
func SetupRoutes(app *fiber.App, d Dependencies) *Services {
	svc := NewServices(d)

	authMiddleware := middleware.NewAuthMiddleware(svc.Tokens, d.Repos.Users)
	authHandler := handlers.NewAuthHandler(svc.Auth, svc.WalletAuth, d.Config)
	walletHandler := handlers.NewWalletHandler(svc.Wallets, svc.Signers)
	transactionHandler := handlers.NewTransactionHandler(svc.Transactions)
	healthHandler := handlers.NewHealthHandler(Version, d.HealthChecks)

	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/metrics", handlers.Metrics())

	api := app.Group("/api")
	api.Get("/health", healthHandler.HealthCheck)

	// Public auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/wallet/nonce", authHandler.RequestNonce)
	authGroup.Post("/wallet/verify", authHandler.VerifySignature)
	authGroup.Post("/refresh", authHandler.RefreshToken)

	// Authenticated auth routes
	authGroup.Post("/logout", authMiddleware.Handler, authHandler.Logout)
	authGroup.Get("/wallets", authMiddleware.Handler, authHandler.LinkedWallets)
	authGroup.Post("/wallets", authMiddleware.Handler, authHandler.LinkWallet)
	authGroup.Delete("/wallets/:id", authMiddleware.Handler, authHandler.UnlinkWallet)

	// Multi-signature wallets
	multisig := api.Group("/multisig", authMiddleware.Handler)
	multisig.Post("/invitations/claim", walletHandler.ClaimInvitations)

	wallets := multisig.Group("/wallets")
	wallets.Post("/", walletHandler.CreateWallet)
	wallets.Get("/", walletHandler.ListWallets)
	wallets.Get("/:id", walletHandler.GetWallet)
	wallets.Patch("/:id/status", walletHandler.UpdateStatus)
	wallets.Delete("/:id", walletHandler.DeleteWallet)
	wallets.Get("/:id/signers", walletHandler.ListSigners)

	// Transactions
	txns := wallets.Group("/:id/transactions")
	txns.Post("/", transactionHandler.Initiate)
	txns.Get("/", transactionHandler.List)
	txns.Get("/:txId", transactionHandler.Get)
	txns.Post("/:txId/approve", transactionHandler.Approve)
	txns.Post("/:txId/reject", transactionHandler.Reject)
	txns.Post("/:txId/execute", transactionHandler.Execute)
	txns.Post("/:txId/fail", transactionHandler.MarkFailed)

	return svc
}
