package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger-api/internal/application/auth"
	"github.com/jhoicas/stock-ledger-api/internal/application/stock"
	"github.com/jhoicas/stock-ledger-api/internal/application/usecase"
	"github.com/jhoicas/stock-ledger-api/internal/domain/entity"
	"github.com/jhoicas/stock-ledger-api/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	BranchUC        *usecase.BranchUseCase
	ProductUC       *usecase.ProductUseCase
	Coordinator     *stock.Coordinator
	LedgerQuery     *stock.LedgerQuery
	AuthUC          *auth.AuthUseCase
	IdempotencyRepo repository.IdempotencyRepository
	IdempotencyTTL  time.Duration
	JWTSecret       string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Branches (protegido)
	branches := protected.Group("/branches")
	branchHandler := NewBranchHandler(deps.BranchUC)
	branches.Post("/", branchHandler.Create)
	branches.Get("/", branchHandler.List)
	branches.Get("/:id", branchHandler.GetByID)

	// Products (protegido)
	products := protected.Group("/products")
	productHandler := NewProductHandler(deps.ProductUC)
	products.Post("/", productHandler.Create)
	products.Get("/", productHandler.List)
	products.Get("/:id", productHandler.GetByID)

	// Stock (protegido): mutaciones con guard de idempotencia y solo para
	// roles que operan stock; lecturas abiertas a cualquier rol autenticado
	stockGroup := protected.Group("/stock")
	stockHandler := NewStockHandler(deps.Coordinator)
	ledgerHandler := NewLedgerHandler(deps.LedgerQuery)

	mutate := stockGroup.Group("/",
		RequireRole(entity.RoleAdmin, entity.RoleOperator),
		IdempotencyMiddleware(deps.IdempotencyRepo, deps.IdempotencyTTL),
	)
	mutate.Post("/receive", stockHandler.Receive)
	mutate.Post("/adjust", stockHandler.Adjust)
	mutate.Post("/consume", stockHandler.Consume)
	mutate.Post("/reversals", stockHandler.ReverseReceipt)

	stockGroup.Get("/levels", stockHandler.Levels)
	stockGroup.Get("/ledger", ledgerHandler.List)
}
