package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/goldvault-api/internal/application/audit"
	"github.com/jhoicas/goldvault-api/internal/application/auth"
	"github.com/jhoicas/goldvault-api/internal/application/usecase"
	"github.com/jhoicas/goldvault-api/internal/application/vault"
	"github.com/jhoicas/goldvault-api/internal/domain/entity"
	"github.com/jhoicas/goldvault-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC     *auth.AuthUseCase
	CompanyUC  *usecase.CompanyUseCase
	TransferUC *usecase.TransferUseCase
	UserUC     *usecase.UserUseCase
	Vault      *vault.Service
	Audit      *audit.Service
	JWTSecret  string
	Log        *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("http")

	api := app.Group("/api")
	adminOnly := RequireRole(entity.RoleAdmin)

	// Auth (login público)
	authHandler := NewAuthHandler(deps.AuthUC, log)
	api.Post("/auth/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	protected.Get("/auth/me", authHandler.Me)
	protected.Post("/auth/register", adminOnly, authHandler.Register)

	// Bóveda externa
	vaultHandler := NewVaultHandler(deps.Vault, log)
	vaultGroup := protected.Group("/vault")
	vaultGroup.Get("/transactions", vaultHandler.ListTransactions)
	vaultGroup.Post("/transactions", vaultHandler.CreateTransaction)
	vaultGroup.Delete("/transactions/:id", vaultHandler.DeleteTransaction)
	vaultGroup.Get("/stock", vaultHandler.ListStock)
	vaultGroup.Get("/stock/report", vaultHandler.StockReport)
	vaultGroup.Post("/stock/sync", adminOnly, vaultHandler.SyncStock)
	vaultGroup.Get("/stock/verify", adminOnly, vaultHandler.VerifyStock)

	// Contrapartes
	companyHandler := NewCompanyHandler(deps.CompanyUC, log)
	companies := protected.Group("/companies")
	companies.Get("/", companyHandler.List)
	companies.Post("/", companyHandler.Create)
	companies.Get("/:id", companyHandler.GetByID)
	companies.Put("/:id", companyHandler.Update)
	companies.Delete("/:id", companyHandler.Delete)

	// Transferencias entre unidades de producción
	transferHandler := NewTransferHandler(deps.TransferUC, log)
	transfers := protected.Group("/transfers")
	transfers.Get("/", transferHandler.List)
	transfers.Get("/stats", transferHandler.Stats)
	transfers.Post("/", transferHandler.Create)
	transfers.Get("/:id", transferHandler.GetByID)
	transfers.Put("/:id", transferHandler.Update)
	transfers.Delete("/:id", transferHandler.Delete)

	units := protected.Group("/units")
	units.Get("/stats", transferHandler.UnitStats)
	units.Get("/:unit/transfers", transferHandler.UnitTransfers)

	// Operadores
	userHandler := NewUserHandler(deps.UserUC, log)
	users := protected.Group("/users", adminOnly)
	users.Get("/", userHandler.List)
	users.Put("/:id/role", userHandler.ChangeRole)
	users.Delete("/:id", userHandler.Delete)
	users.Post("/:id/reset-password", userHandler.ResetPassword)

	// Registro de actividad
	auditHandler := NewAuditHandler(deps.Audit, log)
	protected.Get("/logs", adminOnly, auditHandler.List)
}
