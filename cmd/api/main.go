package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/goldvault-api/internal/application/audit"
	"github.com/jhoicas/goldvault-api/internal/application/auth"
	"github.com/jhoicas/goldvault-api/internal/application/usecase"
	"github.com/jhoicas/goldvault-api/internal/application/vault"
	"github.com/jhoicas/goldvault-api/internal/domain/repository"
	"github.com/jhoicas/goldvault-api/internal/infrastructure/locker"
	"github.com/jhoicas/goldvault-api/internal/infrastructure/memory"
	infrapdf "github.com/jhoicas/goldvault-api/internal/infrastructure/pdf"
	"github.com/jhoicas/goldvault-api/internal/infrastructure/postgres"
	"github.com/jhoicas/goldvault-api/internal/infrastructure/realtime"
	httpRouter "github.com/jhoicas/goldvault-api/internal/interfaces/http"
	"github.com/jhoicas/goldvault-api/pkg/config"
	"github.com/jhoicas/goldvault-api/pkg/logger"
)

// storage repositorios del backend elegido con STORAGE_DRIVER.
type storage struct {
	tx        vault.TxRunner
	ledger    repository.VaultTransactionRepository
	stock     repository.StockBalanceRepository
	companies repository.CompanyRepository
	transfers repository.TransferRepository
	users     repository.UserRepository
	auditLogs repository.AuditLogRepository
	close     func()
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("STORAGE_DRIVER=memory: los datos se pierden al reiniciar")
		store := memory.NewStore()
		return &storage{
			tx:        store,
			ledger:    store.Ledger(),
			stock:     store.Stock(),
			companies: store.Companies(),
			transfers: store.Transfers(),
			users:     store.Users(),
			auditLogs: store.AuditLogs(),
			close:     func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &storage{
		tx:        postgres.NewTxRunner(pool),
		ledger:    postgres.NewVaultTransactionRepository(pool),
		stock:     postgres.NewStockBalanceRepository(pool),
		companies: postgres.NewCompanyRepository(pool),
		transfers: postgres.NewTransferRepository(pool),
		users:     postgres.NewUserRepository(pool),
		auditLogs: postgres.NewAuditLogRepository(pool),
		close:     pool.Close,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.Storage.Driver).
		Bool("atomic_writes", cfg.Vault.AtomicWrites).
		Msg("iniciando aplicación")

	ctx := context.Background()
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer store.close()

	// Redis: eventos en tiempo real y lock de sincronización entre réplicas.
	var (
		events     vault.Broadcaster = realtime.Nop{}
		syncLocker vault.SyncLocker  = locker.NewLocal()
	)
	if cfg.Redis.Enabled() {
		rdb, err := realtime.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer func() { _ = rdb.Close() }()
		events = realtime.NewRedisBroadcaster(rdb, cfg.Redis.Channel)
		syncLocker = locker.NewRedis(rdb, cfg.Vault.SyncLockTTL)
		log.Info().Str("addr", cfg.Redis.Address).Msg("redis conectado")
	} else {
		log.Warn().Msg("REDIS_ADDRESS vacío: eventos desactivados y lock de sincronización local")
	}

	auditSvc := audit.NewService(store.auditLogs)
	authUC := auth.NewAuthUseCase(store.users, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	created, err := authUC.EnsureAdmin(ctx, cfg.App.AdminUsername, cfg.App.AdminPassword)
	if err != nil {
		log.Warn().Err(err).Msg("no se creó el admin inicial")
	} else if created {
		log.Info().Str("username", cfg.App.AdminUsername).Msg("admin inicial creado")
	}

	vaultSvc := vault.NewService(vault.ServiceDeps{
		TxRunner:   store.tx,
		Ledger:     store.ledger,
		Stock:      store.stock,
		Companies:  store.companies,
		Reconciler: vault.NewReconciler(cfg.Vault.SyncBatchSize),
		Audit:      auditSvc,
		Events:     events,
		Locker:     syncLocker,
		Reports:    infrapdf.NewStockReportGenerator(cfg.App.Name),
		Log:        log,
	}, vault.Options{AtomicWrites: cfg.Vault.AtomicWrites})
	companyUC := usecase.NewCompanyUseCase(store.companies, auditSvc, log)
	transferUC := usecase.NewTransferUseCase(store.transfers, auditSvc, events, log)
	userUC := usecase.NewUserUseCase(store.users, auditSvc, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "GoldVault API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:     authUC,
		CompanyUC:  companyUC,
		TransferUC: transferUC,
		UserUC:     userUC,
		Vault:      vaultSvc,
		Audit:      auditSvc,
		JWTSecret:  cfg.JWT.Secret,
		Log:        log,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	vaultSvc.Wait()

	log.Info().Msg("aplicación detenida")
}
