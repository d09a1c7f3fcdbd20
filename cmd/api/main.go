package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"

	"github.com/ashwinpatil/khata-api/internal/config"
	"github.com/ashwinpatil/khata-api/internal/handlers"
	"github.com/ashwinpatil/khata-api/internal/kv"
	"github.com/ashwinpatil/khata-api/internal/logger"
	"github.com/ashwinpatil/khata-api/internal/middleware"
	"github.com/ashwinpatil/khata-api/internal/models"
	"github.com/ashwinpatil/khata-api/internal/services"
	"github.com/ashwinpatil/khata-api/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.Environment)

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open key-value store")
	}
	log.Info().Str("backend", cfg.KVBackend).Msg("key-value store ready")

	journal := services.NewJournal(store, log)
	defer journal.Close()

	ledger := services.NewLedger(journal, log)
	if err := ledger.Load(ctx, store); err != nil {
		log.Fatal().Err(err).Msg("failed to rehydrate ledger")
	}

	generator := services.NewGenerator(ledger, log)
	converter := services.NewConverter(ledger, log)

	clock := func() models.Date { return models.DateOf(time.Now()) }

	// Catch up on schedules that came due while the service was down.
	if created, err := generator.RunCatchUp(clock()); err != nil {
		log.Error().Err(err).Msg("startup generation pass failed")
	} else if created > 0 {
		log.Info().Int("created", created).Msg("startup generation pass")
	}

	// Coarse timer so long-running instances keep materializing schedules.
	ticker := time.NewTicker(cfg.GenerationInterval)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			if _, err := generator.RunCatchUp(clock()); err != nil {
				log.Error().Err(err).Msg("periodic generation pass failed")
			}
		}
	}()

	accountsHandler := handlers.NewAccountsHandler(ledger)
	transactionsHandler := handlers.NewTransactionsHandler(ledger)
	schedulesHandler := handlers.NewSchedulesHandler(ledger, generator, converter, clock)
	reportsHandler := handlers.NewReportsHandler(ledger, clock)
	overridesHandler := handlers.NewOverridesHandler(ledger)

	app := fiber.New(fiber.Config{
		AppName:      "khata API v1.0",
		ErrorHandler: utils.ErrorHandler,
	})

	app.Use(middleware.CORS(cfg.AllowedOrigins))
	app.Use(middleware.RequestLogger(log))

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "khata-api",
		})
	})

	v1 := app.Group("/v1")

	// Accounts
	v1.Post("/accounts", accountsHandler.CreateAccount)
	v1.Get("/accounts", accountsHandler.ListAccounts)
	v1.Get("/accounts/:id", accountsHandler.GetAccount)
	v1.Put("/accounts/:id", accountsHandler.UpdateAccount)
	v1.Delete("/accounts/:id", accountsHandler.DeleteAccount)

	// Transactions (income, expense, savings)
	v1.Post("/transactions/:kind", transactionsHandler.CreateTransaction)
	v1.Get("/transactions/:kind", transactionsHandler.ListTransactions)
	v1.Get("/transactions/:kind/:id", transactionsHandler.GetTransaction)
	v1.Put("/transactions/:kind/:id", transactionsHandler.UpdateTransaction)
	v1.Delete("/transactions/:kind/:id", transactionsHandler.DeleteTransaction)

	// Recurring templates
	v1.Post("/recurring", schedulesHandler.CreateRecurring)
	v1.Get("/recurring", schedulesHandler.ListRecurring)
	v1.Get("/recurring/:id", schedulesHandler.GetRecurring)
	v1.Put("/recurring/:id", schedulesHandler.UpdateRecurring)
	v1.Delete("/recurring/:id", schedulesHandler.DeleteRecurring)
	v1.Post("/recurring/:id/pause", schedulesHandler.PauseRecurring)
	v1.Post("/recurring/:id/resume", schedulesHandler.ResumeRecurring)
	v1.Post("/recurring/:id/convert", schedulesHandler.ConvertRecurring)

	// EMIs
	v1.Post("/emis", schedulesHandler.CreateEMI)
	v1.Get("/emis", schedulesHandler.ListEMIs)
	v1.Get("/emis/:id", schedulesHandler.GetEMI)
	v1.Put("/emis/:id", schedulesHandler.UpdateEMI)
	v1.Delete("/emis/:id", schedulesHandler.DeleteEMI)
	v1.Post("/emis/:id/pause", schedulesHandler.PauseEMI)
	v1.Post("/emis/:id/resume", schedulesHandler.ResumeEMI)
	v1.Post("/emis/:id/convert", schedulesHandler.ConvertEMI)

	// Generation pass
	v1.Post("/schedules/run", schedulesHandler.RunGeneration)

	// Monthly report
	v1.Get("/reports/month/:monthId", reportsHandler.GetMonthReport)

	// Overrides
	v1.Post("/overrides/due-date", overridesHandler.AddDueDateOverride)
	v1.Delete("/overrides/due-date", overridesHandler.RemoveDueDateOverride)
	v1.Get("/overrides/due-date/:monthId", overridesHandler.ListDueDateOverrides)
	v1.Put("/overrides/remaining-cash", overridesHandler.SetRemainingCashOverride)
	v1.Delete("/overrides/remaining-cash", overridesHandler.ClearRemainingCashOverride)

	// Drain in-flight requests (and then the journal, via the deferred
	// Close) on SIGINT/SIGTERM.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info().Str("addr", addr).Msg("khata API is running")
	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}

// openStore picks the key-value backend from config.
func openStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.KVBackend {
	case "postgres":
		return kv.NewPostgres(ctx, cfg.DatabaseURL)
	case "s3":
		return kv.NewS3(ctx, cfg.S3Bucket, cfg.S3Region, cfg.AWSEndpoint, cfg.KVPrefix)
	default:
		return kv.NewMemory(), nil
	}
}
