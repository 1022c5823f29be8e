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
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/Gatepass-api/internal/application/gatepass"
	"github.com/jhoicas/Gatepass-api/internal/application/reporting"
	"github.com/jhoicas/Gatepass-api/internal/domain/compliance"
	"github.com/jhoicas/Gatepass-api/internal/domain/entity"
	"github.com/jhoicas/Gatepass-api/internal/domain/repository"
	"github.com/jhoicas/Gatepass-api/internal/infrastructure/erp"
	"github.com/jhoicas/Gatepass-api/internal/infrastructure/memory"
	"github.com/jhoicas/Gatepass-api/internal/infrastructure/metrics"
	"github.com/jhoicas/Gatepass-api/internal/infrastructure/pdf"
	"github.com/jhoicas/Gatepass-api/internal/infrastructure/postgres"
	"github.com/jhoicas/Gatepass-api/internal/infrastructure/queue"
	httpRouter "github.com/jhoicas/Gatepass-api/internal/interfaces/http"
	"github.com/jhoicas/Gatepass-api/pkg/config"
	"github.com/jhoicas/Gatepass-api/pkg/logger"
)

const swaggerFile = "./docs/swagger.json"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("storage", cfg.App.Storage).
		Msg("iniciando aplicación")

	ctx := context.Background()

	// Persistencia: PostgreSQL o memoria (desarrollo / demo)
	var (
		txRunner   gatepass.TxRunner
		recordRepo repository.MovementRecordRepository
		taskRepo   repository.AutoCreateTaskRepository
	)
	switch cfg.App.Storage {
	case "memory":
		store := memory.NewStore()
		txRunner, recordRepo, taskRepo = store, store.Records(), store.Tasks()
		log.Warn().Msg("almacenamiento en memoria: los pases se pierden al reiniciar")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migración del esquema")
		}
		txRunner = postgres.NewTxRunner(pool)
		recordRepo = postgres.NewMovementRecordRepository(pool)
		taskRepo = postgres.NewAutoCreateTaskRepository(pool)
	}

	// Redis opcional: serializa la creación automática entre instancias
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("address", cfg.Redis.Address).Msg("conexión a Redis")
		}
	}

	erpClient := erp.NewClient(erp.ClientConfig{
		BaseURL:      cfg.ERP.BaseURL,
		Token:        cfg.ERP.Token,
		Timeout:      cfg.ERP.Timeout,
		MaxFailures:  uint32(cfg.ERP.MaxFailures),
		OpenInterval: cfg.ERP.OpenInterval,
	}, log)
	registry := erp.NewRegistry(erpClient, erp.DefaultSources(erpClient)...)

	collector := metrics.New()
	policy := compliance.Policy{
		Threshold:               cfg.Compliance.Threshold,
		WayBillFromDeliveryNote: cfg.Compliance.WayBillFromDeliveryNote,
	}
	autoTypes := make([]entity.DocumentType, 0, len(cfg.GatePass.AutoCreateTypes))
	for _, t := range cfg.GatePass.AutoCreateTypes {
		dt := entity.DocumentType(t)
		if !dt.Valid() {
			log.Fatal().Str("type", t).Msg("AUTO_CREATE_TYPES contiene un tipo desconocido")
		}
		autoTypes = append(autoTypes, dt)
	}

	gatePassUC := gatepass.NewUseCase(txRunner, recordRepo, taskRepo, registry, nil, collector, log, gatepass.Options{
		Compliance:            policy,
		DiscrepancyEditWindow: cfg.GatePass.DiscrepancyEditWindow,
		AutoCreateTypes:       autoTypes,
	})

	// Cola de creación automática: el caso de uso es el handler
	workers := queue.NewWorkerPool(gatePassUC, rdb, queue.Config{
		Workers:    cfg.Queue.Workers,
		Buffer:     cfg.Queue.Buffer,
		RetryDelay: cfg.Queue.RetryDelay,
	}, log)
	gatePassUC.SetQueue(workers)
	queueCtx, stopQueue := context.WithCancel(context.Background())
	workers.Start(queueCtx)
	if n, err := gatePassUC.RequeuePending(ctx, cfg.Queue.Buffer); err != nil {
		log.Error().Err(err).Msg("reencolar tareas pendientes")
	} else if n > 0 {
		log.Info().Int("tareas", n).Msg("tareas pendientes reencoladas")
	}

	slipUC := gatepass.NewSlipUseCase(gatePassUC, pdf.NewMarotoPDFGenerator(cfg.App.Name))
	reportingUC := reporting.NewUseCase(recordRepo, registry, policy, log, nil)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	if _, err := os.Stat(swaggerFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/",
			FilePath: swaggerFile,
			Path:     "docs",
			Title:    "Gate Pass API",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "erp_breaker": erpClient.State()})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		GatePassUC:  gatePassUC,
		ReportingUC: reportingUC,
		SlipUC:      slipUC,
		Metrics:     collector.Handler(),
		JWTSecret:   cfg.JWT.Secret,
		JWTIssuer:   cfg.JWT.Issuer,
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

	// Lo que no alcance a procesarse antes del timeout queda PENDING y se reencola al arrancar.
	if err := workers.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado de la cola")
	}
	stopQueue()

	log.Info().Msg("aplicación detenida")
}
