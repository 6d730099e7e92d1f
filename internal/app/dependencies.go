package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/stockroom/internal/domain"
	"github.com/vladislavdragonenkov/stockroom/internal/health"
	"github.com/vladislavdragonenkov/stockroom/internal/metrics"
	"github.com/vladislavdragonenkov/stockroom/internal/repository"
	"github.com/vladislavdragonenkov/stockroom/internal/service/events"
	grpcsvc "github.com/vladislavdragonenkov/stockroom/internal/service/grpc"
	"github.com/vladislavdragonenkov/stockroom/internal/service/ordering"
	"github.com/vladislavdragonenkov/stockroom/internal/service/reporting"
	"github.com/vladislavdragonenkov/stockroom/internal/service/status"
	"github.com/vladislavdragonenkov/stockroom/internal/storage/memory"
	"github.com/vladislavdragonenkov/stockroom/internal/storage/postgres"
)

// storage — хранилища, выбранные драйвером из конфигурации.
type storage struct {
	entities    domain.EntityStore
	outbox      domain.OutboxRepository
	timeline    domain.TimelineRepository
	idempotency domain.IdempotencyRepository
	close       func() error
}

// Dependencies содержит собранные компоненты приложения.
type Dependencies struct {
	Products    *repository.ProductRepository
	Catalog     *ordering.Catalog
	Orders      *repository.OrderRepository
	Engine      *ordering.Engine
	Statuses    *status.Service
	Reports     *reporting.Service
	Service     *grpcsvc.Service
	Outbox      domain.OutboxRepository
	Idempotency domain.IdempotencyRepository
	Metrics     *metrics.OrderMetrics

	store domain.EntityStore
	close func() error
}

// NewDependencies открывает хранилище по cfg.StorageDriver и собирает сервисы поверх него.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	orderMetrics := metrics.NewOrderMetrics()
	products := repository.NewProductRepository(st.entities, logger.WithField("layer", "repository"))
	orders := repository.NewOrderRepository(st.entities, logger.WithField("layer", "repository"))
	recorder := events.NewRecorder(st.outbox, st.timeline, orderMetrics, logger.WithField("layer", "events"))
	lock := ordering.NewLock()

	engine := ordering.NewEngine(products, orders,
		ordering.WithLock(lock),
		ordering.WithRecorder(recorder),
		ordering.WithMetrics(orderMetrics),
		ordering.WithLogger(logger.WithField("layer", "ordering")),
	)
	statuses := status.NewService(status.Config{
		Orders:   orders,
		Timeline: st.timeline,
		Recorder: recorder,
		Metrics:  orderMetrics,
		Lock:     lock,
		Logger:   logger.WithField("layer", "status"),
	})
	reports := reporting.NewService(products, orders)
	catalog := ordering.NewCatalog(products, lock)

	return &Dependencies{
		Products: products,
		Catalog:  catalog,
		Orders:   orders,
		Engine:   engine,
		Statuses: statuses,
		Reports:  reports,
		Service: grpcsvc.NewService(grpcsvc.Config{
			Products:    catalog,
			Orders:      orders,
			Engine:      engine,
			Statuses:    statuses,
			Reports:     reports,
			Idempotency: st.idempotency,
			Logger:      logger.WithField("layer", "grpc"),
		}),
		Outbox:      st.outbox,
		Idempotency: st.idempotency,
		Metrics:     orderMetrics,
		store:       st.entities,
		close:       st.close,
	}, nil
}

// StorageChecker возвращает health-проверку хранилища сущностей.
func (d *Dependencies) StorageChecker() health.Checker {
	return health.NewFuncChecker("storage", d.store.Ping)
}

// Close освобождает хранилище.
func (d *Dependencies) Close() error {
	if d == nil || d.close == nil {
		return nil
	}
	return d.close()
}

func openStorage(ctx context.Context, cfg Config, logger *log.Entry) (storage, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		logger.Info("using in-memory storage")
		return storage{
			entities:    memory.NewCollectionStore(),
			outbox:      memory.NewOutboxRepository(),
			timeline:    memory.NewTimelineRepository(),
			idempotency: memory.NewIdempotencyRepository(),
			close:       func() error { return nil },
		}, nil
	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return storage{}, fmt.Errorf("postgres storage requires postgres_dsn")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.WithMaxConns(cfg.PostgresMaxConns))
		if err != nil {
			return storage{}, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return storage{}, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		logger.Info("using postgres storage")
		return storage{
			entities:    postgres.NewCollectionStore(store),
			outbox:      postgres.NewOutboxRepository(store),
			timeline:    postgres.NewTimelineRepository(store),
			idempotency: postgres.NewIdempotencyRepository(store),
			close:       store.Close,
		}, nil
	default:
		return storage{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
