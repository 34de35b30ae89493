package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/rabbuy/shop/internal/domain"
	"github.com/rabbuy/shop/internal/storage/memory"
	"github.com/rabbuy/shop/internal/storage/postgres"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Orders    domain.OrderRepository
	Products  domain.ProductRepository
	Users     domain.UserRepository
	Addresses domain.AddressRepository
	Timeline  domain.TimelineRepository
	Logger    *log.Entry

	pg *postgres.Store
}

// NewDependencies собирает хранилище по конфигурации: при заданном DSN —
// PostgreSQL с применением миграций, иначе — in-memory хранилище с
// демонстрационным каталогом.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	if cfg.PostgresDSN == "" {
		logger.Info("postgres dsn is empty, using in-memory storage")
		store := memory.NewStore()
		seedDemoCatalog(store)
		return &Dependencies{
			Orders:    memory.NewOrderRepository(store),
			Products:  store.Products(),
			Users:     store.Users(),
			Addresses: store.Addresses(),
			Timeline:  memory.NewTimelineRepository(),
			Logger:    logger,
		}, nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("postgres storage initialized")

	return &Dependencies{
		Orders:    postgres.NewOrderRepository(store),
		Products:  postgres.NewProductRepository(store),
		Users:     postgres.NewUserRepository(store),
		Addresses: postgres.NewAddressRepository(store),
		Timeline:  postgres.NewTimelineRepository(store),
		Logger:    logger,
		pg:        store,
	}, nil
}

// PingStorage проверяет доступность хранилища; для памяти всегда успешен.
func (d *Dependencies) PingStorage(ctx context.Context) error {
	if d.pg == nil {
		return nil
	}
	return d.pg.Ping(ctx)
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() error {
	if d.pg == nil {
		return nil
	}
	return d.pg.Close()
}

// seedDemoCatalog наполняет in-memory каталог минимальным набором
// данных для локального запуска без БД.
func seedDemoCatalog(store *memory.Store) {
	store.PutUser(domain.User{ID: "demo-user", Username: "demo"})
	store.PutAddress(domain.Address{ID: "demo-address", UserID: "demo-user", Line: "Тверская, 1"})
	store.PutProduct(domain.Product{ID: "demo-tea", Name: "Чай зелёный", PriceMinor: 25000, Stock: 100, Available: true})
	store.PutProduct(domain.Product{ID: "demo-cup", Name: "Кружка", PriceMinor: 49900, Stock: 40, Available: true})
}
