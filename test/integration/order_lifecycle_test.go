package integration

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/rabbuy/shop/internal/domain"
	ordersvc "github.com/rabbuy/shop/internal/service/order"
	"github.com/rabbuy/shop/internal/storage/memory"
)

// OrderLifecycleTestSuite тестирует полный жизненный цикл заказа:
// сборку, оплату, доставку, возврат и листинг.
type OrderLifecycleTestSuite struct {
	suite.Suite
	store    *memory.Store
	timeline domain.TimelineRepository
	service  *ordersvc.Service
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	suite.store = memory.NewStore()
	suite.store.PutUser(domain.User{ID: "customer-123", Username: "customer"})
	suite.store.PutAddress(domain.Address{ID: "addr-1", UserID: "customer-123", Line: "Невский, 1"})
	suite.store.PutProduct(domain.Product{ID: "laptop-pro", Name: "Ноутбук", PriceMinor: 150000, Stock: 5, Available: true})
	suite.store.PutProduct(domain.Product{ID: "mouse", Name: "Мышь", PriceMinor: 3000, Stock: 20, Available: true})

	suite.timeline = memory.NewTimelineRepository()
	suite.service = ordersvc.NewServiceWithoutMetrics(
		memory.NewOrderRepository(suite.store),
		suite.store.Products(),
		suite.store.Users(),
		suite.store.Addresses(),
		suite.timeline,
		logger,
	)
}

func (suite *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	ctx := context.Background()

	// 1. Создаём заказ
	created, err := suite.service.CreateOrder(ctx, ordersvc.CreateOrderInput{
		UserID:    "customer-123",
		AddressID: "addr-1",
		Lines: []ordersvc.OrderLine{
			{ProductID: "laptop-pro", Qty: 1},
			{ProductID: "mouse", Qty: 2},
		},
	})
	require.NoError(suite.T(), err)
	require.NotEmpty(suite.T(), created.ID)

	laptop, err := suite.store.GetProduct("laptop-pro")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(4), laptop.Stock)

	// 2. Оплата: статус заказа каскадом переводит позиции в "оплачено"
	paid := string(domain.OrderStatusPaid)
	detail, err := suite.service.UpdateOrder(ctx, ordersvc.UpdateOrderInput{
		OrderID:     created.ID,
		OrderStatus: &paid,
	})
	require.NoError(suite.T(), err)
	for _, product := range detail.Products {
		require.Equal(suite.T(), domain.ItemStatusPaid.String(), product.Status)
	}

	// 3. Админ отгружает первую позицию
	itemID := domain.ItemID(created.ID, 0)
	require.NoError(suite.T(), suite.service.AdminUpdateItemStatus(ctx, ordersvc.AdminItemStatusUpdate{
		ItemID: itemID,
		Status: domain.ItemStatusShipped.String(),
	}))

	// 4. Покупатель подтверждает получение
	result, err := suite.service.UpdateItemStatus(ctx, ordersvc.ItemStatusUpdate{
		ItemID:    itemID,
		OldStatus: domain.ItemStatusShipped.String(),
		NewStatus: domain.ItemStatusDelivered.String(),
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.ItemStatusDelivered.String(), result.Status)

	// 5. Листинг отражает агрегированный статус и сумму
	page, err := suite.service.ListOrders(ctx, ordersvc.ListQuery{UserID: "customer-123"})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 1, page.TotalItems)
	require.Equal(suite.T(), domain.ItemStatusDelivered.String(), page.Data[0].Status)
	require.Equal(suite.T(), int64(156000), page.Data[0].AmountMinor)

	// 6. Лента заказа накопила события
	events, err := suite.service.Timeline(ctx, created.ID)
	require.NoError(suite.T(), err)
	require.GreaterOrEqual(suite.T(), len(events), 4)
}

func (suite *OrderLifecycleTestSuite) TestRefundLifecycle() {
	ctx := context.Background()

	created, err := suite.service.CreateOrder(ctx, ordersvc.CreateOrderInput{
		UserID:    "customer-123",
		AddressID: "addr-1",
		Lines:     []ordersvc.OrderLine{{ProductID: "laptop-pro", Qty: 2}},
	})
	require.NoError(suite.T(), err)
	itemID := domain.ItemID(created.ID, 0)

	paid := string(domain.OrderStatusPaid)
	_, err = suite.service.UpdateOrder(ctx, ordersvc.UpdateOrderInput{
		OrderID:     created.ID,
		OrderStatus: &paid,
	})
	require.NoError(suite.T(), err)

	// Покупатель запрашивает возврат из "оплачено"
	_, err = suite.service.UpdateItemStatus(ctx, ordersvc.ItemStatusUpdate{
		ItemID:    itemID,
		OldStatus: domain.ItemStatusPaid.String(),
		NewStatus: domain.ItemStatusRefundRequested.String(),
	})
	require.NoError(suite.T(), err)

	// Админ одобряет возврат: сток восстановлен ровно один раз
	require.NoError(suite.T(), suite.service.AdminUpdateItemStatus(ctx, ordersvc.AdminItemStatusUpdate{
		ItemID: itemID,
		Status: domain.ItemStatusRefunded.String(),
	}))

	laptop, err := suite.store.GetProduct("laptop-pro")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(5), laptop.Stock)

	// Ретрай решения не проходит и не дублирует возврат стока
	err = suite.service.AdminUpdateItemStatus(ctx, ordersvc.AdminItemStatusUpdate{
		ItemID: itemID,
		Status: domain.ItemStatusRefunded.String(),
	})
	require.ErrorIs(suite.T(), err, domain.ErrStatusConflict)

	laptop, _ = suite.store.GetProduct("laptop-pro")
	require.Equal(suite.T(), int32(5), laptop.Stock)
}

func (suite *OrderLifecycleTestSuite) TestCancellationCascades() {
	ctx := context.Background()

	created, err := suite.service.CreateOrder(ctx, ordersvc.CreateOrderInput{
		UserID:    "customer-123",
		AddressID: "addr-1",
		Lines:     []ordersvc.OrderLine{{ProductID: "mouse", Qty: 1}},
	})
	require.NoError(suite.T(), err)

	canceled := string(domain.OrderStatusCanceled)
	detail, err := suite.service.UpdateOrder(ctx, ordersvc.UpdateOrderInput{
		OrderID:     created.ID,
		OrderStatus: &canceled,
	})
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), canceled, detail.OrderStatus)
	require.Equal(suite.T(), domain.ItemStatusCanceled.String(), detail.Products[0].Status)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
