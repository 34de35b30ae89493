package ordersvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rabbuy/shop/internal/domain"
	"github.com/rabbuy/shop/internal/metrics"
)

const (
	timelineEventOrderCreated     = "OrderCreated"
	timelineEventOrderUpdated     = "OrderUpdated"
	timelineEventItemStatusChange = "ItemStatusChanged"
	timelineEventRefundSettled    = "RefundSettled"
)

// Service реализует жизненный цикл заказа: сборку, машину статусов,
// возвраты, листинг и счётчик уведомлений.
type Service struct {
	orders    domain.OrderRepository
	products  domain.ProductRepository
	users     domain.UserRepository
	addresses domain.AddressRepository
	timeline  domain.TimelineRepository
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
}

// NewService конструирует сервис с метриками из дефолтного реестра.
func NewService(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	users domain.UserRepository,
	addresses domain.AddressRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Service {
	svc := NewServiceWithoutMetrics(orders, products, users, addresses, timeline, logger)
	svc.metrics = metrics.NewOrderMetrics()
	return svc
}

// NewServiceWithoutMetrics конструирует сервис без регистрации метрик —
// для тестов, где дефолтный реестр нежелателен.
func NewServiceWithoutMetrics(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	users domain.UserRepository,
	addresses domain.AddressRepository,
	timeline domain.TimelineRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{
		orders:    orders,
		products:  products,
		users:     users,
		addresses: addresses,
		timeline:  timeline,
		logger:    logger,
	}
}

// OrderLine — одна строка корзины на входе сборки заказа.
type OrderLine struct {
	ProductID string `json:"id"`
	Qty       int32  `json:"count"`
}

// CreateOrderInput — запрос на создание заказа.
type CreateOrderInput struct {
	UserID       string      `json:"userId"`
	AddressID    string      `json:"addressId"`
	DeliveryTime string      `json:"deliveryTime"`
	Lines        []OrderLine `json:"products"`
}

// CreatedOrder — сводка созданного заказа.
type CreatedOrder struct {
	ID           string `json:"id"`
	DeliveryTime string `json:"deliveryTime"`
	UserID       string `json:"user"`
	AddressID    string `json:"address"`
	OrderStatus  string `json:"orderStatus"`
}

// CreateOrder собирает заказ: валидирует корзину, замораживает снапшоты
// по текущему состоянию каталога и отдаёт репозиторию на атомарную
// запись вместе с резервированием стока. Частичных заказов не бывает.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (CreatedOrder, error) {
	started := time.Now()
	defer func() { s.metrics.RecordOpDuration("create", time.Since(started)) }()

	if len(input.Lines) == 0 {
		return CreatedOrder{}, domain.ErrItemsRequired
	}
	for _, line := range input.Lines {
		if line.Qty <= 0 {
			return CreatedOrder{}, fmt.Errorf("%w: product %s", domain.ErrItemQtyInvalid, line.ProductID)
		}
	}

	deliveryTime, err := domain.ParseDeliveryTime(input.DeliveryTime)
	if err != nil {
		return CreatedOrder{}, err
	}

	user, err := s.users.Get(input.UserID)
	if err != nil {
		return CreatedOrder{}, err
	}
	address, err := s.addresses.Get(input.AddressID)
	if err != nil {
		return CreatedOrder{}, err
	}

	now := time.Now().UTC()
	orderID := uuid.NewString()
	items := make([]domain.OrderItem, 0, len(input.Lines))
	for i, line := range input.Lines {
		product, err := s.products.Get(line.ProductID)
		if err != nil {
			return CreatedOrder{}, err
		}
		items = append(items, domain.OrderItem{
			ID:      domain.ItemID(orderID, i),
			OrderID: orderID,
			Status:  domain.ItemStatusUnpaid,
			Snapshot: domain.ProductSnapshot{
				ProductID:  product.ID,
				Name:       product.Name,
				PriceMinor: product.PriceMinor,
				Image:      product.Image,
				Qty:        line.Qty,
			},
			Unread:    true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	order := domain.Order{
		ID:           orderID,
		UserID:       user.ID,
		AddressID:    address.ID,
		DeliveryTime: deliveryTime,
		Status:       domain.OrderStatusUnpaid,
		Items:        items,
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return CreatedOrder{}, errors.Join(errs...)
	}

	if err := s.orders.Create(order); err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			s.metrics.RecordReservationDenied()
		}
		s.metrics.RecordOrderCreateFailed()
		return CreatedOrder{}, err
	}

	s.metrics.RecordOrderCreated(order.AmountMinor())
	s.appendTimeline(domain.TimelineEvent{
		OrderID: orderID,
		Type:    timelineEventOrderCreated,
		Reason:  fmt.Sprintf("%d items, amount %d", len(items), order.AmountMinor()),
	})
	s.logger.WithFields(log.Fields{
		"order_id": orderID,
		"user_id":  user.ID,
		"items":    len(items),
	}).Info("order created")

	return CreatedOrder{
		ID:           orderID,
		DeliveryTime: string(deliveryTime),
		UserID:       user.ID,
		AddressID:    address.ID,
		OrderStatus:  string(order.Status),
	}, nil
}

// ItemView — позиция заказа в детальном ответе; товарные поля берутся
// из снапшота, а не из живого каталога.
type ItemView struct {
	ProductID  string    `json:"id"`
	Name       string    `json:"name"`
	PriceMinor int64     `json:"price"`
	Image      string    `json:"image"`
	Qty        int32     `json:"count"`
	ItemID     string    `json:"itemId"`
	Status     string    `json:"itemStatus"`
	UpdatedAt  time.Time `json:"updatedTime"`
}

// OrderDetail — детальный ответ по заказу.
type OrderDetail struct {
	ID           string     `json:"id"`
	DeliveryTime string     `json:"deliveryTime"`
	Products     []ItemView `json:"products"`
	OrderStatus  string     `json:"orderStatus"`
	AmountMinor  int64      `json:"amount"`
	CreatedAt    *time.Time `json:"createdTime"`
}

// GetOrder возвращает детальный вид заказа с посчитанной суммой.
func (s *Service) GetOrder(ctx context.Context, orderID string) (OrderDetail, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return OrderDetail{}, err
	}
	return buildDetail(order), nil
}

func buildDetail(order domain.Order) OrderDetail {
	detail := OrderDetail{
		ID:           order.ID,
		DeliveryTime: string(order.DeliveryTime),
		Products:     make([]ItemView, 0, len(order.Items)),
		OrderStatus:  string(order.Status),
		AmountMinor:  order.AmountMinor(),
	}
	for _, item := range order.Items {
		if detail.CreatedAt == nil {
			created := item.CreatedAt
			detail.CreatedAt = &created
		}
		detail.Products = append(detail.Products, ItemView{
			ProductID:  item.Snapshot.ProductID,
			Name:       item.Snapshot.Name,
			PriceMinor: item.Snapshot.PriceMinor,
			Image:      item.Snapshot.Image,
			Qty:        item.Snapshot.Qty,
			ItemID:     item.ID,
			Status:     item.Status.String(),
			UpdatedAt:  item.UpdatedAt,
		})
	}
	return detail
}

// UpdateOrderInput — частичное обновление шапки заказа; nil-поля не
// трогаются.
type UpdateOrderInput struct {
	OrderID      string  `json:"orderId"`
	DeliveryTime *string `json:"deliveryTime"`
	AddressID    *string `json:"address"`
	OrderStatus  *string `json:"orderStatus"`
}

// UpdateOrder меняет адрес/время доставки и статус заказа. Смена статуса
// на "оплачен" или "отменён" каскадно выставляет соответствующий статус
// всем нетерминальным позициям.
func (s *Service) UpdateOrder(ctx context.Context, input UpdateOrderInput) (OrderDetail, error) {
	started := time.Now()
	defer func() { s.metrics.RecordOpDuration("update_order", time.Since(started)) }()

	order, err := s.orders.Get(input.OrderID)
	if err != nil {
		return OrderDetail{}, err
	}

	if input.DeliveryTime != nil {
		deliveryTime, err := domain.ParseDeliveryTime(*input.DeliveryTime)
		if err != nil {
			return OrderDetail{}, err
		}
		order.DeliveryTime = deliveryTime
	}
	if input.AddressID != nil {
		address, err := s.addresses.Get(*input.AddressID)
		if err != nil {
			return OrderDetail{}, err
		}
		order.AddressID = address.ID
	}
	if input.OrderStatus != nil {
		status, err := domain.ParseOrderStatus(*input.OrderStatus)
		if err != nil {
			return OrderDetail{}, err
		}
		order.Status = status
		if cascade, ok := status.CascadeItemStatus(); ok {
			for i := range order.Items {
				if order.Items[i].Status.Terminal() {
					continue
				}
				order.Items[i].Status = cascade
			}
		}
	}

	if err := s.orders.Update(order); err != nil {
		return OrderDetail{}, err
	}

	s.appendTimeline(domain.TimelineEvent{
		OrderID: order.ID,
		Type:    timelineEventOrderUpdated,
		Reason:  fmt.Sprintf("status %s", order.Status),
	})

	return s.GetOrder(ctx, order.ID)
}

// ItemStatusUpdate — клиентский запрос на переход статуса позиции.
type ItemStatusUpdate struct {
	ItemID    string `json:"itemId"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
}

// ItemStatusResult — подтверждение перехода.
type ItemStatusResult struct {
	ItemID string `json:"itemId"`
	Status string `json:"newStatus"`
}

// UpdateItemStatus — клиентский переход по таблице статусов. Переход
// валидируется до обращения к хранилищу, а сама запись — это
// compare-and-swap по ожидаемому статусу: гонка двух запросов с одним
// и тем же устаревшим чтением заканчивается ErrStatusConflict.
func (s *Service) UpdateItemStatus(ctx context.Context, input ItemStatusUpdate) (ItemStatusResult, error) {
	started := time.Now()
	defer func() { s.metrics.RecordOpDuration("item_update", time.Since(started)) }()

	oldStatus, err := domain.ParseItemStatus(input.OldStatus)
	if err != nil {
		return ItemStatusResult{}, err
	}
	newStatus, err := domain.ParseItemStatus(input.NewStatus)
	if err != nil {
		return ItemStatusResult{}, err
	}
	if !oldStatus.CanCustomerTransition(newStatus) {
		return ItemStatusResult{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, oldStatus, newStatus)
	}

	if err := s.orders.UpdateItemStatus(input.ItemID, oldStatus, newStatus); err != nil {
		return ItemStatusResult{}, err
	}

	s.metrics.RecordCustomerTransition()
	s.appendTimeline(domain.TimelineEvent{
		OrderID: orderIDOfItem(input.ItemID),
		Type:    timelineEventItemStatusChange,
		Reason:  fmt.Sprintf("item %s: %s -> %s", input.ItemID, oldStatus, newStatus),
	})
	s.logger.WithFields(log.Fields{
		"item_id": input.ItemID,
		"from":    oldStatus.String(),
		"to":      newStatus.String(),
	}).Info("item status updated")

	return ItemStatusResult{ItemID: input.ItemID, Status: newStatus.String()}, nil
}

// AdminItemStatusUpdate — административная смена статуса позиции.
type AdminItemStatusUpdate struct {
	ItemID string `json:"itemId"`
	Status string `json:"status"`
}

// AdminUpdateItemStatus выставляет статус в обход клиентской таблицы.
// Единственный особый путь — терминальное решение по возврату: переход
// из "запрошен возврат" в "возврат"/"отказ" атомарно возвращает сток
// по количеству из снапшота. Повтор того же решения стока не трогает:
// позиция уже не в статусе "запрошен возврат".
func (s *Service) AdminUpdateItemStatus(ctx context.Context, input AdminItemStatusUpdate) error {
	started := time.Now()
	defer func() { s.metrics.RecordOpDuration("admin_item_update", time.Since(started)) }()

	next, err := domain.ParseItemStatus(input.Status)
	if err != nil {
		return err
	}

	item, err := s.orders.GetItem(input.ItemID)
	if err != nil {
		return err
	}

	refundDecision := item.Status == domain.ItemStatusRefundRequested &&
		(next == domain.ItemStatusRefunded || next == domain.ItemStatusRefundRejected)

	if refundDecision {
		if err := s.orders.SettleRefund(input.ItemID, next, item.Snapshot.ProductID, item.Snapshot.Qty); err != nil {
			return err
		}
		s.metrics.RecordRefundSettled()
		s.appendTimeline(domain.TimelineEvent{
			OrderID: item.OrderID,
			Type:    timelineEventRefundSettled,
			Reason:  fmt.Sprintf("item %s: refund %s, restock %d x %s", item.ID, next, item.Snapshot.Qty, item.Snapshot.ProductID),
		})
	} else {
		if err := s.orders.SetItemStatus(input.ItemID, next); err != nil {
			return err
		}
		s.appendTimeline(domain.TimelineEvent{
			OrderID: item.OrderID,
			Type:    timelineEventItemStatusChange,
			Reason:  fmt.Sprintf("item %s: admin set %s", item.ID, next),
		})
	}

	s.metrics.RecordAdminTransition()
	s.logger.WithFields(log.Fields{
		"item_id": input.ItemID,
		"to":      next.String(),
		"refund":  refundDecision,
	}).Info("admin item status updated")

	return nil
}

// UnreadCount возвращает число непрочитанных позиций пользователя.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.orders.CountUnread(userID)
}

// MarkNotificationsRead массово помечает позиции пользователя прочитанными.
func (s *Service) MarkNotificationsRead(ctx context.Context, userID string) error {
	return s.orders.MarkAllRead(userID)
}

// Timeline возвращает аудиторную ленту заказа.
func (s *Service) Timeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if _, err := s.orders.Get(orderID); err != nil {
		return nil, err
	}
	return s.timeline.List(orderID)
}

// appendTimeline пишет событие best-effort: лента — аудит, а не
// источник состояния, её отказ не валит бизнес-операцию.
func (s *Service) appendTimeline(event domain.TimelineEvent) {
	if s.timeline == nil {
		return
	}
	if err := s.timeline.Append(event); err != nil {
		s.logger.WithError(err).WithField("order_id", event.OrderID).Warn("failed to append timeline event")
		return
	}
	s.metrics.RecordTimelineEvent()
}

// orderIDOfItem восстанавливает ID заказа из детерминированного ID
// позиции (orderID + "-" + индекс).
func orderIDOfItem(itemID string) string {
	for i := len(itemID) - 1; i >= 0; i-- {
		if itemID[i] == '-' {
			return itemID[:i]
		}
	}
	return itemID
}
