package ordersvc

import (
	"context"
	"sort"
	"time"

	"github.com/rabbuy/shop/internal/domain"
)

const (
	// DefaultCustomerPageSize — размер страницы клиентского листинга по умолчанию.
	DefaultCustomerPageSize = 5
	// DefaultAdminPageSize — размер страницы административного листинга по умолчанию.
	DefaultAdminPageSize = 10
	// MaxPageSize — верхняя граница размера страницы.
	MaxPageSize = 100
)

// ListQuery — запрос листинга. Пустой UserID означает "все пользователи"
// (административный режим), пустой или "all" ItemStatus — без фильтра.
type ListQuery struct {
	UserID     string
	ItemStatus string
	Page       int
	PageSize   int
}

// ListItem — позиция заказа в листинге.
type ListItem struct {
	ItemID     string    `json:"itemId"`
	ProductID  string    `json:"id"`
	Name       string    `json:"name"`
	PriceMinor int64     `json:"price"`
	Image      string    `json:"image"`
	Qty        int32     `json:"count"`
	Status     string    `json:"itemStatus"`
	CreatedAt  time.Time `json:"createdTime"`
	UpdatedAt  time.Time `json:"updatedTime"`
}

// OrderSummary — агрегат по одному заказу: сумма по снапшотам, максимальный
// статус позиций и время последней активности.
type OrderSummary struct {
	OrderID     string     `json:"id"`
	UserID      string     `json:"user"`
	Status      string     `json:"status"`
	AmountMinor int64      `json:"amount"`
	LatestAt    time.Time  `json:"createdTime"`
	Items       []ListItem `json:"products"`
}

// OrderPage — страница листинга с пагинационной арифметикой.
type OrderPage struct {
	Data        []OrderSummary `json:"data"`
	TotalItems  int            `json:"totalItems"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
}

// ListOrders выполняет двухфазный листинг: сначала находятся ID
// заказов-кандидатов (по пользователю и фильтру статуса позиции), затем
// заказы вычитываются пачкой и агрегируются в памяти. Сортировка —
// по убыванию времени последней активности, пагинация — офсетная по
// уже отсортированному списку.
func (s *Service) ListOrders(ctx context.Context, query ListQuery) (OrderPage, error) {
	started := time.Now()
	defer func() { s.metrics.RecordOpDuration("list", time.Since(started)) }()

	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = DefaultCustomerPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	var filter *domain.ItemStatus
	if query.ItemStatus != "" && query.ItemStatus != "all" {
		status, err := domain.ParseItemStatus(query.ItemStatus)
		if err != nil {
			return OrderPage{}, err
		}
		filter = &status
	}

	ids, err := s.orders.FindOrderIDs(query.UserID, filter)
	if err != nil {
		return OrderPage{}, err
	}
	if len(ids) == 0 {
		return OrderPage{Data: []OrderSummary{}, CurrentPage: page}, nil
	}

	orders, err := s.orders.ListWithItems(ids)
	if err != nil {
		return OrderPage{}, err
	}

	summaries := make([]OrderSummary, 0, len(orders))
	for _, order := range orders {
		summaries = append(summaries, summarize(order))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[j].LatestAt.Before(summaries[i].LatestAt)
	})

	totalItems := len(summaries)
	totalPages := (totalItems + size - 1) / size

	start := (page - 1) * size
	if start >= totalItems {
		return OrderPage{
			Data:        []OrderSummary{},
			TotalItems:  totalItems,
			CurrentPage: page,
			TotalPages:  totalPages,
		}, nil
	}
	end := start + size
	if end > totalItems {
		end = totalItems
	}

	return OrderPage{
		Data:        summaries[start:end],
		TotalItems:  totalItems,
		CurrentPage: page,
		TotalPages:  totalPages,
	}, nil
}

// summarize сворачивает заказ в агрегат одним проходом по позициям.
func summarize(order domain.Order) OrderSummary {
	summary := OrderSummary{
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  domain.ItemStatusUnpaid.String(),
		Items:   make([]ListItem, 0, len(order.Items)),
	}
	maxStatus := domain.ItemStatusUnpaid
	for _, item := range order.Items {
		summary.AmountMinor += int64(item.Snapshot.Qty) * item.Snapshot.PriceMinor
		if item.Status > maxStatus {
			maxStatus = item.Status
		}
		if item.UpdatedAt.After(summary.LatestAt) {
			summary.LatestAt = item.UpdatedAt
		}
		summary.Items = append(summary.Items, ListItem{
			ItemID:     item.ID,
			ProductID:  item.Snapshot.ProductID,
			Name:       item.Snapshot.Name,
			PriceMinor: item.Snapshot.PriceMinor,
			Image:      item.Snapshot.Image,
			Qty:        item.Snapshot.Qty,
			Status:     item.Status.String(),
			CreatedAt:  item.CreatedAt,
			UpdatedAt:  item.UpdatedAt,
		})
	}
	summary.Status = maxStatus.String()
	return summary
}
