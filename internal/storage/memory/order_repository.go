package memory

import (
	"fmt"
	"time"

	"github.com/rabbuy/shop/internal/domain"
)

// orderRepositoryInMemory реализует OrderRepository поверх общего Store.
// Общий мьютекс хранилища заменяет транзакцию: проверка остатка, его
// декремент и запись заказа происходят неделимо.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает in-memory репозиторий заказов.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

// Create резервирует сток под каждую позицию и сохраняет заказ целиком.
// При любом отказе ни заказ, ни остатки не меняются.
func (r *orderRepositoryInMemory) Create(order domain.Order) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return domain.ErrOrderExists
	}

	// Сначала проверяем все позиции, потом мутируем: никакого
	// частичного списания при отказе на середине списка.
	for _, item := range order.Items {
		p, ok := s.products[item.Snapshot.ProductID]
		if !ok || p.Deleted {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.Snapshot.ProductID)
		}
		if p.Stock < item.Snapshot.Qty {
			return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, p.Name)
		}
	}

	for _, item := range order.Items {
		p := s.products[item.Snapshot.ProductID]
		p.Stock -= item.Snapshot.Qty
		s.products[item.Snapshot.ProductID] = p
	}

	stored := copyOrder(order)
	s.orders[order.ID] = stored
	for _, item := range stored.Items {
		s.itemIndex[item.ID] = order.ID
	}
	return nil
}

// Get возвращает копию заказа с позициями.
func (r *orderRepositoryInMemory) Get(id string) (domain.Order, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

// Update перезаписывает шапку заказа и статусы позиций. Снапшоты и
// времена создания позиций неизменяемы и берутся из хранимой версии.
func (r *orderRepositoryInMemory) Update(order domain.Order) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}

	stored.AddressID = order.AddressID
	stored.DeliveryTime = order.DeliveryTime
	stored.Status = order.Status
	stored.PayMethod = order.PayMethod

	now := time.Now().UTC()
	incoming := make(map[string]domain.ItemStatus, len(order.Items))
	for _, item := range order.Items {
		incoming[item.ID] = item.Status
	}
	for i := range stored.Items {
		next, ok := incoming[stored.Items[i].ID]
		if !ok || stored.Items[i].Status == next {
			continue
		}
		stored.Items[i].Status = next
		stored.Items[i].UpdatedAt = now
	}

	s.orders[order.ID] = stored
	return nil
}

// GetItem возвращает позицию по её идентификатору.
func (r *orderRepositoryInMemory) GetItem(itemID string) (domain.OrderItem, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, _, _, err := s.findItem(itemID)
	if err != nil {
		return domain.OrderItem{}, err
	}
	return item, nil
}

// UpdateItemStatus — compare-and-swap статуса позиции.
func (r *orderRepositoryInMemory) UpdateItemStatus(itemID string, expected, next domain.ItemStatus) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	item, orderID, idx, err := s.findItem(itemID)
	if err != nil {
		return err
	}
	if item.Status != expected {
		return domain.ErrStatusConflict
	}

	order := s.orders[orderID]
	order.Items[idx].Status = next
	order.Items[idx].UpdatedAt = time.Now().UTC()
	s.orders[orderID] = order
	return nil
}

// SetItemStatus выставляет статус без проверки ожидания (админский путь).
func (r *orderRepositoryInMemory) SetItemStatus(itemID string, next domain.ItemStatus) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	_, orderID, idx, err := s.findItem(itemID)
	if err != nil {
		return err
	}

	order := s.orders[orderID]
	order.Items[idx].Status = next
	order.Items[idx].UpdatedAt = time.Now().UTC()
	s.orders[orderID] = order
	return nil
}

// SettleRefund неделимо переводит позицию из "запрошен возврат" в next и
// возвращает qty на остаток товара. Повтор того же решения упирается в
// ErrStatusConflict и сток второй раз не трогает.
func (r *orderRepositoryInMemory) SettleRefund(itemID string, next domain.ItemStatus, productID string, qty int32) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	item, orderID, idx, err := s.findItem(itemID)
	if err != nil {
		return err
	}
	if item.Status != domain.ItemStatusRefundRequested {
		return domain.ErrStatusConflict
	}

	order := s.orders[orderID]
	order.Items[idx].Status = next
	order.Items[idx].UpdatedAt = time.Now().UTC()
	s.orders[orderID] = order

	// Возврат стока best-effort: удалённый товар не отслеживается.
	if p, ok := s.products[productID]; ok && !p.Deleted {
		p.Stock += qty
		s.products[productID] = p
	}
	return nil
}

// FindOrderIDs отбирает заказы пользователя (или всех пользователей при
// пустом userID), при заданном filter — только с позициями этого статуса.
func (r *orderRepositoryInMemory) FindOrderIDs(userID string, filter *domain.ItemStatus) ([]string, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for id, order := range s.orders {
		if userID != "" && order.UserID != userID {
			continue
		}
		if filter != nil && !hasItemWithStatus(order, *filter) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListWithItems возвращает заказы по списку идентификаторов.
func (r *orderRepositoryInMemory) ListWithItems(ids []string) ([]domain.Order, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		if order, ok := s.orders[id]; ok {
			orders = append(orders, copyOrder(order))
		}
	}
	return orders, nil
}

// CountUnread считает непрочитанные позиции пользователя.
func (r *orderRepositoryInMemory) CountUnread(userID string) (int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, order := range s.orders {
		if order.UserID != userID {
			continue
		}
		for _, item := range order.Items {
			if item.Unread {
				count++
			}
		}
	}
	return count, nil
}

// MarkAllRead массово снимает флаг непрочитанного.
func (r *orderRepositoryInMemory) MarkAllRead(userID string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, order := range s.orders {
		if order.UserID != userID {
			continue
		}
		for i := range order.Items {
			order.Items[i].Unread = false
		}
		s.orders[id] = order
	}
	return nil
}

// findItem ищет позицию через индекс; вызывается под блокировкой.
func (s *Store) findItem(itemID string) (domain.OrderItem, string, int, error) {
	orderID, ok := s.itemIndex[itemID]
	if !ok {
		return domain.OrderItem{}, "", 0, domain.ErrOrderItemNotFound
	}
	order := s.orders[orderID]
	for i, item := range order.Items {
		if item.ID == itemID {
			return item, orderID, i, nil
		}
	}
	return domain.OrderItem{}, "", 0, domain.ErrOrderItemNotFound
}

func hasItemWithStatus(order domain.Order, status domain.ItemStatus) bool {
	for _, item := range order.Items {
		if item.Status == status {
			return true
		}
	}
	return false
}

// copyOrder делает глубокую копию, чтобы избежать мутаций извне.
func copyOrder(order domain.Order) domain.Order {
	cp := order
	cp.Items = make([]domain.OrderItem, len(order.Items))
	copy(cp.Items, order.Items)
	return cp
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
