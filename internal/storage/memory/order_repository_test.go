package memory_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rabbuy/shop/internal/domain"
	"github.com/rabbuy/shop/internal/storage/memory"
)

func newStore() *memory.Store {
	store := memory.NewStore()
	store.PutUser(domain.User{ID: "user-1", Username: "ivan"})
	store.PutAddress(domain.Address{ID: "address-1", UserID: "user-1", Line: "Ленина, 10"})
	store.PutProduct(domain.Product{ID: "prod-1", Name: "Чай", PriceMinor: 1000, Stock: 10, Available: true})
	store.PutProduct(domain.Product{ID: "prod-2", Name: "Кофе", PriceMinor: 500, Stock: 3, Available: true})
	return store
}

func newOrder(id, userID string) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:           id,
		UserID:       userID,
		AddressID:    "address-1",
		DeliveryTime: domain.DeliveryTimeAny,
		Status:       domain.OrderStatusUnpaid,
		Items: []domain.OrderItem{
			{
				ID:      domain.ItemID(id, 0),
				OrderID: id,
				Status:  domain.ItemStatusUnpaid,
				Snapshot: domain.ProductSnapshot{
					ProductID: "prod-1", Name: "Чай", PriceMinor: 1000, Qty: 2,
				},
				Unread:    true,
				CreatedAt: now,
				UpdatedAt: now,
			},
			{
				ID:      domain.ItemID(id, 1),
				OrderID: id,
				Status:  domain.ItemStatusUnpaid,
				Snapshot: domain.ProductSnapshot{
					ProductID: "prod-2", Name: "Кофе", PriceMinor: 500, Qty: 1,
				},
				Unread:    true,
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
	}
}

func TestOrderRepository_CreateReservesStock(t *testing.T) {
	store := newStore()
	repo := memory.NewOrderRepository(store)

	if err := repo.Create(newOrder("order-1", "user-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	p1, err := store.GetProduct("prod-1")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if p1.Stock != 8 {
		t.Fatalf("expected stock 8 after reservation, got %d", p1.Stock)
	}
	p2, _ := store.GetProduct("prod-2")
	if p2.Stock != 2 {
		t.Fatalf("expected stock 2 after reservation, got %d", p2.Stock)
	}
}

func TestOrderRepository_CreateOversellLeavesNothingBehind(t *testing.T) {
	store := newStore()
	repo := memory.NewOrderRepository(store)

	order := newOrder("order-1", "user-1")
	// Вторая позиция требует больше, чем есть на складе. Первая при
	// этом тоже не должна списаться.
	order.Items[1].Snapshot.Qty = 5

	err := repo.Create(order)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	p1, _ := store.GetProduct("prod-1")
	if p1.Stock != 10 {
		t.Fatalf("stock of first item must be intact, got %d", p1.Stock)
	}
	if _, err := repo.Get("order-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("partial order must not be stored, got %v", err)
	}
}

func TestOrderRepository_CreateDuplicate(t *testing.T) {
	store := newStore()
	repo := memory.NewOrderRepository(store)

	if err := repo.Create(newOrder("order-1", "user-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(newOrder("order-1", "user-1")); !errors.Is(err, domain.ErrOrderExists) {
		t.Fatalf("expected ErrOrderExists, got %v", err)
	}
}

func TestOrderRepository_ConcurrentReservationNeverOversells(t *testing.T) {
	store := memory.NewStore()
	store.PutProduct(domain.Product{ID: "scarce", Name: "Дефицит", PriceMinor: 100, Stock: 5, Available: true})
	repo := memory.NewOrderRepository(store)

	const workers = 20
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			order := domain.Order{
				ID:        domain.ItemID("race", n),
				UserID:    "user-1",
				AddressID: "address-1",
				Status:    domain.OrderStatusUnpaid,
				Items: []domain.OrderItem{{
					ID:       domain.ItemID(domain.ItemID("race", n), 0),
					Status:   domain.ItemStatusUnpaid,
					Snapshot: domain.ProductSnapshot{ProductID: "scarce", Qty: 1},
				}},
			}
			if err := repo.Create(order); err == nil {
				successes <- struct{}{}
			}
		}(i)
	}
	wg.Wait()
	close(successes)

	won := len(successes)
	if won != 5 {
		t.Fatalf("expected exactly 5 successful reservations, got %d", won)
	}
	p, _ := store.GetProduct("scarce")
	if p.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", p.Stock)
	}
}

func TestOrderRepository_UpdateItemStatusCAS(t *testing.T) {
	store := newStore()
	repo := memory.NewOrderRepository(store)
	if err := repo.Create(newOrder("order-1", "user-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	itemID := domain.ItemID("order-1", 0)

	if err := repo.SetItemStatus(itemID, domain.ItemStatusShipped); err != nil {
		t.Fatalf("set status failed: %v", err)
	}

	if err := repo.UpdateItemStatus(itemID, domain.ItemStatusShipped, domain.ItemStatusDelivered); err != nil {
		t.Fatalf("cas update failed: %v", err)
	}

	// Повтор с тем же ожиданием: статус уже не Shipped.
	err := repo.UpdateItemStatus(itemID, domain.ItemStatusShipped, domain.ItemStatusDelivered)
	if !errors.Is(err, domain.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}

	item, err := repo.GetItem(itemID)
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.Status != domain.ItemStatusDelivered {
		t.Fatalf("expected delivered, got %v", item.Status)
	}
}

func TestOrderRepository_SettleRefundRestoresStockOnce(t *testing.T) {
	store := newStore()
	repo := memory.NewOrderRepository(store)
	if err := repo.Create(newOrder("order-1", "user-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	itemID := domain.ItemID("order-1", 0)

	if err := repo.SetItemStatus(itemID, domain.ItemStatusRefundRequested); err != nil {
		t.Fatalf("set status failed: %v", err)
	}

	if err := repo.SettleRefund(itemID, domain.ItemStatusRefunded, "prod-1", 2); err != nil {
		t.Fatalf("settle refund failed: %v", err)
	}
	p, _ := store.GetProduct("prod-1")
	if p.Stock != 10 {
		t.Fatalf("expected stock restored to 10, got %d", p.Stock)
	}

	// Повторное решение по тому же возврату не проходит и не удваивает сток.
	err := repo.SettleRefund(itemID, domain.ItemStatusRefunded, "prod-1", 2)
	if !errors.Is(err, domain.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict on repeat, got %v", err)
	}
	p, _ = store.GetProduct("prod-1")
	if p.Stock != 10 {
		t.Fatalf("stock must not change on repeated settle, got %d", p.Stock)
	}
}

func TestOrderRepository_SettleRefundMissingProduct(t *testing.T) {
	store := newStore()
	repo := memory.NewOrderRepository(store)
	if err := repo.Create(newOrder("order-1", "user-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	itemID := domain.ItemID("order-1", 1)
	if err := repo.SetItemStatus(itemID, domain.ItemStatusRefundRequested); err != nil {
		t.Fatalf("set status failed: %v", err)
	}

	// Товар исчез из каталога: возврат всё равно фиксируется.
	if err := repo.SettleRefund(itemID, domain.ItemStatusRefunded, "vanished", 1); err != nil {
		t.Fatalf("settle refund with missing product failed: %v", err)
	}
	item, _ := repo.GetItem(itemID)
	if item.Status != domain.ItemStatusRefunded {
		t.Fatalf("expected refunded, got %v", item.Status)
	}
}

func TestOrderRepository_FindOrderIDsFilters(t *testing.T) {
	store := newStore()
	repo := memory.NewOrderRepository(store)
	if err := repo.Create(newOrder("order-1", "user-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	other := newOrder("order-2", "user-2")
	other.Items = other.Items[:1]
	if err := repo.Create(other); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.SetItemStatus(domain.ItemID("order-2", 0), domain.ItemStatusRefundRequested); err != nil {
		t.Fatalf("set status failed: %v", err)
	}

	ids, err := repo.FindOrderIDs("user-1", nil)
	if err != nil || len(ids) != 1 || ids[0] != "order-1" {
		t.Fatalf("expected [order-1], got %v err=%v", ids, err)
	}

	all, err := repo.FindOrderIDs("", nil)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected both orders for empty user, got %v err=%v", all, err)
	}

	refund := domain.ItemStatusRefundRequested
	filtered, err := repo.FindOrderIDs("", &refund)
	if err != nil || len(filtered) != 1 || filtered[0] != "order-2" {
		t.Fatalf("expected [order-2], got %v err=%v", filtered, err)
	}
}

func TestOrderRepository_UnreadLifecycle(t *testing.T) {
	store := newStore()
	repo := memory.NewOrderRepository(store)
	if err := repo.Create(newOrder("order-1", "user-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	count, err := repo.CountUnread("user-1")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 unread items, got %d", count)
	}

	if err := repo.MarkAllRead("user-1"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	count, _ = repo.CountUnread("user-1")
	if count != 0 {
		t.Fatalf("expected 0 unread items, got %d", count)
	}
}

func TestOrderRepository_UpdateKeepsSnapshotsImmutable(t *testing.T) {
	store := newStore()
	repo := memory.NewOrderRepository(store)
	if err := repo.Create(newOrder("order-1", "user-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	order, err := repo.Get("order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	order.Status = domain.OrderStatusPaid
	order.Items[0].Status = domain.ItemStatusPaid
	order.Items[0].Snapshot.PriceMinor = 99999

	if err := repo.Update(order); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	stored, _ := repo.Get("order-1")
	if stored.Status != domain.OrderStatusPaid {
		t.Fatalf("expected paid order, got %v", stored.Status)
	}
	if stored.Items[0].Status != domain.ItemStatusPaid {
		t.Fatalf("expected paid item, got %v", stored.Items[0].Status)
	}
	if stored.Items[0].Snapshot.PriceMinor != 1000 {
		t.Fatalf("snapshot price must stay frozen, got %d", stored.Items[0].Snapshot.PriceMinor)
	}
}
