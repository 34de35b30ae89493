package memory_test

import (
	"testing"

	"github.com/rabbuy/shop/internal/domain"
	"github.com/rabbuy/shop/internal/storage/memory"
)

func TestTimelineRepository_AppendList(t *testing.T) {
	repo := memory.NewTimelineRepository()

	if err := repo.Append(domain.TimelineEvent{OrderID: "order-1", Type: "OrderCreated"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := repo.Append(domain.TimelineEvent{OrderID: "order-1", Type: "ItemStatusChanged", Reason: "item order-1-0: 1 -> 6"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	events, err := repo.List("order-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Occurred.IsZero() {
		t.Fatal("append must fill zero Occurred timestamp")
	}

	other, err := repo.List("order-2")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no events for unknown order, got %d", len(other))
	}
}
