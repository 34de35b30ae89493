package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rabbuy/shop/internal/domain"
)

func TestParseItemStatus(t *testing.T) {
	status, err := domain.ParseItemStatus("6")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if status != domain.ItemStatusRefundRequested {
		t.Fatalf("expected refund requested, got %v", status)
	}
}

func TestParseItemStatus_RejectsUnknownCodes(t *testing.T) {
	for _, code := range []string{"", "-1", "11", "abc", "1.5"} {
		if _, err := domain.ParseItemStatus(code); !errors.Is(err, domain.ErrUnknownItemStatus) {
			t.Fatalf("code %q: expected ErrUnknownItemStatus, got %v", code, err)
		}
	}
}

func TestCustomerTransitionTable(t *testing.T) {
	cases := []struct {
		from    domain.ItemStatus
		to      domain.ItemStatus
		allowed bool
	}{
		{domain.ItemStatusPaid, domain.ItemStatusRefundRequested, true},
		{domain.ItemStatusHold, domain.ItemStatusRefundRequested, true},
		{domain.ItemStatusAwaitingDelivery, domain.ItemStatusRefundRequested, true},
		{domain.ItemStatusShipped, domain.ItemStatusDelivered, true},
		{domain.ItemStatusShipped, domain.ItemStatusRefundRequested, true},
		{domain.ItemStatusDelivered, domain.ItemStatusRefundRequested, true},

		{domain.ItemStatusUnpaid, domain.ItemStatusPaid, false},
		{domain.ItemStatusPaid, domain.ItemStatusDelivered, false},
		{domain.ItemStatusShipped, domain.ItemStatusRefunded, false},
		{domain.ItemStatusRefundRequested, domain.ItemStatusRefunded, false},
		{domain.ItemStatusRefunded, domain.ItemStatusRefundRequested, false},
		{domain.ItemStatusCanceled, domain.ItemStatusRefundRequested, false},
		{domain.ItemStatusDone, domain.ItemStatusRefundRequested, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanCustomerTransition(tc.to); got != tc.allowed {
			t.Errorf("transition %v -> %v: expected allowed=%v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestItemStatus_Terminal(t *testing.T) {
	terminal := []domain.ItemStatus{
		domain.ItemStatusUnpaid,
		domain.ItemStatusCanceled,
		domain.ItemStatusRefundRequested,
		domain.ItemStatusRefunded,
		domain.ItemStatusRefundRejected,
		domain.ItemStatusDone,
	}
	for _, status := range terminal {
		if !status.Terminal() {
			t.Errorf("status %v should be terminal for the customer", status)
		}
	}

	active := []domain.ItemStatus{
		domain.ItemStatusPaid,
		domain.ItemStatusHold,
		domain.ItemStatusAwaitingDelivery,
		domain.ItemStatusShipped,
		domain.ItemStatusDelivered,
	}
	for _, status := range active {
		if status.Terminal() {
			t.Errorf("status %v should not be terminal for the customer", status)
		}
	}
}

func TestItemStatus_JSON(t *testing.T) {
	data, err := json.Marshal(domain.ItemStatusDone)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `"10"` {
		t.Fatalf("expected quoted decimal code, got %s", data)
	}

	var status domain.ItemStatus
	if err := json.Unmarshal([]byte(`"4"`), &status); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if status != domain.ItemStatusShipped {
		t.Fatalf("expected shipped, got %v", status)
	}

	if err := json.Unmarshal([]byte(`"42"`), &status); !errors.Is(err, domain.ErrUnknownItemStatus) {
		t.Fatalf("expected ErrUnknownItemStatus, got %v", err)
	}
	if _, err := json.Marshal(domain.ItemStatus(42)); err == nil {
		t.Fatal("expected marshal of unknown status to fail")
	}
}

func TestOrderStatus_Cascade(t *testing.T) {
	if status, ok := domain.OrderStatusPaid.CascadeItemStatus(); !ok || status != domain.ItemStatusPaid {
		t.Fatalf("paid order should cascade paid items, got %v ok=%v", status, ok)
	}
	if status, ok := domain.OrderStatusCanceled.CascadeItemStatus(); !ok || status != domain.ItemStatusCanceled {
		t.Fatalf("canceled order should cascade canceled items, got %v ok=%v", status, ok)
	}
	if _, ok := domain.OrderStatusUnpaid.CascadeItemStatus(); ok {
		t.Fatal("unpaid order should not cascade item statuses")
	}
}

func TestParseDeliveryTime(t *testing.T) {
	got, err := domain.ParseDeliveryTime("")
	if err != nil || got != domain.DeliveryTimeAny {
		t.Fatalf("empty code should mean any time, got %v err=%v", got, err)
	}
	if _, err := domain.ParseDeliveryTime("3"); !errors.Is(err, domain.ErrUnknownDeliveryTime) {
		t.Fatalf("expected ErrUnknownDeliveryTime, got %v", err)
	}
}

func TestParseOrderStatus(t *testing.T) {
	if _, err := domain.ParseOrderStatus("1"); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if _, err := domain.ParseOrderStatus("9"); !errors.Is(err, domain.ErrUnknownOrderStatus) {
		t.Fatalf("expected ErrUnknownOrderStatus, got %v", err)
	}
}
