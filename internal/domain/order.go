package domain

import (
	"fmt"
	"time"
)

// ProductSnapshot — замороженная копия товарных данных на момент покупки.
// После записи не мутирует: изменения цены или названия в каталоге не
// должны задним числом переписывать историю заказов.
type ProductSnapshot struct {
	ProductID string
	Name      string
	// PriceMinor — цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	Image      string
	Qty        int32
}

// OrderItem представляет одну купленную позицию заказа.
type OrderItem struct {
	// ID строится детерминированно: orderID + "-" + порядковый индекс.
	ID      string
	OrderID string
	Status  ItemStatus
	// Snapshot — единственный источник товарных данных позиции;
	// живой каталог после покупки не перечитывается.
	Snapshot ProductSnapshot
	// Unread — флаг непрочитанного уведомления для владельца заказа.
	Unread    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemID собирает детерминированный идентификатор позиции.
func ItemID(orderID string, index int) string {
	return fmt.Sprintf("%s-%d", orderID, index)
}

// Order агрегирует заказ и его позиции. Заказ владеет позициями,
// обратная ссылка OrderID — ключ поиска, а не второе ребро владения.
type Order struct {
	ID           string
	UserID       string
	AddressID    string
	DeliveryTime DeliveryTime
	Status       OrderStatus
	// PayMethod — код способа оплаты; пустая строка, пока оплата не выбрана.
	PayMethod string
	Items     []OrderItem
}

// ValidateInvariants проверяет базовые инварианты заказа перед записью.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, fmt.Errorf("%w: empty user id", ErrUserNotFound))
	}
	if o.AddressID == "" {
		errs = append(errs, fmt.Errorf("%w: empty address id", ErrAddressNotFound))
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for _, item := range o.Items {
		if item.Snapshot.Qty <= 0 {
			errs = append(errs, fmt.Errorf("%w: item %s", ErrItemQtyInvalid, item.ID))
		}
		if !item.Status.Valid() {
			errs = append(errs, fmt.Errorf("%w: item %s", ErrUnknownItemStatus, item.ID))
		}
	}

	return errs
}

// AmountMinor — сумма заказа по снапшотам позиций: qty * price.
func (o *Order) AmountMinor() int64 {
	var sum int64
	for _, item := range o.Items {
		sum += int64(item.Snapshot.Qty) * item.Snapshot.PriceMinor
	}
	return sum
}
