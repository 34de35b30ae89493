package domain

import (
	"fmt"
	"strconv"
)

// ItemStatus описывает состояние позиции заказа. Значения упорядочены:
// чем больше число, тем дальше позиция продвинулась по жизненному циклу.
// На проводе статус кодируется десятичной строкой ("0".."10") для
// совместимости с витриной.
type ItemStatus int

const (
	// ItemStatusUnpaid — позиция создана, оплата не подтверждена.
	ItemStatusUnpaid ItemStatus = 0
	// ItemStatusPaid — оплачено, ожидает отгрузки со склада.
	ItemStatusPaid ItemStatus = 1
	// ItemStatusCanceled — заказ отменён до исполнения.
	ItemStatusCanceled ItemStatus = 2
	// ItemStatusAwaitingDelivery — передано в доставку, ожидает получения.
	ItemStatusAwaitingDelivery ItemStatus = 3
	// ItemStatusShipped — отгружено продавцом.
	ItemStatusShipped ItemStatus = 4
	// ItemStatusDelivered — покупатель подтвердил получение.
	ItemStatusDelivered ItemStatus = 5
	// ItemStatusRefundRequested — покупатель запросил возврат.
	ItemStatusRefundRequested ItemStatus = 6
	// ItemStatusRefunded — возврат одобрен, деньги и сток возвращены.
	ItemStatusRefunded ItemStatus = 7
	// ItemStatusRefundRejected — возврат отклонён администратором.
	ItemStatusRefundRejected ItemStatus = 8
	// ItemStatusHold — оплата отложена (ожидание платежа).
	ItemStatusHold ItemStatus = 9
	// ItemStatusDone — позиция закрыта: получена и оценена покупателем.
	ItemStatusDone ItemStatus = 10
)

// itemStatuses — закрытое множество допустимых кодов. Никакой другой код
// не должен попадать в хранилище.
var itemStatuses = map[ItemStatus]struct{}{
	ItemStatusUnpaid:           {},
	ItemStatusPaid:             {},
	ItemStatusCanceled:         {},
	ItemStatusAwaitingDelivery: {},
	ItemStatusShipped:          {},
	ItemStatusDelivered:        {},
	ItemStatusRefundRequested:  {},
	ItemStatusRefunded:         {},
	ItemStatusRefundRejected:   {},
	ItemStatusHold:             {},
	ItemStatusDone:             {},
}

// customerTransitions — таблица переходов, доступных покупателю.
// Всё, чего здесь нет, покупателю запрещено.
var customerTransitions = map[ItemStatus][]ItemStatus{
	ItemStatusPaid:             {ItemStatusRefundRequested},
	ItemStatusHold:             {ItemStatusRefundRequested},
	ItemStatusAwaitingDelivery: {ItemStatusRefundRequested},
	ItemStatusShipped:          {ItemStatusDelivered, ItemStatusRefundRequested},
	ItemStatusDelivered:        {ItemStatusRefundRequested},
}

// ParseItemStatus разбирает проводной код статуса и отклоняет всё вне
// закрытого множества. Невалидные коды отсекаются на записи, а не
// молча пропускаются при агрегации.
func ParseItemStatus(code string) (ItemStatus, error) {
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownItemStatus, code)
	}
	status := ItemStatus(n)
	if !status.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownItemStatus, code)
	}
	return status, nil
}

// Valid сообщает, входит ли статус в закрытое множество.
func (s ItemStatus) Valid() bool {
	_, ok := itemStatuses[s]
	return ok
}

// Terminal сообщает, что дальнейшие переходы покупателю недоступны.
func (s ItemStatus) Terminal() bool {
	_, ok := customerTransitions[s]
	return !ok
}

// CanCustomerTransition проверяет переход по таблице покупателя.
func (s ItemStatus) CanCustomerTransition(next ItemStatus) bool {
	for _, allowed := range customerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String возвращает проводной код статуса.
func (s ItemStatus) String() string {
	return strconv.Itoa(int(s))
}

// MarshalJSON кодирует статус строкой, как его отдаёт витрина.
func (s ItemStatus) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownItemStatus, int(s))
	}
	return []byte(strconv.Quote(s.String())), nil
}

// UnmarshalJSON принимает строковый код и валидирует его.
func (s *ItemStatus) UnmarshalJSON(data []byte) error {
	code, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownItemStatus, data)
	}
	parsed, err := ParseItemStatus(code)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// OrderStatus — статус заказа целиком; отдельная ось от статусов позиций,
// используется для учёта оплаты и отмены.
type OrderStatus string

const (
	// OrderStatusUnpaid — заказ создан, оплата не поступила.
	OrderStatusUnpaid OrderStatus = "0"
	// OrderStatusPaid — заказ оплачен.
	OrderStatusPaid OrderStatus = "1"
	// OrderStatusCanceled — заказ отменён.
	OrderStatusCanceled OrderStatus = "2"
)

// ParseOrderStatus валидирует проводной код статуса заказа.
func ParseOrderStatus(code string) (OrderStatus, error) {
	switch OrderStatus(code) {
	case OrderStatusUnpaid, OrderStatusPaid, OrderStatusCanceled:
		return OrderStatus(code), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOrderStatus, code)
}

// CascadeItemStatus возвращает статус, который нужно каскадно выставить
// нетерминальным позициям при смене статуса заказа, и признак того,
// что каскад вообще требуется.
func (s OrderStatus) CascadeItemStatus() (ItemStatus, bool) {
	switch s {
	case OrderStatusPaid:
		return ItemStatusPaid, true
	case OrderStatusCanceled:
		return ItemStatusCanceled, true
	}
	return 0, false
}

// DeliveryTime — предпочтение по времени доставки.
type DeliveryTime string

const (
	// DeliveryTimeAny — доставка в любое время.
	DeliveryTimeAny DeliveryTime = "0"
	// DeliveryTimeWeekday — доставка по будням.
	DeliveryTimeWeekday DeliveryTime = "1"
	// DeliveryTimeWeekend — доставка по выходным.
	DeliveryTimeWeekend DeliveryTime = "2"
)

// ParseDeliveryTime валидирует код предпочтения доставки; пустой ввод
// трактуется как "в любое время".
func ParseDeliveryTime(code string) (DeliveryTime, error) {
	if code == "" {
		return DeliveryTimeAny, nil
	}
	switch DeliveryTime(code) {
	case DeliveryTimeAny, DeliveryTimeWeekday, DeliveryTimeWeekend:
		return DeliveryTime(code), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDeliveryTime, code)
}
