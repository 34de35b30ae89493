package domain

import "errors"

var (
	// ErrUserNotFound — покупатель не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrAddressNotFound — адрес доставки не найден.
	ErrAddressNotFound = errors.New("address not found")
	// ErrProductNotFound — товар не найден или удалён из каталога.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound — заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderItemNotFound — позиция заказа не найдена.
	ErrOrderItemNotFound = errors.New("order item not found")
	// ErrInsufficientStock — на складе меньше, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidTransition — переход статуса не разрешён таблицей переходов.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStatusConflict — предположение вызывающего о текущем статусе устарело.
	ErrStatusConflict = errors.New("item status conflict")
	// ErrOrderExists — заказ с таким идентификатором уже сохранён.
	ErrOrderExists = errors.New("order already exists")
	// ErrItemsRequired — заказ обязан содержать хотя бы одну позицию.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// ErrItemQtyInvalid — количество в позиции должно быть больше нуля.
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// ErrUnknownItemStatus — код статуса позиции вне закрытого множества.
	ErrUnknownItemStatus = errors.New("unknown item status code")
	// ErrUnknownOrderStatus — неизвестный код статуса заказа.
	ErrUnknownOrderStatus = errors.New("unknown order status code")
	// ErrUnknownDeliveryTime — неизвестный код времени доставки.
	ErrUnknownDeliveryTime = errors.New("unknown delivery time code")
)

// IsNotFound группирует ошибки отсутствия записей: граница HTTP
// отображает их в один и тот же класс ответа.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrAddressNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrOrderItemNotFound)
}

// IsValidation группирует ошибки некорректного ввода.
func IsValidation(err error) bool {
	return errors.Is(err, ErrItemsRequired) ||
		errors.Is(err, ErrItemQtyInvalid) ||
		errors.Is(err, ErrUnknownItemStatus) ||
		errors.Is(err, ErrUnknownOrderStatus) ||
		errors.Is(err, ErrUnknownDeliveryTime)
}
