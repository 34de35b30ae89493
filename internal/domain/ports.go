package domain

// OrderRepository отвечает за заказы, их позиции и связанные с ними
// движения стока. Резервирование и возврат стока выполняются внутри той
// же единицы работы, что и запись заказа/позиции — это контракт
// реализации, а не деталь.
type OrderRepository interface {
	// Create атомарно резервирует сток под каждую позицию (условный
	// декремент с проверкой остатка) и сохраняет заказ с позициями.
	// Любой отказ откатывает всё: частичных заказов не бывает.
	Create(order Order) error
	// Get возвращает заказ вместе с позициями.
	Get(id string) (Order, error)
	// Update сохраняет шапку заказа и статусы/метки времени позиций
	// (каскад при смене статуса заказа).
	Update(order Order) error
	// GetItem возвращает позицию по идентификатору.
	GetItem(itemID string) (OrderItem, error)
	// UpdateItemStatus — compare-and-swap статуса позиции: запись
	// происходит, только если хранимый статус равен expected, иначе
	// ErrStatusConflict.
	UpdateItemStatus(itemID string, expected, next ItemStatus) error
	// SetItemStatus выставляет статус без проверки ожидания
	// (административный путь вне таблицы переходов покупателя).
	SetItemStatus(itemID string, next ItemStatus) error
	// SettleRefund закрывает возврат: переводит позицию из
	// "запрошен возврат" в next и в той же транзакции возвращает qty
	// на остаток товара. Если товара больше нет, возврат стока
	// пропускается, запись статуса всё равно выполняется. Если позиция
	// уже не в статусе "запрошен возврат" — ErrStatusConflict, и сток
	// не трогается.
	SettleRefund(itemID string, next ItemStatus, productID string, qty int32) error
	// FindOrderIDs возвращает идентификаторы заказов пользователя
	// (userID == "" — по всем пользователям); при заданном filter —
	// только заказы, где есть хотя бы одна позиция с этим статусом.
	FindOrderIDs(userID string, filter *ItemStatus) ([]string, error)
	// ListWithItems выполняет один пакетный запрос заказов с позициями
	// по списку идентификаторов (без фан-аута по одному заказу).
	ListWithItems(ids []string) ([]Order, error)
	// CountUnread считает непрочитанные позиции пользователя.
	CountUnread(userID string) (int64, error)
	// MarkAllRead массово снимает флаг непрочитанного у всех позиций
	// заказов пользователя одной операцией.
	MarkAllRead(userID string) error
}

// ProductRepository читает товары каталога для заморозки снапшотов.
type ProductRepository interface {
	// Get возвращает товар или ErrProductNotFound (в том числе для
	// удалённых товаров).
	Get(id string) (Product, error)
}

// UserRepository проверяет существование покупателя.
type UserRepository interface {
	Get(id string) (User, error)
}

// AddressRepository читает адреса доставки.
type AddressRepository interface {
	Get(id string) (Address, error)
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}
