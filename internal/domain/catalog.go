package domain

// Product — читаемая здесь проекция товара из каталога. Ядро заказов
// мутирует только счётчик Stock (резервирование и возврат), остальными
// полями владеет подсистема каталога.
type Product struct {
	ID   string
	Name string
	// PriceMinor — текущая цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	Stock      int32
	// Image — ссылка на первую картинку товара; попадает в снапшот.
	Image     string
	Deleted   bool
	Available bool
}

// User — внешняя сущность идентичности; здесь нужна только для проверки
// существования владельца заказа.
type User struct {
	ID       string
	Username string
}

// Address — адрес доставки из адресной книги покупателя.
type Address struct {
	ID     string
	UserID string
	Line   string
}
