package memory

import (
	"sync"

	"github.com/rabbuy/shop/internal/domain"
)

// Store — in-memory хранилище для локальной разработки и тестов.
// Каталог и заказы живут под одним мьютексом: так резервирование стока
// и запись заказа сериализуются так же, как в одной транзакции БД.
type Store struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	users     map[string]domain.User
	addresses map[string]domain.Address
	orders    map[string]domain.Order
	// itemIndex отображает ID позиции в ID её заказа.
	itemIndex map[string]string
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		products:  make(map[string]domain.Product),
		users:     make(map[string]domain.User),
		addresses: make(map[string]domain.Address),
		orders:    make(map[string]domain.Order),
		itemIndex: make(map[string]string),
	}
}

// PutProduct добавляет или заменяет товар каталога.
func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// PutUser добавляет или заменяет пользователя.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutAddress добавляет или заменяет адрес доставки.
func (s *Store) PutAddress(a domain.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[a.ID] = a
}

// GetProduct возвращает товар; удалённые товары считаются отсутствующими.
func (s *Store) GetProduct(id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok || p.Deleted {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// GetUser возвращает пользователя или ErrUserNotFound.
func (s *Store) GetUser(id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

// GetAddress возвращает адрес или ErrAddressNotFound.
func (s *Store) GetAddress(id string) (domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.addresses[id]
	if !ok {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	return a, nil
}

// productView, userView, addressView — тонкие адаптеры, чтобы один Store
// закрывал несколько узких портов домена.
type productView struct{ s *Store }

func (v productView) Get(id string) (domain.Product, error) { return v.s.GetProduct(id) }

type userView struct{ s *Store }

func (v userView) Get(id string) (domain.User, error) { return v.s.GetUser(id) }

type addressView struct{ s *Store }

func (v addressView) Get(id string) (domain.Address, error) { return v.s.GetAddress(id) }

// Products возвращает представление хранилища как ProductRepository.
func (s *Store) Products() domain.ProductRepository { return productView{s: s} }

// Users возвращает представление хранилища как UserRepository.
func (s *Store) Users() domain.UserRepository { return userView{s: s} }

// Addresses возвращает представление хранилища как AddressRepository.
func (s *Store) Addresses() domain.AddressRepository { return addressView{s: s} }

var (
	_ domain.ProductRepository = productView{}
	_ domain.UserRepository    = userView{}
	_ domain.AddressRepository = addressView{}
)
