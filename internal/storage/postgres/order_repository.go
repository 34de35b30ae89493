package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rabbuy/shop/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// Create резервирует сток и сохраняет заказ с позициями в одной
// транзакции. Декремент остатка — условный UPDATE с проверкой
// затронутых строк: два конкурентных заказа не пройдут по одному и
// тому же остатку.
func (r *orderRepository) Create(order domain.Order) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, item := range order.Items {
		if err = reserveStockTx(ctx, tx, item.Snapshot.ProductID, item.Snapshot.Qty); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (
			order_id, user_id, address_id, delivery_time, order_status, pay_method
		) VALUES ($1,$2,$3,$4,$5,NULLIF($6,''))
	`,
		order.ID, order.UserID, order.AddressID,
		string(order.DeliveryTime), string(order.Status), order.PayMethod,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderExists
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (
				item_id, order_id, item_status,
				product_id, product_name, price_minor, image, qty,
				unread, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`,
			item.ID, order.ID, int(item.Status),
			item.Snapshot.ProductID, item.Snapshot.Name, item.Snapshot.PriceMinor,
			item.Snapshot.Image, item.Snapshot.Qty,
			item.Unread, item.CreatedAt, item.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	return nil
}

// reserveStockTx — условный декремент остатка в рамках транзакции
// вызывающего. Ноль затронутых строк разделяется на "товара нет"
// и "не хватает остатка".
func reserveStockTx(ctx context.Context, tx *sql.Tx, productID string, qty int32) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE product_id = $1
		  AND NOT deleted
		  AND stock >= $2
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve stock rows affected: %w", err)
	}
	if affected == 0 {
		var name string
		err := tx.QueryRowContext(ctx, `
			SELECT name FROM products WHERE product_id = $1 AND NOT deleted
		`, productID).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
		}
		if err != nil {
			return fmt.Errorf("check product exists: %w", err)
		}
		return fmt.Errorf("%w: %s", domain.ErrInsufficientStock, name)
	}
	return nil
}

// restoreStockTx возвращает qty на остаток; отсутствующий или удалённый
// товар пропускается без ошибки.
func restoreStockTx(ctx context.Context, tx *sql.Tx, productID string, qty int32) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2
		WHERE product_id = $1
		  AND NOT deleted
	`, productID, qty); err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}

func (r *orderRepository) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		order        domain.Order
		deliveryTime string
		status       string
		payMethod    sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT order_id, user_id, address_id, delivery_time, order_status, pay_method
		FROM orders
		WHERE order_id = $1
	`, id).Scan(
		&order.ID, &order.UserID, &order.AddressID,
		&deliveryTime, &status, &payMethod,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.DeliveryTime = domain.DeliveryTime(deliveryTime)
	order.Status = domain.OrderStatus(status)
	order.PayMethod = payMethod.String

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

// Update сохраняет шапку заказа и каскадные статусы позиций.
func (r *orderRepository) Update(order domain.Order) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET address_id = $2,
		    delivery_time = $3,
		    order_status = $4,
		    pay_method = NULLIF($5,'')
		WHERE order_id = $1
	`,
		order.ID, order.AddressID, string(order.DeliveryTime),
		string(order.Status), order.PayMethod,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = domain.ErrOrderNotFound
		return err
	}

	for _, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			UPDATE order_items
			SET item_status = $2,
			    updated_at = NOW()
			WHERE item_id = $1
			  AND item_status <> $2
		`, item.ID, int(item.Status)); err != nil {
			return fmt.Errorf("cascade item status: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update order: %w", err)
	}

	return nil
}

func (r *orderRepository) GetItem(itemID string) (domain.OrderItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	item, err := scanItem(r.db.QueryRowContext(ctx, `
		SELECT item_id, order_id, item_status,
		       product_id, product_name, price_minor, image, qty,
		       unread, created_at, updated_at
		FROM order_items
		WHERE item_id = $1
	`, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OrderItem{}, domain.ErrOrderItemNotFound
		}
		return domain.OrderItem{}, fmt.Errorf("select order item: %w", err)
	}
	return item, nil
}

// UpdateItemStatus — compare-and-swap: UPDATE с предикатом по ожидаемому
// статусу вместо read-then-write.
func (r *orderRepository) UpdateItemStatus(itemID string, expected, next domain.ItemStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE order_items
		SET item_status = $3,
		    updated_at = NOW()
		WHERE item_id = $1
		  AND item_status = $2
	`, itemID, int(expected), int(next))
	if err != nil {
		return fmt.Errorf("update item status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.itemExists(ctx, itemID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderItemNotFound
		}
		return domain.ErrStatusConflict
	}
	return nil
}

// SetItemStatus — административная запись статуса без ожидания.
func (r *orderRepository) SetItemStatus(itemID string, next domain.ItemStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE order_items
		SET item_status = $2,
		    updated_at = NOW()
		WHERE item_id = $1
	`, itemID, int(next))
	if err != nil {
		return fmt.Errorf("set item status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderItemNotFound
	}
	return nil
}

// SettleRefund закрывает возврат одной транзакцией: условная запись
// статуса плюс возврат стока. Предикат по "запрошен возврат" гарантирует,
// что повтор решения не вернёт сток второй раз.
func (r *orderRepository) SettleRefund(itemID string, next domain.ItemStatus, productID string, qty int32) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE order_items
		SET item_status = $3,
		    updated_at = NOW()
		WHERE item_id = $1
		  AND item_status = $2
	`, itemID, int(domain.ItemStatusRefundRequested), int(next))
	if err != nil {
		return fmt.Errorf("settle refund status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, checkErr := r.itemExists(ctx, itemID)
		if checkErr != nil {
			err = checkErr
			return err
		}
		if !exists {
			err = domain.ErrOrderItemNotFound
			return err
		}
		err = domain.ErrStatusConflict
		return err
	}

	if err = restoreStockTx(ctx, tx, productID, qty); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit settle refund: %w", err)
	}

	return nil
}

// FindOrderIDs отбирает кандидатов для листинга; тяжёлая группировка
// выполняется потом в памяти.
func (r *orderRepository) FindOrderIDs(userID string, filter *domain.ItemStatus) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		rows *sql.Rows
		err  error
	)

	switch {
	case filter != nil && userID != "":
		rows, err = r.db.QueryContext(ctx, `
			SELECT DISTINCT o.order_id
			FROM orders o
			JOIN order_items i ON i.order_id = o.order_id
			WHERE o.user_id = $1
			  AND i.item_status = $2
		`, userID, int(*filter))
	case filter != nil:
		rows, err = r.db.QueryContext(ctx, `
			SELECT DISTINCT o.order_id
			FROM orders o
			JOIN order_items i ON i.order_id = o.order_id
			WHERE i.item_status = $1
		`, int(*filter))
	case userID != "":
		rows, err = r.db.QueryContext(ctx, `
			SELECT order_id FROM orders WHERE user_id = $1
		`, userID)
	default:
		rows, err = r.db.QueryContext(ctx, `SELECT order_id FROM orders`)
	}
	if err != nil {
		return nil, fmt.Errorf("find order ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order ids: %w", err)
	}

	return ids, nil
}

// ListWithItems грузит заказы и все их позиции двумя пакетными
// запросами — без запроса на каждый заказ.
func (r *orderRepository) ListWithItems(ids []string) ([]domain.Order, error) {
	if len(ids) == 0 {
		return []domain.Order{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	placeholders, args := inArgs(ids)

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT order_id, user_id, address_id, delivery_time, order_status, pay_method
		FROM orders
		WHERE order_id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*domain.Order, len(ids))
	ordered := make([]string, 0, len(ids))
	for rows.Next() {
		var (
			order        domain.Order
			deliveryTime string
			status       string
			payMethod    sql.NullString
		)
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.AddressID,
			&deliveryTime, &status, &payMethod,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.DeliveryTime = domain.DeliveryTime(deliveryTime)
		order.Status = domain.OrderStatus(status)
		order.PayMethod = payMethod.String
		order.Items = make([]domain.OrderItem, 0, 4)
		byID[order.ID] = &order
		ordered = append(ordered, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	itemRows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT item_id, order_id, item_status,
		       product_id, product_name, price_minor, image, qty,
		       unread, created_at, updated_at
		FROM order_items
		WHERE order_id IN (%s)
		ORDER BY item_id ASC
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		item, err := scanItem(itemRows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if order, ok := byID[item.OrderID]; ok {
			order.Items = append(order.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	orders := make([]domain.Order, 0, len(ordered))
	for _, id := range ordered {
		orders = append(orders, *byID[id])
	}
	return orders, nil
}

func (r *orderRepository) CountUnread(userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var count int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM order_items i
		JOIN orders o ON o.order_id = i.order_id
		WHERE o.user_id = $1
		  AND i.unread
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread items: %w", err)
	}
	return count, nil
}

// MarkAllRead — одна массовая операция, не цикл по позициям.
func (r *orderRepository) MarkAllRead(userID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		UPDATE order_items
		SET unread = FALSE
		WHERE unread
		  AND order_id IN (SELECT order_id FROM orders WHERE user_id = $1)
	`, userID); err != nil {
		return fmt.Errorf("mark items read: %w", err)
	}
	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item_id, order_id, item_status,
		       product_id, product_name, price_minor, image, qty,
		       unread, created_at, updated_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY item_id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) itemExists(ctx context.Context, itemID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT item_id FROM order_items WHERE item_id = $1`, itemID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check item exists: %w", err)
}

// rowScanner покрывает и *sql.Row, и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.OrderItem, error) {
	var (
		item   domain.OrderItem
		status int
	)
	if err := row.Scan(
		&item.ID, &item.OrderID, &status,
		&item.Snapshot.ProductID, &item.Snapshot.Name, &item.Snapshot.PriceMinor,
		&item.Snapshot.Image, &item.Snapshot.Qty,
		&item.Unread, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return domain.OrderItem{}, err
	}
	item.Status = domain.ItemStatus(status)
	if !item.Status.Valid() {
		return domain.OrderItem{}, fmt.Errorf("%w: %d", domain.ErrUnknownItemStatus, status)
	}
	return item, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// inArgs строит список плейсхолдеров $1..$n для IN-запроса.
func inArgs(ids []string) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
}

var _ domain.OrderRepository = (*orderRepository)(nil)
