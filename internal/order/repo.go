package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/MikeMC777/ecom-points/internal/apperr"
	"github.com/MikeMC777/ecom-points/internal/product"
	"github.com/MikeMC777/ecom-points/internal/store"
	"github.com/MikeMC777/ecom-points/internal/user"
)

var (
	ErrNotFound = errors.New("order not found")
)

// Store is the persistence the placement engine depends on. Writes only happen
// through InTx.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetByID(ctx context.Context, id int64) (*Order, []Item, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, int, error)
}

// Tx is the unit of work handed to InTx callbacks. Nothing it writes is visible
// outside the transaction until the callback returns nil.
type Tx interface {
	CreateOrder(ctx context.Context, userID int64) (*Order, error)
	// DecrementStock lowers stock by qty only while stock >= qty; it reports
	// false when the row no longer holds enough.
	DecrementStock(ctx context.Context, productID int64, qty int) (bool, error)
	CreateItem(ctx context.Context, it *Item) error
	SetTotal(ctx context.Context, orderID, total int64) error
	CreditPoints(ctx context.Context, userID, points int64) (int64, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return store.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(pgTx{tx: tx})
	})
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (*Order, []Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var o Order
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, total_price, created_at
		FROM orders WHERE id=$1
	`, id).Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "get order")
	}

	items, err := r.GetItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return &o, items, nil
}

func (r *PGRepo) GetItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, total_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "get order items")
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, pkgerrors.Wrap(err, "scan order item")
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PGRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Order, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id=$1`, userID).Scan(&total); err != nil {
		return nil, 0, pkgerrors.Wrap(err, "count orders")
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, total_price, created_at
		FROM orders WHERE user_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "list orders")
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.CreatedAt); err != nil {
			return nil, 0, pkgerrors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

type pgTx struct{ tx pgx.Tx }

func (t pgTx) CreateOrder(ctx context.Context, userID int64) (*Order, error) {
	o := &Order{UserID: userID}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, total_price, created_at)
		VALUES ($1, 0, NOW())
		RETURNING id, created_at
	`, userID).Scan(&o.ID, &o.CreatedAt)
	if isForeignKeyViolation(err) {
		return nil, apperr.NotFound("user %d not found", userID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "insert order")
	}
	return o, nil
}

func (t pgTx) DecrementStock(ctx context.Context, productID int64, qty int) (bool, error) {
	return product.DecrementStock(ctx, t.tx, productID, qty)
}

func (t pgTx) CreateItem(ctx context.Context, it *Item) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, it.OrderID, it.ProductID, it.Quantity, it.UnitPrice, it.TotalPrice).Scan(&it.ID)
	return pkgerrors.Wrap(err, "insert order item")
}

func (t pgTx) SetTotal(ctx context.Context, orderID, total int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET total_price = $2 WHERE id = $1`, orderID, total)
	return pkgerrors.Wrap(err, "update order total")
}

func (t pgTx) CreditPoints(ctx context.Context, userID, points int64) (int64, error) {
	balance, err := user.AddPoints(ctx, t.tx, userID, points)
	if errors.Is(err, user.ErrNotFound) {
		return 0, apperr.NotFound("user %d not found", userID)
	}
	return balance, err
}
