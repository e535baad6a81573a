// Package product provides the product repository and its PostgreSQL implementation.
// Deleted products keep their row (referenced by historical order items) and are
// hidden from every read through deleted_at.
package product

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"

	"github.com/MikeMC777/ecom-points/internal/store"
)

var (
	ErrNotFound = errors.New("product not found")
)

type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id int64) (*Product, error)
	FindActiveByIDs(ctx context.Context, ids []int64) ([]Product, error)
	List(ctx context.Context, q Query) ([]Product, int, error)
	Update(ctx context.Context, id int64, patch Patch) (*Product, error)
	SoftDelete(ctx context.Context, id int64) (bool, error)
}

type PGRepo struct {
	db      *pgxpool.Pool
	catalog *sqlx.DB
}

func NewPGRepo(db *pgxpool.Pool, catalog *sqlx.DB) *PGRepo {
	return &PGRepo{db: db, catalog: catalog}
}

const productColumns = `id, name, description, price, stock, image, created_at, updated_at, deleted_at`

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Image, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
}

func (r *PGRepo) Create(ctx context.Context, p *Product) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO products (name, description, price, stock, image, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
		RETURNING id, created_at, updated_at
	`, p.Name, p.Description, p.Price, p.Stock, p.Image).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return pkgerrors.Wrap(err, "insert product")
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p Product
	err := scanProduct(r.db.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products WHERE id=$1 AND deleted_at IS NULL
	`, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "get product")
	}
	return &p, nil
}

// FindActiveByIDs returns the non-deleted products among ids. Missing ids are
// simply absent from the result; callers compare lengths.
func (r *PGRepo) FindActiveByIDs(ctx context.Context, ids []int64) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1) AND deleted_at IS NULL
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "find products")
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, pkgerrors.Wrap(err, "scan product")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepo) Update(ctx context.Context, id int64, patch Patch) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p Product
	err := scanProduct(r.db.QueryRow(ctx, `
		UPDATE products
		SET name        = COALESCE($2, name),
		    description = COALESCE($3, description),
		    price       = COALESCE($4, price),
		    stock       = COALESCE($5, stock),
		    image       = COALESCE($6, image),
		    updated_at  = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+productColumns,
		id, patch.Name, patch.Description, patch.Price, patch.Stock, patch.Image), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "update product")
	}
	return &p, nil
}

func (r *PGRepo) SoftDelete(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `
		UPDATE products SET deleted_at = NOW(), updated_at = NOW()
		WHERE id=$1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return false, pkgerrors.Wrap(err, "delete product")
	}
	return cmd.RowsAffected() > 0, nil
}

// DecrementStock lowers a product's stock by qty only if at least qty remains.
// It reports false when the product is deleted or no longer holds enough stock;
// the check and the write are one statement, so concurrent callers cannot both win.
func DecrementStock(ctx context.Context, db store.DBTX, id int64, qty int) (bool, error) {
	cmd, err := db.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND stock >= $2
	`, id, qty)
	if err != nil {
		return false, pkgerrors.Wrap(err, "decrement stock")
	}
	return cmd.RowsAffected() == 1, nil
}
