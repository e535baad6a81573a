package user

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/MikeMC777/ecom-points/internal/store"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrAlreadyExist = errors.New("user already exists")
	ErrHasOrders    = errors.New("user has orders")
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, id int64, patch Patch) (*User, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

// PointLedger runs point mutations as one unit of work.
type PointLedger interface {
	InTx(ctx context.Context, fn func(tx PointTx) error) error
}

// PointTx is the set of point operations available inside a ledger transaction.
type PointTx interface {
	// LockBalances locks the rows of ids in ascending id order and returns their
	// balances. Unknown ids are absent from the map.
	LockBalances(ctx context.Context, ids ...int64) (map[int64]int64, error)
	AddPoints(ctx context.Context, userID, delta int64) (int64, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const userColumns = `id, name, email, password_hash, role, point, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Point, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "scan user")
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func (r *PGRepo) Create(ctx context.Context, u *User) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role, point, created_at, updated_at)
		VALUES ($1,$2,$3,$4,0,NOW(),NOW())
		RETURNING id, point, created_at, updated_at
	`, u.Name, u.Email, u.PasswordHash, u.Role).Scan(&u.ID, &u.Point, &u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExist
	}
	return pkgerrors.Wrap(err, "insert user")
}

func (r *PGRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (r *PGRepo) Update(ctx context.Context, id int64, patch Patch) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	u, err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users
		SET name          = COALESCE($2, name),
		    email         = COALESCE($3, email),
		    password_hash = COALESCE($4, password_hash),
		    updated_at    = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, patch.Name, patch.Email, patch.PasswordHash))
	if isUniqueViolation(err) {
		return nil, ErrAlreadyExist
	}
	return u, err
}

func (r *PGRepo) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if isForeignKeyViolation(err) {
		return false, ErrHasOrders
	}
	if err != nil {
		return false, pkgerrors.Wrap(err, "delete user")
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGRepo) InTx(ctx context.Context, fn func(tx PointTx) error) error {
	return store.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(pgPointTx{db: tx})
	})
}

type pgPointTx struct{ db store.DBTX }

func (t pgPointTx) LockBalances(ctx context.Context, ids ...int64) (map[int64]int64, error) {
	rows, err := t.db.Query(ctx, `
		SELECT id, point FROM users
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "lock balances")
	}
	defer rows.Close()

	out := make(map[int64]int64, len(ids))
	for rows.Next() {
		var id, point int64
		if err := rows.Scan(&id, &point); err != nil {
			return nil, pkgerrors.Wrap(err, "scan balance")
		}
		out[id] = point
	}
	return out, rows.Err()
}

func (t pgPointTx) AddPoints(ctx context.Context, userID, delta int64) (int64, error) {
	return AddPoints(ctx, t.db, userID, delta)
}

// AddPoints moves a user's balance by delta and returns the new balance. The
// point >= 0 check constraint rejects any debit that would overdraw.
func AddPoints(ctx context.Context, db store.DBTX, userID, delta int64) (int64, error) {
	var point int64
	err := db.QueryRow(ctx, `
		UPDATE users SET point = point + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING point
	`, userID, delta).Scan(&point)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, pkgerrors.Wrap(err, "add points")
	}
	return point, nil
}
