package product

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	MaxPage      = 10000
)

// Sort keys accepted by List.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
)

var sortClauses = map[string]string{
	SortNewest:    "created_at DESC, id DESC",
	SortPriceAsc:  "price ASC, id ASC",
	SortPriceDesc: "price DESC, id DESC",
	SortName:      "name ASC, id ASC",
}

// Query holds the catalog listing filters as read from the query string.
type Query struct {
	Q        string `form:"q"        binding:"max=200"`
	MinPrice *int64 `form:"minPrice" binding:"omitempty,min=0"`
	MaxPrice *int64 `form:"maxPrice" binding:"omitempty,min=0"`
	InStock  bool   `form:"inStock"`
	Sort     string `form:"sort"     binding:"omitempty,oneof=newest price_asc price_desc name"`
	Page     int    `form:"page"     binding:"omitempty,min=1,max=10000"`
	Limit    int    `form:"limit"    binding:"omitempty,min=1,max=100"`
}

// Normalize clamps paging values and falls back to the default sort.
func (q Query) Normalize() Query {
	q.Q = strings.TrimSpace(q.Q)
	if q.Limit <= 0 || q.Limit > MaxLimit {
		q.Limit = DefaultLimit
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if _, ok := sortClauses[q.Sort]; !ok {
		q.Sort = SortNewest
	}
	return q
}

func (q Query) Offset() int { return (q.Page - 1) * q.Limit }

// where builds the filter clause and its named arguments.
func (q Query) where() (string, map[string]any) {
	conds := []string{"deleted_at IS NULL"}
	args := map[string]any{}
	if q.Q != "" {
		conds = append(conds, "(name ILIKE '%' || :q || '%' OR description ILIKE '%' || :q || '%')")
		args["q"] = q.Q
	}
	if q.MinPrice != nil {
		conds = append(conds, "price >= :min_price")
		args["min_price"] = *q.MinPrice
	}
	if q.MaxPrice != nil {
		conds = append(conds, "price <= :max_price")
		args["max_price"] = *q.MaxPrice
	}
	if q.InStock {
		conds = append(conds, "stock > 0")
	}
	return strings.Join(conds, " AND "), args
}

// List returns one page of active products matching q and the total match count.
func (r *PGRepo) List(ctx context.Context, q Query) ([]Product, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	q = q.Normalize()
	where, args := q.where()

	countSQL, countArgs, err := r.bind(`SELECT COUNT(*) FROM products WHERE `+where, args)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.catalog.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, pkgerrors.Wrap(err, "count products")
	}

	args["limit"] = q.Limit
	args["offset"] = q.Offset()
	listSQL, listArgs, err := r.bind(`
		SELECT `+productColumns+`
		FROM products
		WHERE `+where+`
		ORDER BY `+sortClauses[q.Sort]+`
		LIMIT :limit OFFSET :offset`, args)
	if err != nil {
		return nil, 0, err
	}
	out := []Product{}
	if err := r.catalog.SelectContext(ctx, &out, listSQL, listArgs...); err != nil {
		return nil, 0, pkgerrors.Wrap(err, "list products")
	}
	return out, total, nil
}

func (r *PGRepo) bind(query string, args map[string]any) (string, []any, error) {
	named, bound, err := sqlx.Named(query, args)
	if err != nil {
		return "", nil, pkgerrors.Wrap(err, "bind product query")
	}
	return r.catalog.Rebind(named), bound, nil
}
