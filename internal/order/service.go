package order

import (
	"context"
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/MikeMC777/ecom-points/internal/apperr"
	"github.com/MikeMC777/ecom-points/internal/product"
)

type ProductFinder interface {
	FindActiveByIDs(ctx context.Context, ids []int64) ([]product.Product, error)
}

type Service struct {
	products ProductFinder
	store    Store
}

func NewService(products ProductFinder, store Store) *Service {
	return &Service{products: products, store: store}
}

// PlaceOrder validates lines against the current products, then writes the
// order, its items, the stock decrements and the buyer's point credit in one
// transaction. Prices and stock are read once, before the transaction; each
// decrement is conditional so stock consumed in between surfaces as a
// ConflictError instead of an oversell.
func (s *Service) PlaceOrder(ctx context.Context, userID int64, lines []LineItem) (*View, error) {
	if err := validateLines(userID, lines); err != nil {
		return nil, err
	}

	byID, err := s.resolveProducts(ctx, lines)
	if err != nil {
		return nil, err
	}
	if err := checkStock(lines, byID); err != nil {
		return nil, err
	}
	if err := checkTotals(lines, byID); err != nil {
		return nil, err
	}

	var view *View
	err = s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.CreateOrder(ctx, userID)
		if err != nil {
			return err
		}

		items := make([]Item, 0, len(lines))
		var total int64
		for _, l := range lines {
			p := byID[l.ProductID]
			ok, err := tx.DecrementStock(ctx, p.ID, l.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Conflict("stock for product %q (id %d) changed while placing the order", p.Name, p.ID)
			}
			it := Item{
				OrderID:    o.ID,
				ProductID:  p.ID,
				Quantity:   l.Quantity,
				UnitPrice:  p.Price,
				TotalPrice: p.Price * int64(l.Quantity),
			}
			if err := tx.CreateItem(ctx, &it); err != nil {
				return err
			}
			items = append(items, it)
			total += it.TotalPrice
		}

		if err := tx.SetTotal(ctx, o.ID, total); err != nil {
			return err
		}
		o.TotalPrice = total

		points := PointsFor(total)
		if _, err := tx.CreditPoints(ctx, userID, points); err != nil {
			return err
		}
		view = &View{Order: *o, Points: points, Items: items}
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("order placement aborted")
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"order_id": view.ID,
		"total":    view.TotalPrice,
		"points":   view.Points,
	}).Info("order placed")
	return view, nil
}

func validateLines(userID int64, lines []LineItem) error {
	var issues []apperr.Issue
	if userID <= 0 {
		issues = append(issues, apperr.Issue{Path: "userId", Msg: "must be a positive integer"})
	}
	if len(lines) == 0 {
		issues = append(issues, apperr.Issue{Path: "items", Msg: "must contain at least one item"})
	}
	for i, l := range lines {
		if l.ProductID <= 0 {
			issues = append(issues, apperr.Issue{Path: fmt.Sprintf("items[%d].productId", i), Msg: "must be a positive integer"})
		}
		if l.Quantity <= 0 {
			issues = append(issues, apperr.Issue{Path: fmt.Sprintf("items[%d].quantity", i), Msg: "must be a positive integer"})
		}
	}
	if len(issues) > 0 {
		return &apperr.ValidationError{Issues: issues}
	}
	return nil
}

// resolveProducts loads every distinct product of lines. A single missing or
// deleted product rejects the whole order.
func (s *Service) resolveProducts(ctx context.Context, lines []LineItem) (map[int64]product.Product, error) {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}

	found, err := s.products.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]product.Product, len(found))
	for _, p := range found {
		if _, ok := seen[p.ID]; ok {
			byID[p.ID] = p
		}
	}
	if len(byID) < len(ids) {
		return nil, apperr.NotFound("one or more products not found")
	}
	return byID, nil
}

// checkStock walks lines in input order. Repeated products are checked against
// their cumulative quantity.
func checkStock(lines []LineItem, byID map[int64]product.Product) error {
	requested := make(map[int64]int, len(byID))
	for _, l := range lines {
		p := byID[l.ProductID]
		requested[p.ID] += l.Quantity
		if requested[p.ID] > p.Stock {
			return &apperr.InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: requested[p.ID],
				Available: p.Stock,
			}
		}
	}
	return nil
}

// checkTotals rejects orders whose line or order total does not fit in int64.
func checkTotals(lines []LineItem, byID map[int64]product.Product) error {
	var total int64
	for i, l := range lines {
		p := byID[l.ProductID]
		if p.Price > math.MaxInt64/int64(l.Quantity) {
			return apperr.Validation(fmt.Sprintf("items[%d].quantity", i), "line total is too large")
		}
		line := p.Price * int64(l.Quantity)
		if total > math.MaxInt64-line {
			return apperr.Validation("items", "order total is too large")
		}
		total += line
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*View, error) {
	o, items, err := s.store.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("order %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return NewView(*o, items), nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64, page, limit int) (*ListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	orders, total, err := s.store.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []Order{}
	}
	return &ListResponse{Page: page, Limit: limit, Total: total, Items: orders}, nil
}
