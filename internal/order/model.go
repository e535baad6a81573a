package order

import "time"

// PointDivisor is the spend, in currency units, that earns one loyalty point.
const PointDivisor = 1000

// MaxPage bounds order history paging so offsets stay small.
const MaxPage = 10000

type Order struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	TotalPrice int64     `json:"totalPrice"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Item is one order line. UnitPrice is the product price at validation time and
// never changes afterwards.
type Item struct {
	ID         int64 `json:"id"`
	OrderID    int64 `json:"-"`
	ProductID  int64 `json:"productId"`
	Quantity   int   `json:"quantity"`
	UnitPrice  int64 `json:"unitPrice"`
	TotalPrice int64 `json:"totalPrice"`
}

// View is an order with its lines and the points it earned.
type View struct {
	Order
	Points int64  `json:"points"`
	Items  []Item `json:"items"`
}

// PointsFor returns floor(total / PointDivisor).
func PointsFor(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return total / PointDivisor
}

// NewView assembles the response shape of a stored order.
func NewView(o Order, items []Item) *View {
	if items == nil {
		items = []Item{}
	}
	return &View{Order: o, Points: PointsFor(o.TotalPrice), Items: items}
}
