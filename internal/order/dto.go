package order

// LineItem is one (productId, quantity) pair of an order request.
type LineItem struct {
	ProductID int64 `json:"productId" binding:"required,gt=0"`
	Quantity  int   `json:"quantity"  binding:"required,gt=0"`
}

// PlaceOrderRequest payload of order creation. The buyer is the authenticated user.
type PlaceOrderRequest struct {
	Items []LineItem `json:"items" binding:"required,min=1,dive"`
}

// ListResponse represents one page of a user's orders.
type ListResponse struct {
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
	Total int     `json:"total"`
	Items []Order `json:"items"`
}
