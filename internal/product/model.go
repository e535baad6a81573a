package product

import "time"

type Product struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description,omitempty" db:"description"`
	// Price is expressed in whole currency units.
	Price     int64      `json:"price" db:"price"`
	Stock     int        `json:"stock" db:"stock"`
	Image     string     `json:"image,omitempty" db:"image"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// Patch carries a partial update; nil fields keep their stored value.
type Patch struct {
	Name        *string
	Description *string
	Price       *int64
	Stock       *int
	Image       *string
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil && p.Stock == nil && p.Image == nil
}

// ListResponse represents the paginated response of products.
type ListResponse struct {
	Q     string    `json:"q,omitempty"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
	Total int       `json:"total"`
	Items []Product `json:"items"`
}
