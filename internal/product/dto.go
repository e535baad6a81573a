package product

import (
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/ecom-points/internal/apperr"
)

// CreateProductRequest payload of creation.
type CreateProductRequest struct {
	Name        string           `json:"name"        binding:"required,max=200"`
	Description string           `json:"description" binding:"max=2000"`
	Price       *decimal.Decimal `json:"price"       binding:"required"`
	Stock       *int             `json:"stock"       binding:"required,min=0"`
	Image       string           `json:"image"`
}

// UpdateProductRequest payload of partial update. Omitted fields are left untouched.
type UpdateProductRequest struct {
	Name        *string          `json:"name"        binding:"omitempty,min=1,max=200"`
	Description *string          `json:"description" binding:"omitempty,max=2000"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"       binding:"omitempty,min=0"`
	Image       *string          `json:"image"`
}

// WholePrice converts a decoded price into integer currency units. Prices accept
// JSON numbers or strings ("1500", 1500, "1500.00") but must be whole and non-negative.
func WholePrice(d decimal.Decimal) (int64, error) {
	if d.IsNegative() {
		return 0, apperr.Validation("price", "must be greater than or equal to 0")
	}
	if !d.IsInteger() {
		return 0, apperr.Validation("price", "must be a whole number of currency units")
	}
	if !d.LessThanOrEqual(decimal.NewFromInt(1 << 53)) {
		return 0, apperr.Validation("price", "is too large")
	}
	return d.IntPart(), nil
}

func (r CreateProductRequest) ToProduct() (*Product, error) {
	price, err := WholePrice(*r.Price)
	if err != nil {
		return nil, err
	}
	return &Product{
		Name:        r.Name,
		Description: r.Description,
		Price:       price,
		Stock:       *r.Stock,
		Image:       r.Image,
	}, nil
}

func (r UpdateProductRequest) ToPatch() (Patch, error) {
	p := Patch{
		Name:        r.Name,
		Description: r.Description,
		Stock:       r.Stock,
		Image:       r.Image,
	}
	if r.Price != nil {
		price, err := WholePrice(*r.Price)
		if err != nil {
			return Patch{}, err
		}
		p.Price = &price
	}
	return p, nil
}
