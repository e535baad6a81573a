package user

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Point        int64     `json:"point"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Patch carries a partial update; nil fields keep their stored value.
type Patch struct {
	Name         *string
	Email        *string
	PasswordHash *string
}

// Balance is one user's point balance after a mutation.
type Balance struct {
	UserID int64 `json:"userId"`
	Point  int64 `json:"point"`
}

// TransferResult holds both balances after a committed point transfer.
type TransferResult struct {
	Sender   Balance `json:"sender"`
	Receiver Balance `json:"receiver"`
}

// RegisterRequest payload of account creation.
type RegisterRequest struct {
	Name     string `json:"name"     binding:"required,max=100"`
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// UpdateRequest payload of partial update. Changing the password as a regular
// user requires the current one.
type UpdateRequest struct {
	Name            *string `json:"name"            binding:"omitempty,min=1,max=100"`
	Email           *string `json:"email"           binding:"omitempty,email"`
	Password        *string `json:"password"        binding:"omitempty,min=8,max=72"`
	CurrentPassword string  `json:"currentPassword"`
}

// TransferRequest payload of a point transfer from the caller.
type TransferRequest struct {
	ReceiverID int64 `json:"receiverId" binding:"required,gt=0"`
	Amount     int64 `json:"amount"     binding:"required,gt=0"`
}
