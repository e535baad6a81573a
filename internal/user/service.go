package user

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/MikeMC777/ecom-points/internal/apperr"
)

type Service struct {
	repo   Repository
	ledger PointLedger
}

func NewService(repo Repository, ledger PointLedger) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// Register creates a regular account with a zero point balance.
func (s *Service) Register(ctx context.Context, in RegisterRequest) (*User, error) {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Role:         RoleUser,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrAlreadyExist) {
			return nil, apperr.Validation("email", "is already registered")
		}
		return nil, err
	}
	log.WithFields(log.Fields{"user_id": u.ID}).Info("user registered")
	return u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("user %d not found", id)
	}
	return u, err
}

// Update applies a partial update. asAdmin skips the current password check.
func (s *Service) Update(ctx context.Context, id int64, in UpdateRequest, asAdmin bool) (*User, error) {
	var patch Patch
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		patch.Name = &name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		patch.Email = &email
	}
	if in.Password != nil {
		if !asAdmin {
			cur, err := s.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if !CheckPassword(cur.PasswordHash, in.CurrentPassword) {
				return nil, apperr.Validation("currentPassword", "does not match")
			}
		}
		hash, err := HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}

	u, err := s.repo.Update(ctx, id, patch)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, apperr.NotFound("user %d not found", id)
	case errors.Is(err, ErrAlreadyExist):
		return nil, apperr.Validation("email", "is already registered")
	}
	return u, err
}

// Delete removes an account. Accounts with order history are kept.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ok, err := s.repo.Delete(ctx, id)
	if errors.Is(err, ErrHasOrders) {
		return apperr.Conflict("user %d has orders and cannot be deleted", id)
	}
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("user %d not found", id)
	}
	return nil
}

func (s *Service) Balance(ctx context.Context, id int64) (Balance, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{UserID: u.ID, Point: u.Point}, nil
}

// TransferPoint debits sender and credits receiver by amount in one transaction.
// Both rows are locked before the balance check so concurrent transfers out of
// the same account cannot overdraw it.
func (s *Service) TransferPoint(ctx context.Context, senderID, receiverID, amount int64) (*TransferResult, error) {
	var issues []apperr.Issue
	if amount <= 0 {
		issues = append(issues, apperr.Issue{Path: "amount", Msg: "must be a positive integer"})
	}
	if receiverID <= 0 {
		issues = append(issues, apperr.Issue{Path: "receiverId", Msg: "must be a positive integer"})
	}
	if senderID == receiverID {
		issues = append(issues, apperr.Issue{Path: "receiverId", Msg: "cannot transfer points to yourself"})
	}
	if len(issues) > 0 {
		return nil, &apperr.ValidationError{Issues: issues}
	}

	var res TransferResult
	err := s.ledger.InTx(ctx, func(tx PointTx) error {
		balances, err := tx.LockBalances(ctx, senderID, receiverID)
		if err != nil {
			return err
		}
		have, ok := balances[senderID]
		if !ok {
			return apperr.NotFound("user %d not found", senderID)
		}
		if _, ok := balances[receiverID]; !ok {
			return apperr.NotFound("user %d not found", receiverID)
		}
		if have < amount {
			return &apperr.InsufficientPointsError{UserID: senderID, Balance: have, Requested: amount}
		}

		sp, err := tx.AddPoints(ctx, senderID, -amount)
		if err != nil {
			return err
		}
		rp, err := tx.AddPoints(ctx, receiverID, amount)
		if err != nil {
			return err
		}
		res = TransferResult{
			Sender:   Balance{UserID: senderID, Point: sp},
			Receiver: Balance{UserID: receiverID, Point: rp},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"sender_id":   senderID,
		"receiver_id": receiverID,
		"amount":      amount,
	}).Info("points transferred")
	return &res, nil
}
