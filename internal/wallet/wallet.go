package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/IlyasAtabaev731/nickpay/internal/api"
	"github.com/IlyasAtabaev731/nickpay/internal/domain/apperr"
	"github.com/IlyasAtabaev731/nickpay/internal/domain/models"
	"github.com/IlyasAtabaev731/nickpay/internal/lib/logger/sl"
	"github.com/shopspring/decimal"
)

type Client interface {
	GetBalance(ctx context.Context, creds api.Credentials) (decimal.Decimal, error)
	GetTransaction(ctx context.Context, creds api.Credentials, id models.ID) (*models.Transaction, error)
	SendMoney(ctx context.Context, creds api.Credentials, to string, value decimal.Decimal, description string) (*models.Transaction, error)
}

type CredentialsProvider interface {
	Credentials() api.Credentials
}

// Service tracks the balance and performs transfers for the signed-in user.
type Service struct {
	client Client
	creds  CredentialsProvider
	logger *slog.Logger

	mu      sync.RWMutex
	balance decimal.Decimal
	known   bool
}

func New(client Client, creds CredentialsProvider, logger *slog.Logger) *Service {
	return &Service{
		client: client,
		creds:  creds,
		logger: logger,
	}
}

// RefreshBalance fetches the balance. On failure the last known value is kept.
func (s *Service) RefreshBalance(ctx context.Context) {
	const op = "wallet.RefreshBalance"

	balance, err := s.client.GetBalance(ctx, s.creds.Credentials())
	if err != nil {
		s.logger.Error("failed to load balance", slog.String("op", op), sl.Err(err))
		return
	}

	s.mu.Lock()
	s.balance = balance
	s.known = true
	s.mu.Unlock()
}

// Balance returns the last fetched balance and whether one was ever fetched.
func (s *Service) Balance() (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance, s.known
}

// Reset forgets the cached balance, e.g. after sign-out.
func (s *Service) Reset() {
	s.mu.Lock()
	s.balance = decimal.Zero
	s.known = false
	s.mu.Unlock()
}

// SendMoney validates the input locally and posts the transfer. The amount
// accepts either ',' or '.' as decimal separator.
func (s *Service) SendMoney(ctx context.Context, to, amount, description string) (*models.Transaction, error) {
	const op = "wallet.SendMoney"

	to = strings.TrimSpace(to)
	if to == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("to", "receiver nickname is required"))
	}

	value, err := ParseAmount(amount)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, known := s.Balance(); !known {
		s.RefreshBalance(ctx)
	}
	if balance, known := s.Balance(); known && value.GreaterThan(balance) {
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("amount", "insufficient balance"))
	}

	log := s.logger.With(slog.String("op", op), slog.String("to", to), slog.String("value", value.String()))

	tx, err := s.client.SendMoney(ctx, s.creds.Credentials(), to, value, strings.TrimSpace(description))
	if err != nil {
		log.Error("transfer failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("transfer sent", slog.String("transaction_id", string(tx.ID)))

	return tx, nil
}

func (s *Service) Transaction(ctx context.Context, id models.ID) (*models.Transaction, error) {
	const op = "wallet.Transaction"

	if strings.TrimSpace(string(id)) == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.Validation("id", "transaction id is required"))
	}

	tx, err := s.client.GetTransaction(ctx, s.creds.Credentials(), id)
	if err != nil {
		s.logger.Error("failed to load transaction", slog.String("op", op), slog.String("id", string(id)), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tx, nil
}

// ParseAmount parses a user-typed amount such as "10", "10,50" or "10.5".
// Only digits and a single decimal separator are accepted, and the value must
// be positive.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, apperr.Validation("amount", "is required")
	}

	separators := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == ',' || r == '.':
			separators++
		default:
			return decimal.Zero, apperr.Validation("amount", "must be a number")
		}
	}
	if separators > 1 {
		return decimal.Zero, apperr.Validation("amount", "must have at most one decimal separator")
	}

	value, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return decimal.Zero, apperr.Validation("amount", "must be a number")
	}
	if !value.IsPositive() {
		return decimal.Zero, apperr.Validation("amount", "must be greater than zero")
	}

	return value, nil
}

// ShareMessage is the text a user sends to others so they can receive money.
func ShareMessage(user models.User) string {
	return fmt.Sprintf("Hi! My nickpay nickname is %s. You can send me money using this nickname.", user.Nickname)
}
