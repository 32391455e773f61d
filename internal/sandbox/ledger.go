package sandbox

import (
	"errors"
	"sync"
	"time"

	"github.com/IlyasAtabaev731/nickpay/internal/domain/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUserExists          = errors.New("nickname already taken")
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrSelfTransfer        = errors.New("cannot send money to yourself")
	ErrInvalidAmount       = errors.New("value must be greater than zero")
	ErrTransactionNotFound = errors.New("transaction not found")
)

type account struct {
	user         models.User
	document     string
	passwordHash []byte
	balance      decimal.Decimal
}

type entry struct {
	id          models.ID
	from        *account
	to          *account
	value       decimal.Decimal
	description string
	createdAt   time.Time
}

// Ledger is the sandbox's in-memory account book.
type Ledger struct {
	mu              sync.RWMutex
	accounts        map[string]*account
	entries         []*entry
	startingBalance decimal.Decimal
	now             func() time.Time
}

func NewLedger(startingBalance decimal.Decimal) *Ledger {
	return &Ledger{
		accounts:        make(map[string]*account),
		startingBalance: startingBalance,
		now:             time.Now,
	}
}

func (l *Ledger) Register(name, document, nickname string, passwordHash []byte) (models.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[nickname]; ok {
		return models.User{}, ErrUserExists
	}

	acc := &account{
		user:         models.User{ID: models.ID(uuid.NewString()), Name: name, Nickname: nickname},
		document:     document,
		passwordHash: passwordHash,
		balance:      l.startingBalance,
	}
	l.accounts[nickname] = acc

	return acc.user, nil
}

// credentials returns the profile and password hash for nickname.
func (l *Ledger) credentials(nickname string) (models.User, []byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.accounts[nickname]
	if !ok {
		return models.User{}, nil, ErrUserNotFound
	}
	return acc.user, acc.passwordHash, nil
}

func (l *Ledger) Balance(nickname string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.accounts[nickname]
	if !ok {
		return decimal.Zero, ErrUserNotFound
	}
	return acc.balance, nil
}

// Transfer moves value between two accounts and returns the sender's view.
func (l *Ledger) Transfer(from, to string, value decimal.Decimal, description string) (models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !value.IsPositive() {
		return models.Transaction{}, ErrInvalidAmount
	}
	if from == to {
		return models.Transaction{}, ErrSelfTransfer
	}
	sender, ok := l.accounts[from]
	if !ok {
		return models.Transaction{}, ErrUserNotFound
	}
	receiver, ok := l.accounts[to]
	if !ok {
		return models.Transaction{}, ErrUserNotFound
	}
	if sender.balance.LessThan(value) {
		return models.Transaction{}, ErrInsufficientFunds
	}

	sender.balance = sender.balance.Sub(value)
	receiver.balance = receiver.balance.Add(value)

	e := &entry{
		id:          models.ID(uuid.NewString()),
		from:        sender,
		to:          receiver,
		value:       value,
		description: description,
		createdAt:   l.now().UTC(),
	}
	l.entries = append(l.entries, e)

	return e.view(from), nil
}

// History returns one page of nickname's transactions, newest first.
func (l *Ledger) History(nickname string, page, limit int) ([]models.Transaction, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.accounts[nickname]; !ok {
		return nil, false, ErrUserNotFound
	}

	// Entries are kept in insertion order, so walking backwards is newest first.
	var own []*entry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].involves(nickname) {
			own = append(own, l.entries[i])
		}
	}

	start := (page - 1) * limit
	if start >= len(own) {
		return []models.Transaction{}, false, nil
	}
	end := start + limit
	if end > len(own) {
		end = len(own)
	}

	out := make([]models.Transaction, 0, end-start)
	for _, e := range own[start:end] {
		out = append(out, e.view(nickname))
	}

	return out, end < len(own), nil
}

func (l *Ledger) Transaction(nickname string, id models.ID) (models.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		if e.id == id && e.involves(nickname) {
			return e.view(nickname), nil
		}
	}
	return models.Transaction{}, ErrTransactionNotFound
}

func (e *entry) involves(nickname string) bool {
	return e.from.user.Nickname == nickname || e.to.user.Nickname == nickname
}

func (e *entry) view(nickname string) models.Transaction {
	tx := models.Transaction{
		ID:          e.id,
		Value:       e.value,
		Description: e.description,
		CreatedAt:   models.Timestamp{Time: e.createdAt},
		Type:        models.Outcome,
		FromUser:    &models.UserRef{ID: e.from.user.ID, Nickname: e.from.user.Nickname},
		ToUser:      &models.UserRef{ID: e.to.user.ID, Nickname: e.to.user.Nickname},
	}
	if e.to.user.Nickname == nickname {
		tx.Type = models.Income
	}
	return tx
}
