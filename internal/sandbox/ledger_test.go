package sandbox

import (
	"testing"
	"time"

	"github.com/IlyasAtabaev731/nickpay/internal/domain/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T, nicknames ...string) *Ledger {
	t.Helper()

	l := NewLedger(decimal.NewFromInt(100))
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	for _, nick := range nicknames {
		_, err := l.Register(nick, "000", nick, []byte("hash"))
		require.NoError(t, err)
	}
	return l
}

func TestLedgerRegisterDuplicate(t *testing.T) {
	l := newTestLedger(t, "maria")

	_, err := l.Register("Other", "111", "maria", nil)
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLedgerTransfer(t *testing.T) {
	l := newTestLedger(t, "maria", "joao")

	tx, err := l.Transfer("maria", "joao", decimal.RequireFromString("12.5"), "lunch")
	require.NoError(t, err)
	assert.Equal(t, models.Outcome, tx.Type)
	assert.Equal(t, "joao", tx.ToUser.Nickname)
	assert.Equal(t, "maria", tx.FromUser.Nickname)

	balance, err := l.Balance("maria")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("87.5")))

	balance, err = l.Balance("joao")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("112.5")))

	incoming, err := l.Transaction("joao", tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Income, incoming.Type)
}

func TestLedgerTransferErrors(t *testing.T) {
	l := newTestLedger(t, "maria", "joao")

	tests := []struct {
		name  string
		from  string
		to    string
		value string
		want  error
	}{
		{"zero value", "maria", "joao", "0", ErrInvalidAmount},
		{"negative value", "maria", "joao", "-1", ErrInvalidAmount},
		{"self transfer", "maria", "maria", "1", ErrSelfTransfer},
		{"unknown receiver", "maria", "ghost", "1", ErrUserNotFound},
		{"unknown sender", "ghost", "maria", "1", ErrUserNotFound},
		{"over balance", "maria", "joao", "100.01", ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Transfer(tt.from, tt.to, decimal.RequireFromString(tt.value), "")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	balance, err := l.Balance("maria")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(100)), "failed transfers must not move money")
}

func TestLedgerHistoryPaging(t *testing.T) {
	l := newTestLedger(t, "maria", "joao", "ana")

	for i := 1; i <= 5; i++ {
		_, err := l.Transfer("maria", "joao", decimal.NewFromInt(int64(i)), "")
		require.NoError(t, err)
	}
	_, err := l.Transfer("joao", "ana", decimal.NewFromInt(1), "")
	require.NoError(t, err)

	first, hasMore, err := l.History("maria", 1, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, hasMore)
	assert.True(t, first[0].Value.Equal(decimal.NewFromInt(5)), "newest first")
	assert.True(t, first[0].CreatedAt.After(first[1].CreatedAt.Time))

	last, hasMore, err := l.History("maria", 3, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.False(t, hasMore)

	beyond, hasMore, err := l.History("maria", 4, 2)
	require.NoError(t, err)
	assert.Empty(t, beyond)
	assert.NotNil(t, beyond)
	assert.False(t, hasMore)

	ana, _, err := l.History("ana", 1, 10)
	require.NoError(t, err)
	require.Len(t, ana, 1)
	assert.Equal(t, models.Income, ana[0].Type)

	_, _, err = l.History("ghost", 1, 10)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLedgerTransactionVisibility(t *testing.T) {
	l := newTestLedger(t, "maria", "joao", "ana")

	tx, err := l.Transfer("maria", "joao", decimal.NewFromInt(1), "")
	require.NoError(t, err)

	_, err = l.Transaction("ana", tx.ID)
	assert.ErrorIs(t, err, ErrTransactionNotFound, "outsiders cannot read other people's transactions")
}
