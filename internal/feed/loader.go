// Package feed loads the paginated transaction history.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/IlyasAtabaev731/nickpay/internal/api"
	"github.com/IlyasAtabaev731/nickpay/internal/domain/apperr"
	"github.com/IlyasAtabaev731/nickpay/internal/domain/models"
	"github.com/IlyasAtabaev731/nickpay/internal/lib/logger/sl"
)

const DefaultPageSize = 10

type Fetcher interface {
	GetTransactions(ctx context.Context, creds api.Credentials, page, limit int) (*models.TransactionPage, error)
}

type CredentialsProvider interface {
	Credentials() api.Credentials
}

// BalanceRefresher re-fetches the balance alongside a feed refresh.
type BalanceRefresher interface {
	RefreshBalance(ctx context.Context)
}

// State is a snapshot of the loaded feed.
type State struct {
	Items       []models.Transaction
	CurrentPage int
	HasMore     bool
	Loading     bool
}

type Option func(*Loader)

func WithPageSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

func WithBalance(b BalanceRefresher) Option {
	return func(l *Loader) {
		l.balance = b
	}
}

// Loader keeps the feed in server order and appends pages as they arrive.
//
// Every load takes a new generation number and its result is applied only if
// no later load started meanwhile, so a refresh issued while a load-more is in
// flight can never be overwritten by the older response.
type Loader struct {
	fetcher  Fetcher
	creds    CredentialsProvider
	balance  BalanceRefresher
	logger   *slog.Logger
	pageSize int

	mu          sync.Mutex
	items       []models.Transaction
	currentPage int
	hasMore     bool
	loading     bool
	generation  uint64
}

func New(fetcher Fetcher, creds CredentialsProvider, logger *slog.Logger, opts ...Option) *Loader {
	l := &Loader{
		fetcher:  fetcher,
		creds:    creds,
		logger:   logger,
		pageSize: DefaultPageSize,
		hasMore:  true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadPage requests one page. Without refresh it is a no-op (returns false)
// while another load is in flight or when the feed is exhausted. A refresh
// replaces the items; otherwise the page is appended after them.
//
// Failures are logged, not returned: a failed refresh empties the feed, a
// failed load-more keeps what is already loaded.
func (l *Loader) LoadPage(ctx context.Context, page int, refresh bool) bool {
	const op = "feed.LoadPage"

	l.mu.Lock()
	if !refresh && (l.loading || !l.hasMore) {
		l.mu.Unlock()
		return false
	}
	l.generation++
	gen := l.generation
	l.loading = true
	l.mu.Unlock()

	log := l.logger.With(
		slog.String("op", op),
		slog.Int("page", page),
		slog.Bool("refresh", refresh),
	)
	log.Debug("loading transactions")

	res, err := l.fetcher.GetTransactions(ctx, l.creds.Credentials(), page, l.pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.generation {
		log.Debug("discarding stale page", slog.Uint64("generation", gen), slog.Uint64("current", l.generation))
		return true
	}
	l.loading = false

	if err != nil {
		if errors.Is(err, apperr.ErrMalformedResponse) {
			log.Warn("invalid transactions response", sl.Err(err))
		} else {
			log.Error("failed to load transactions", sl.Err(err))
		}
		if refresh {
			l.items = nil
			l.currentPage = 0
			l.hasMore = true
		}
		return true
	}

	if refresh {
		l.items = append([]models.Transaction(nil), res.Transactions...)
	} else {
		l.items = append(l.items, res.Transactions...)
	}
	l.hasMore = res.HasMore
	l.currentPage = page

	log.Debug("transactions loaded", slog.Int("count", len(res.Transactions)), slog.Bool("has_more", res.HasMore))

	return true
}

// LoadMore requests the page after the current one.
func (l *Loader) LoadMore(ctx context.Context) bool {
	l.mu.Lock()
	if l.loading || !l.hasMore {
		l.mu.Unlock()
		return false
	}
	next := l.currentPage + 1
	l.mu.Unlock()

	return l.LoadPage(ctx, next, false)
}

// Refresh reloads the first page and, independently, the balance.
func (l *Loader) Refresh(ctx context.Context) {
	var wg sync.WaitGroup
	if l.balance != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.balance.RefreshBalance(ctx)
		}()
	}

	l.LoadPage(ctx, 1, true)
	wg.Wait()
}

func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	return State{
		Items:       append([]models.Transaction(nil), l.items...),
		CurrentPage: l.currentPage,
		HasMore:     l.hasMore,
		Loading:     l.loading,
	}
}
