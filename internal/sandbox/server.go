// Package sandbox is an in-memory stand-in for the remote payments API, used
// for local development and integration tests. It speaks the same request and
// response shapes as the real service.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IlyasAtabaev731/nickpay/internal/config"
	"github.com/IlyasAtabaev731/nickpay/internal/domain/models"
	"github.com/IlyasAtabaev731/nickpay/internal/lib/jwt"
	"github.com/IlyasAtabaev731/nickpay/internal/lib/logger/sl"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTTL     = 24 * time.Hour
	defaultLimit = 10
	maxLimit     = 100
)

type contextKey string

const nicknameKey contextKey = "nickname"

type APIServer struct {
	config    config.Sandbox
	logger    *slog.Logger
	ledger    *Ledger
	server    *http.Server
	jwtSecret []byte
}

func New(cfg config.Sandbox, logger *slog.Logger, ledger *Ledger) *APIServer {
	s := &APIServer{
		config: cfg,
		logger: logger,
		ledger: ledger,
		server: &http.Server{
			Addr:              cfg.Host + ":" + strconv.Itoa(cfg.Port),
			ReadHeaderTimeout: 5 * time.Second,
		},
		jwtSecret: []byte(cfg.JWTSecret),
	}
	s.configureRouter()
	return s
}

func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) Start() error {
	s.logger.Info("Starting sandbox API", slog.String("addr", s.server.Addr))

	return s.server.ListenAndServe()
}

func (s *APIServer) MustStart() {
	err := s.Start()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic("Failed to start server: " + err.Error())
	}
}

func (s *APIServer) Stop(ctx context.Context) error {
	defer s.logger.Info("Server successfully stopped")
	return s.server.Shutdown(ctx)
}

func (s *APIServer) configureRouter() {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", s.loginHandler()).Methods("POST")
	api.HandleFunc("/users", s.registerHandler()).Methods("POST")
	api.HandleFunc("/balance", s.authenticate(s.balanceHandler())).Methods("GET")
	api.HandleFunc("/transactions", s.authenticate(s.listTransactionsHandler())).Methods("GET")
	api.HandleFunc("/transactions", s.authenticate(s.sendMoneyHandler())).Methods("POST")
	api.HandleFunc("/transactions/{id}", s.authenticate(s.transactionHandler())).Methods("GET")
	s.server.Handler = router
}

type LoginRequest struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (s *APIServer) loginHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		user, hash, err := s.ledger.credentials(req.Nickname)
		if err != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword(hash, []byte(req.Password)); err != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		token, err := jwt.NewToken(user, string(s.jwtSecret), tokenTTL)
		if err != nil {
			s.logger.Error("Failed to issue token", sl.Err(err))
			http.Error(w, "failed to issue token", http.StatusInternalServerError)
			return
		}

		s.logger.Info("User logged in", slog.String("nickname", user.Nickname))
		writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
	}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

func (s *APIServer) registerHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Name == "" || req.Document == "" || req.Nickname == "" || req.Password == "" {
			http.Error(w, "name, document, nickname and password are required", http.StatusBadRequest)
			return
		}

		user, err := s.RegisterUser(req.Name, req.Document, req.Nickname, req.Password)
		if errors.Is(err, ErrUserExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, "registration failed", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, user)
	}
}

// RegisterUser creates an account directly, for seeding.
func (s *APIServer) RegisterUser(name, document, nickname, password string) (models.User, error) {
	s.logger.Info("Register new user", slog.String("nickname", nickname))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Failed to hash password", sl.Err(err))
		return models.User{}, err
	}

	user, err := s.ledger.Register(name, document, nickname, hash)
	if err != nil {
		s.logger.Error("Failed to save user", sl.Err(err))
		return models.User{}, err
	}

	return user, nil
}

func (s *APIServer) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenHeader := r.Header.Get("Authorization")
		if tokenHeader == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(tokenHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "invalid token format", http.StatusUnauthorized)
			return
		}

		claims, err := jwt.ParseToken(parts[1], string(s.jwtSecret))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		nickname, ok := claims["nickname"].(string)
		if !ok || nickname == "" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		r = r.WithContext(context.WithValue(r.Context(), nicknameKey, nickname))
		next(w, r)
	}
}

type BalanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

func (s *APIServer) balanceHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		balance, err := s.ledger.Balance(nicknameFrom(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
	}
}

type TransactionsResponse struct {
	Transactions []models.Transaction `json:"transactions"`
	HasMore      bool                 `json:"hasMore"`
}

func (s *APIServer) listTransactionsHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", defaultLimit)
		if page < 1 {
			page = 1
		}
		if limit < 1 || limit > maxLimit {
			limit = defaultLimit
		}

		txs, hasMore, err := s.ledger.History(nicknameFrom(r), page, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, TransactionsResponse{Transactions: txs, HasMore: hasMore})
	}
}

func (s *APIServer) transactionHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id := models.ID(mux.Vars(r)["id"])

		tx, err := s.ledger.Transaction(nicknameFrom(r), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, tx)
	}
}

type SendMoneyRequest struct {
	To          string          `json:"to"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
}

func (s *APIServer) sendMoneyHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SendMoneyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		from := nicknameFrom(r)
		tx, err := s.ledger.Transfer(from, req.To, req.Value, req.Description)
		switch {
		case errors.Is(err, ErrUserNotFound):
			http.Error(w, "receiver not found", http.StatusNotFound)
			return
		case errors.Is(err, ErrInsufficientFunds):
			http.Error(w, err.Error(), http.StatusPaymentRequired)
			return
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSelfTransfer):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			http.Error(w, "transfer failed", http.StatusInternalServerError)
			return
		}

		s.logger.Info("Send money", slog.String("amount", req.Value.String()), slog.String("from", from), slog.String("to", req.To))

		writeJSON(w, http.StatusCreated, tx)
	}
}

func nicknameFrom(r *http.Request) string {
	nickname, _ := r.Context().Value(nicknameKey).(string)
	return nickname
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
