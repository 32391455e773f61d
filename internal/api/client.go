package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/IlyasAtabaev731/nickpay/internal/config"
	"github.com/IlyasAtabaev731/nickpay/internal/domain/apperr"
	"github.com/IlyasAtabaev731/nickpay/internal/domain/models"
	"github.com/shopspring/decimal"
)

const maxErrorBody = 64 << 10

// Credentials is the bearer token attached to a single request.
// The zero value sends no Authorization header.
type Credentials struct {
	Token string
}

func Bearer(token string) Credentials {
	return Credentials{Token: token}
}

// Header returns the Authorization header value, or "" when there is no token.
func (c Credentials) Header() string {
	if c.Token == "" {
		return ""
	}
	return "Bearer " + c.Token
}

// Client talks to the remote payments API. It holds no session state; every
// authenticated call takes its credentials explicitly.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	headers http.Header
}

func New(cfg config.API, logger *slog.Logger) *Client {
	return NewWithHTTPClient(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout}, logger)
}

func NewWithHTTPClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
		headers: headers,
	}
}

type LoginRequest struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// LoginResult is the login payload after normalising the token location.
// Token is empty and User nil when the server did not send them.
type LoginResult struct {
	Token string
	User  *models.User
}

type loginPayload struct {
	Token       json.RawMessage `json:"token"`
	AccessToken json.RawMessage `json:"accessToken"`
	Access      *struct {
		Token json.RawMessage `json:"token"`
	} `json:"access"`
	User *models.User `json:"user"`
}

func (c *Client) Login(ctx context.Context, nickname, password string) (*LoginResult, error) {
	var payload loginPayload
	err := c.do(ctx, http.MethodPost, "/auth/login", Credentials{}, LoginRequest{Nickname: nickname, Password: password}, &payload)
	if err != nil {
		return nil, err
	}

	res := &LoginResult{User: payload.User}
	candidates := []json.RawMessage{payload.Token, payload.AccessToken}
	if payload.Access != nil {
		candidates = append(candidates, payload.Access.Token)
	}
	for _, raw := range candidates {
		if token, ok := stringValue(raw); ok && token != "" {
			res.Token = token
			break
		}
	}

	return res, nil
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// Register creates an account. The response body is ignored.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/users", Credentials{}, req, nil)
}

type transactionsPayload struct {
	Transactions *[]models.Transaction `json:"transactions"`
	HasMore      bool                  `json:"hasMore"`
}

// GetTransactions fetches one feed page. A 2xx body without a transactions
// field yields apperr.ErrMalformedResponse.
func (c *Client) GetTransactions(ctx context.Context, creds Credentials, page, limit int) (*models.TransactionPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var payload transactionsPayload
	if err := c.do(ctx, http.MethodGet, "/transactions?"+q.Encode(), creds, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Transactions == nil {
		return nil, fmt.Errorf("GET /transactions: %w", apperr.ErrMalformedResponse)
	}

	return &models.TransactionPage{Transactions: *payload.Transactions, HasMore: payload.HasMore}, nil
}

func (c *Client) GetTransaction(ctx context.Context, creds Credentials, id models.ID) (*models.Transaction, error) {
	var tx models.Transaction
	if err := c.do(ctx, http.MethodGet, "/transactions/"+url.PathEscape(string(id)), creds, nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

type SendMoneyRequest struct {
	To          string      `json:"to"`
	Value       json.Number `json:"value"`
	Description string      `json:"description"`
}

func (c *Client) SendMoney(ctx context.Context, creds Credentials, to string, value decimal.Decimal, description string) (*models.Transaction, error) {
	req := SendMoneyRequest{To: to, Value: json.Number(value.String()), Description: description}

	var tx models.Transaction
	if err := c.do(ctx, http.MethodPost, "/transactions", creds, req, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

type balancePayload struct {
	Balance *decimal.Decimal `json:"balance"`
}

func (c *Client) GetBalance(ctx context.Context, creds Credentials) (decimal.Decimal, error) {
	var payload balancePayload
	if err := c.do(ctx, http.MethodGet, "/balance", creds, nil, &payload); err != nil {
		return decimal.Zero, err
	}
	if payload.Balance == nil {
		return decimal.Zero, fmt.Errorf("GET /balance: %w", apperr.ErrMalformedResponse)
	}
	return *payload.Balance, nil
}

func (c *Client) do(ctx context.Context, method, path string, creds Credentials, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	if auth := creds.Header(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", slog.String("method", method), slog.String("path", path), slog.String("error", err.Error()))
		return &apperr.TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request done", slog.String("method", method), slog.String("path", path), slog.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &apperr.TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s %s: empty body: %w", method, path, apperr.ErrMalformedResponse)
		}
		return fmt.Errorf("%s %s: %v: %w", method, path, err, apperr.ErrMalformedResponse)
	}

	return nil
}

// errorMessage pulls a human readable message out of an error body: a JSON
// error/message field, or the trimmed text.
func errorMessage(raw []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

func stringValue(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
