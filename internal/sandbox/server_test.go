package sandbox

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/IlyasAtabaev731/nickpay/internal/config"
	"github.com/IlyasAtabaev731/nickpay/internal/lib/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*APIServer, *httptest.Server) {
	t.Helper()

	cfg := config.Sandbox{Host: "localhost", Port: 0, JWTSecret: "test-secret"}
	s := New(cfg, logger.Discard(), NewLedger(decimal.NewFromInt(1000)))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return s, ts
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func login(t *testing.T, ts *httptest.Server, nickname, password string) string {
	t.Helper()

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", LoginRequest{Nickname: nickname, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	assert.Equal(t, nickname, out.User.Nickname)

	return out.Token
}

func TestRegisterAndLogin(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/users", "", RegisterRequest{
		Name: "Maria", Document: "123", Nickname: "maria", Password: "abc",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/users", "", RegisterRequest{
		Name: "Maria", Document: "123", Nickname: "maria", Password: "abc",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/users", "", RegisterRequest{Nickname: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	login(t, ts, "maria", "abc")

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", LoginRequest{Nickname: "maria", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", LoginRequest{Nickname: "ghost", Password: "abc"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticate(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/balance", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/balance", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Token abc")
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, raw.StatusCode)
}

func TestSendMoneyFlow(t *testing.T) {
	s, ts := newTestServer(t)

	_, err := s.RegisterUser("Maria", "1", "maria", "abc")
	require.NoError(t, err)
	_, err = s.RegisterUser("Joao", "2", "joao", "xyz")
	require.NoError(t, err)

	maria := login(t, ts, "maria", "abc")
	joao := login(t, ts, "joao", "xyz")

	body := strings.NewReader(`{"to":"joao","value":12.5,"description":"lunch"}`)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/transactions", body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+maria)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var sent struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sent))
	assert.Equal(t, "OUTCOME", sent.Type)

	var balance BalanceResponse
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/balance", joao, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&balance))
	assert.True(t, balance.Balance.Equal(decimal.RequireFromString("1012.5")))

	var page TransactionsResponse
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/transactions?page=1&limit=10", joao, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Len(t, page.Transactions, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, "INCOME", string(page.Transactions[0].Type))

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/transactions/"+sent.ID, joao, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/transactions/missing", joao, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendMoneyErrors(t *testing.T) {
	s, ts := newTestServer(t)

	_, err := s.RegisterUser("Maria", "1", "maria", "abc")
	require.NoError(t, err)
	_, err = s.RegisterUser("Joao", "2", "joao", "xyz")
	require.NoError(t, err)
	token := login(t, ts, "maria", "abc")

	tests := []struct {
		name string
		body SendMoneyRequest
		want int
	}{
		{"unknown receiver", SendMoneyRequest{To: "ghost", Value: decimal.NewFromInt(1)}, http.StatusNotFound},
		{"over balance", SendMoneyRequest{To: "joao", Value: decimal.NewFromInt(5000)}, http.StatusPaymentRequired},
		{"zero value", SendMoneyRequest{To: "joao", Value: decimal.Zero}, http.StatusBadRequest},
		{"self transfer", SendMoneyRequest{To: "maria", Value: decimal.NewFromInt(1)}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, ts.URL+"/api/transactions", token, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestListTransactionsClampsQuery(t *testing.T) {
	s, ts := newTestServer(t)

	_, err := s.RegisterUser("Maria", "1", "maria", "abc")
	require.NoError(t, err)
	token := login(t, ts, "maria", "abc")

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/transactions?page=-3&limit=abc", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page TransactionsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.NotNil(t, page.Transactions)
	assert.Empty(t, page.Transactions)
}
