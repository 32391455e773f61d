package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	Income  TransactionType = "INCOME"
	Outcome TransactionType = "OUTCOME"
)

const unknownNickname = "unknown"

type Transaction struct {
	ID          ID              `json:"id"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description,omitempty"`
	CreatedAt   Timestamp       `json:"createdAt"`
	Type        TransactionType `json:"type"`
	ToUser      *UserRef        `json:"toUser,omitempty"`
	FromUser    *UserRef        `json:"fromUser,omitempty"`
}

func (t Transaction) IsIncome() bool {
	return t.Type == Income
}

// Counterparty is the sender of an income and the receiver of an outcome.
func (t Transaction) Counterparty() *UserRef {
	if t.IsIncome() {
		return t.FromUser
	}
	return t.ToUser
}

// Summary is the description, or a generated line naming the counterparty.
func (t Transaction) Summary() string {
	if t.Description != "" {
		return t.Description
	}

	nickname := unknownNickname
	if cp := t.Counterparty(); cp != nil && cp.Nickname != "" {
		nickname = cp.Nickname
	}

	if t.IsIncome() {
		return fmt.Sprintf("Received from %s", nickname)
	}
	return fmt.Sprintf("Sent to %s", nickname)
}

// SignedValue renders the value with a + for income and - for outcome.
func (t Transaction) SignedValue() string {
	sign := "-"
	if t.IsIncome() {
		sign = "+"
	}
	return sign + " " + t.Value.StringFixed(2)
}

// TransactionPage is one page of the feed as returned by the API.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	HasMore      bool          `json:"hasMore"`
}
