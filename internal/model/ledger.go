package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// FlexID is an identifier the aggregator may encode as a JSON number or string.
type FlexID string

// UnmarshalJSON accepts numeric and string identifiers.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "model: decode id")
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrap(err, "model: decode id")
	}
	*id = FlexID(n.String())
	return nil
}

// Transaction is a single booked ledger entry from the banking aggregator.
// Positive values are credits, negative values are debits.
type Transaction struct {
	ID          FlexID          `json:"id"`
	Date        time.Time       `json:"date"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"original_wording"`
	Currency    string          `json:"currency,omitempty"`
}

// transactionWire accepts the aggregator's loose encoding (numeric ids,
// date-only timestamps) before it is converted into a Transaction.
type transactionWire struct {
	ID          FlexID          `json:"id"`
	Date        string          `json:"date"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"original_wording"`
	Currency    string          `json:"currency"`
}

var transactionDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// UnmarshalJSON decodes a transaction, accepting numeric or string ids and
// RFC 3339 or date-only timestamps.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var w transactionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return eris.Wrap(err, "model: decode transaction")
	}

	t.ID = w.ID
	t.Value = w.Value
	t.Description = w.Description
	t.Currency = w.Currency
	t.Date = time.Time{}

	if w.Date == "" {
		return nil
	}
	for _, layout := range transactionDateLayouts {
		if ts, err := time.Parse(layout, w.Date); err == nil {
			t.Date = ts.UTC()
			return nil
		}
	}
	return &ValidationError{Field: "transactions.date", Reason: "unparseable date " + w.Date}
}

// Currency is the aggregator's currency descriptor.
type Currency struct {
	ID string `json:"id"`
}

// Account is a connected bank account. Balance is nil when the feed did not
// report one; a negative balance means the account is overdrawn.
type Account struct {
	ID           FlexID           `json:"id,omitempty"`
	Transactions []Transaction    `json:"transactions"`
	Balance      *decimal.Decimal `json:"balance"`
	IBAN         string           `json:"iban,omitempty"`
	BIC          string           `json:"bic,omitempty"`
	Currency     Currency         `json:"currency"`
	Type         string           `json:"type,omitempty"`
	Usage        string           `json:"usage,omitempty"`
	LastUpdate   string           `json:"last_update,omitempty"`
}

// Connection groups the accounts reachable through one bank connection.
type Connection struct {
	Accounts []Account `json:"accounts"`
}

// BankingData is the aggregator payload for one user.
type BankingData struct {
	Format      string       `json:"format,omitempty"`
	Connections []Connection `json:"connections"`
}

// ScoringAccount returns the account that is scored for an evaluation: the
// first account of the first connection. Returns nil when there is none.
func (b *BankingData) ScoringAccount() *Account {
	if b == nil || len(b.Connections) == 0 || len(b.Connections[0].Accounts) == 0 {
		return nil
	}
	return &b.Connections[0].Accounts[0]
}

// Validate checks that the banking payload is present and that every
// transaction of the scoring account is dated. A missing account, balance or
// transaction list is not an error: the credit scorer treats it as an empty,
// overdrawn ledger.
func (b *BankingData) Validate() error {
	if b == nil {
		return &ValidationError{Field: "banking_data", Reason: "is required"}
	}
	acct := b.ScoringAccount()
	if acct == nil {
		return nil
	}
	for i, txn := range acct.Transactions {
		if txn.Date.IsZero() {
			return &ValidationError{Field: "banking_data.transactions.date", Reason: "missing on transaction " + indexLabel(i, txn.ID)}
		}
	}
	return nil
}

func indexLabel(i int, id FlexID) string {
	if id != "" {
		return string(id)
	}
	return "#" + strconv.Itoa(i)
}
