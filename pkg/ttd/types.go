package ttd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Amount is a currency value that goes over the wire as a bare JSON number.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func AmountFromInt(v int64) Amount {
	return Amount{Decimal: decimal.NewFromInt(v)}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		a.Decimal = decimal.Zero
		return nil
	}
	return a.Decimal.UnmarshalJSON(b)
}

// Money is the REST {Amount, CurrencyCode} pair.
type Money struct {
	Amount       Amount `json:"Amount"`
	CurrencyCode string `json:"CurrencyCode"`
}

func USD(amount Amount) Money {
	return Money{Amount: amount, CurrencyCode: "USD"}
}

// Long is the GraphQL Long scalar. It accepts numbers and numeric strings.
type Long int64

func (l Long) String() string {
	return strconv.FormatInt(int64(l), 10)
}

func (l Long) MarshalJSON() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Long) UnmarshalJSON(b []byte) error {
	trimmed := bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*l = 0
		return nil
	}
	v, err := strconv.ParseInt(string(trimmed), 10, 64)
	if err != nil {
		return fmt.Errorf("parse Long %q: %w", string(b), err)
	}
	*l = Long(v)
	return nil
}

// ParseLong reads a Long from its decimal string form.
func ParseLong(s string) (Long, error) {
	var l Long
	if err := l.UnmarshalJSON([]byte(s)); err != nil {
		return 0, err
	}
	return l, nil
}

// Timestamp reads the platform's date-times, which are sometimes sent
// without a zone. Zone-less values are taken as UTC.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var raw *string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil || *raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, *raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", *raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
