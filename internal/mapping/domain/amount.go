package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a numeric value that may be empty. Empty encodes as "" on the wire.
type Amount struct {
	value decimal.NullDecimal
}

// EmptyAmount returns an amount with no value.
func EmptyAmount() Amount {
	return Amount{}
}

// NewAmount wraps a decimal.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{value: decimal.NullDecimal{Decimal: d, Valid: true}}
}

// AmountFromInt wraps an integer.
func AmountFromInt(v int64) Amount {
	return NewAmount(decimal.NewFromInt(v))
}

// ParseAmount parses operator input. Blank input yields an empty amount.
func ParseAmount(raw string) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return EmptyAmount(), nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidValue, raw)
	}
	return NewAmount(d), nil
}

// IsEmpty reports whether the amount has no value.
func (a Amount) IsEmpty() bool {
	return !a.value.Valid
}

// Decimal returns the value and whether it is set.
func (a Amount) Decimal() (decimal.Decimal, bool) {
	return a.value.Decimal, a.value.Valid
}

// Or returns a when it is set and fallback otherwise.
func (a Amount) Or(fallback Amount) Amount {
	if a.IsEmpty() {
		return fallback
	}
	return a
}

// Equal compares two amounts numerically; two empty amounts are equal.
func (a Amount) Equal(other Amount) bool {
	if a.value.Valid != other.value.Valid {
		return false
	}
	if !a.value.Valid {
		return true
	}
	return a.value.Decimal.Equal(other.value.Decimal)
}

// String returns "" for an empty amount.
func (a Amount) String() string {
	if !a.value.Valid {
		return ""
	}
	return a.value.Decimal.String()
}

// MarshalJSON encodes a number, or "" when empty.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.value.Valid {
		return []byte(`""`), nil
	}
	return []byte(a.value.Decimal.String()), nil
}

// UnmarshalJSON accepts a number, a numeric string, "" or null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = EmptyAmount()
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AmountFromNull converts a nullable decimal read from storage.
func AmountFromNull(nd decimal.NullDecimal) Amount {
	return Amount{value: nd}
}

// NullDecimal returns the value in its storage form.
func (a Amount) NullDecimal() decimal.NullDecimal {
	return a.value
}
