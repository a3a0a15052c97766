package models

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount in minor currency units (kopecks, cents).
type Money int64

// MaxMoney is the largest accepted amount: ten significant digits, two of
// them after the point.
const MaxMoney Money = 99_999_999_99

// ParseMoney parses "1500", "1500.5" or "1500.50". Only ASCII digits and one
// point are accepted, with at most two fraction digits and no sign. Amounts
// above MaxMoney are rejected.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative amount %q", s)
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	whole = strings.TrimLeft(whole, "0")
	if len(whole) > 8 {
		return 0, fmt.Errorf("amount %q exceeds %s", s, MaxMoney)
	}

	var units int64
	if whole != "" {
		units, _ = strconv.ParseInt(whole, 10, 64)
	}

	var cents int64
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 || !isDigits(frac) {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		if len(frac) == 1 {
			frac += "0"
		}
		cents, _ = strconv.ParseInt(frac, 10, 64)
	}

	return Money(units*100 + cents), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Valid reports whether the amount is within [0, MaxMoney].
func (m Money) Valid() bool {
	return m >= 0 && m <= MaxMoney
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Float64 is used for spreadsheet cells and averages.
func (m Money) Float64() float64 {
	return float64(m) / 100
}

// Mul multiplies the amount by a whole number of units (days, animals).
func (m Money) Mul(n int) Money {
	return m * Money(n)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if string(data) == "null" {
		return nil
	}
	parsed, err := ParseMoney(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return int64(m), nil
}

func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = 0
	case int64:
		*m = Money(v)
	case float64:
		*m = Money(int64(v))
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("scan money: %w", err)
		}
		*m = Money(n)
	default:
		return fmt.Errorf("scan money: unsupported type %T", src)
	}
	return nil
}

// UnmarshalYAML reads amounts written as "450" or "450.50" in seed files.
func (m *Money) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
