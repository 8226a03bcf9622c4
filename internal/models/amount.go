package models

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Amount is a value in minor units; AmountPerCoin minor units make one coin
type Amount int64

const (
	// AmountDecimals is the number of fractional digits an Amount can carry
	AmountDecimals = 8

	// AmountPerCoin is the number of minor units in one whole coin
	AmountPerCoin Amount = 100_000_000
)

// ErrInvalidAmount is returned for amounts that cannot be parsed or are not positive
var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount parses decimal text such as "10", "10.0" or "0.00000001"
func ParseAmount(s string) (Amount, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return 0, errors.Wrap(ErrInvalidAmount, "empty amount")
	}

	negative := false
	switch text[0] {
	case '-':
		negative = true
		text = text[1:]
	case '+':
		text = text[1:]
	}

	whole, frac, hasFrac := strings.Cut(text, ".")
	if whole == "" || !isDigits(whole) || (hasFrac && (frac == "" || !isDigits(frac))) {
		return 0, errors.Wrapf(ErrInvalidAmount, "malformed amount %q", s)
	}
	if len(frac) > AmountDecimals {
		return 0, errors.Wrapf(ErrInvalidAmount, "amount %q has more than %d decimals", s, AmountDecimals)
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > math.MaxInt64/int64(AmountPerCoin) {
		return 0, errors.Wrapf(ErrInvalidAmount, "amount %q out of range", s)
	}

	var f int64
	if frac != "" {
		f, err = strconv.ParseInt(frac+strings.Repeat("0", AmountDecimals-len(frac)), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrInvalidAmount, "malformed amount %q", s)
		}
	}

	units := w*int64(AmountPerCoin) + f
	if units < 0 {
		return 0, errors.Wrapf(ErrInvalidAmount, "amount %q out of range", s)
	}
	if negative {
		units = -units
	}
	return Amount(units), nil
}

// MustParseAmount is like ParseAmount but panics on error
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the amount as decimal text that always carries a fractional part,
// e.g. "10.0", "4.5", "0.00000001"
func (a Amount) String() string {
	sign := ""
	u := uint64(a)
	if a < 0 {
		sign = "-"
		u = uint64(-(a + 1)) + 1
	}

	per := uint64(AmountPerCoin)
	frac := strconv.FormatUint(u%per, 10)
	frac = strings.Repeat("0", AmountDecimals-len(frac)) + frac
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		frac = "0"
	}

	return sign + strconv.FormatUint(u/per, 10) + "." + frac
}

// MarshalJSON renders the amount as a JSON number in its canonical decimal text
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string
func (a *Amount) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(data), `"`)
	v, err := ParseAmount(text)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Add returns a+b, or ErrInvalidAmount if the sum leaves the int64 range
func (a Amount) Add(b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, errors.Wrapf(ErrInvalidAmount, "%s + %s overflows", a, b)
	}
	return a + b, nil
}

// SumAmounts adds amounts, failing with ErrInvalidAmount on overflow
func SumAmounts(amounts ...Amount) (Amount, error) {
	var total Amount
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return 0, err
		}
	}
	return total, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
