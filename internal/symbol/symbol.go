// Package symbol handles asset ticker normalization and validation.
//
// Holdings were historically keyed inconsistently (lowercase asset id in
// some call sites, uppercase ticker in others). Every boundary now
// normalizes to the canonical uppercase form before touching a ledger.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidSymbol is returned for tickers that cannot resolve to an asset.
var ErrInvalidSymbol = errors.New("symbol: invalid ticker")

// tickerRegex matches canonical tickers: 1-10 uppercase letters/digits.
// Examples: BTC, ETH, DOGE, 1INCH.
var tickerRegex = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// Normalize returns the canonical uppercase form of a ticker.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Parse normalizes and validates a ticker, returning the canonical form.
func Parse(s string) (string, error) {
	sym := Normalize(s)
	if sym == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSymbol)
	}
	if !tickerRegex.MatchString(sym) {
		return "", fmt.Errorf("%w: %s (expected 1-10 letters or digits)", ErrInvalidSymbol, s)
	}
	return sym, nil
}
