package symbol_test

import (
	"errors"
	"testing"

	"github.com/coinsim/trade-engine/internal/symbol"
)

func TestParse_Canonicalizes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"BTC", "BTC"},
		{"btc", "BTC"},
		{" eth ", "ETH"},
		{"1inch", "1INCH"},
		{"doge", "DOGE"},
	}
	for _, tc := range cases {
		got, err := symbol.Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []string{"", "   ", "BTC/USDT", "no spaces", "waytoolongticker"}
	for _, tc := range cases {
		if _, err := symbol.Parse(tc); !errors.Is(err, symbol.ErrInvalidSymbol) {
			t.Errorf("Parse(%q) should fail with ErrInvalidSymbol, got %v", tc, err)
		}
	}
}
