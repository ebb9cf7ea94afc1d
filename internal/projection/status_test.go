package projection

import (
	"testing"

	"github.com/shopspring/decimal"
)

func amount(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		name    string
		sold    *decimal.Decimal
		reserve string
		want    Status
	}{
		{"equal to reserve", amount("100"), "100", StatusReserveNotMet},
		{"above reserve", amount("101"), "100", StatusFinished},
		{"absent with zero reserve", nil, "0", StatusReserveNotMet},
		{"sold for zero with zero reserve", amount("0"), "0", StatusReserveNotMet},
		{"one cent above", amount("100.01"), "100", StatusFinished},
		{"one cent below", amount("99.99"), "100", StatusReserveNotMet},
		{"trailing zeros compare by value", amount("100.000"), "100", StatusReserveNotMet},
		{"sold above zero reserve", amount("0.01"), "0", StatusFinished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveStatus(tt.sold, decimal.RequireFromString(tt.reserve))
			if got != tt.want {
				t.Fatalf("ResolveStatus = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusLive.Terminal() {
		t.Fatal("Live must not be terminal")
	}
	if !StatusFinished.Terminal() || !StatusReserveNotMet.Terminal() {
		t.Fatal("Finished and ReserveNotMet must be terminal")
	}
}
