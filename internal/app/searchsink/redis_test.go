package searchsink

import (
	"testing"
	"time"

	"github.com/auction-sync/project/internal/projection"
	"github.com/shopspring/decimal"
)

func TestHashFieldsRoundTrip(t *testing.T) {
	created := time.Date(2026, 2, 9, 20, 30, 0, 0, time.UTC)
	rec := projection.SearchIndexRecord{
		ID:             "auction-1",
		CurrentHighBid: decimal.RequireFromString("2500.50"),
		ReservePrice:   decimal.NewFromInt(2000),
		Seller:         "alice",
		Make:           "Ford",
		Model:          "GT",
		Year:           2020,
		CreatedAt:      created,
		UpdatedAt:      created,
	}

	args := hashFields(rec)
	if len(args)%2 != 0 {
		t.Fatalf("expected field/value pairs, got %d args", len(args))
	}
	fields := make(map[string]string, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		fields[args[i].(string)] = args[i+1].(string)
	}
	if fields[fieldVersion] != "0" {
		t.Fatalf("new rows start at version 0, got %q", fields[fieldVersion])
	}

	got, err := recordFromHash("auction-1", fields)
	if err != nil {
		t.Fatalf("recordFromHash returned error: %v", err)
	}
	if !got.CurrentHighBid.Equal(rec.CurrentHighBid) || !got.ReservePrice.Equal(rec.ReservePrice) {
		t.Fatalf("amounts changed: %+v", got)
	}
	if got.Seller != "alice" || got.Make != "Ford" || got.Model != "GT" || got.Year != 2020 {
		t.Fatalf("unexpected descriptive fields: %+v", got)
	}
	if !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(created) {
		t.Fatalf("timestamps changed: %s %s", got.CreatedAt, got.UpdatedAt)
	}
}

func TestRecordFromHash_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"bad high bid", map[string]string{fieldCurrentHighBid: "lots", fieldVersion: "0"}},
		{"bad version", map[string]string{fieldCurrentHighBid: "1", fieldVersion: "x"}},
		{"missing version", map[string]string{fieldCurrentHighBid: "1"}},
		{"bad year", map[string]string{fieldVersion: "0", fieldYear: "nineteen"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := recordFromHash("auction-1", tt.fields); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestItemKey(t *testing.T) {
	if got := itemKey("auction-1"); got != "search:item:auction-1" {
		t.Fatalf("itemKey = %q", got)
	}
}
