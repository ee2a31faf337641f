package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestWeightedAverage(t *testing.T) {
	cases := []struct {
		name           string
		q1, c1, q2, p2 string
		qty, avg       string
	}{
		{"cement blend", "5", "20", "5", "30", "10", "25"},
		{"empty balance", "0", "0", "10", "100", "10", "100"},
		{"zero total", "-5", "20", "5", "30", "0", "0"},
		{"negative total", "-10", "20", "5", "30", "-5", "0"},
		{"repeating", "1", "1", "2", "2", "3", "1.666667"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			qty, avg := WeightedAverage(dec(tc.q1), dec(tc.c1), dec(tc.q2), dec(tc.p2))
			require.True(t, qty.Equal(dec(tc.qty)), "qty %s", qty)
			require.True(t, avg.Equal(dec(tc.avg)), "avg %s", avg)
		})
	}
}

func TestMatchKeyTrimsOnly(t *testing.T) {
	require.Equal(t, "Rebar 12mm", MatchKey("  Rebar 12mm\t"))
	require.NotEqual(t, MatchKey("rebar"), MatchKey("Rebar"))
}

func TestReceiveIntoRequiresPositiveQty(t *testing.T) {
	repo := newMemoryRepo()
	_, _, err := ReceiveInto(context.Background(), repo, ReceiptInput{Name: "Rebar", Qty: decimal.Zero}, Defaults{}, fixedNow)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	require.Empty(t, repo.items)
}
