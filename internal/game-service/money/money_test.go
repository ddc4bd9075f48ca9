package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCents(t *testing.T) {
	cases := []struct {
		name  string
		units float64
		want  int64
		err   bool
	}{
		{name: "inteiro", units: 50, want: 5000},
		{name: "centavos", units: 10.25, want: 1025},
		{name: "zero", units: 0, want: 0},
		{name: "arredonda meio", units: 0.005, want: 1},
		{name: "negativo", units: -1, err: true},
		{name: "nan", units: math.NaN(), err: true},
		{name: "inf", units: math.Inf(1), err: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToCents(tc.units)
			if tc.err {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPayoutTruncaParaBaixo(t *testing.T) {
	// 10.00 a 1.80x = 18.00 exato
	assert.Equal(t, int64(1800), Payout(1000, 180))

	// 0.01 a 1.50x = 0.015, trunca para 0.01
	assert.Equal(t, int64(1), Payout(1, 150))

	// 3.33 a 1.33x = 4.4289, trunca para 4.42
	assert.Equal(t, int64(442), Payout(333, 133))

	// 1.00x devolve a stake intacta
	assert.Equal(t, int64(777), Payout(777, 100))
}

func TestUnitsRoundTrip(t *testing.T) {
	assert.Equal(t, 12.34, Units(1234))
	assert.Equal(t, 1.8, MultUnits(180))
}
