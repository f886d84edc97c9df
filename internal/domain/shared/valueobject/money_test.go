package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromFloat(100.50), USD)
		require.NoError(t, err)
		assert.Equal(t, USD, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(100.50)))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromFloat(100), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "currency cannot be empty")
	})
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" USD ")
	require.NoError(t, err)
	assert.Equal(t, USD, c)

	_, err = ParseCurrency("xyz")
	assert.Error(t, err)
}

func TestMoney_Arithmetic(t *testing.T) {
	price := MustMoney(decimal.RequireFromString("19.99"), USD)

	t.Run("multiply by quantity", func(t *testing.T) {
		assert.Equal(t, "59.97", price.MultiplyByInt(3).Amount().StringFixed(2))
	})

	t.Run("add same currency", func(t *testing.T) {
		sum, err := price.Add(MustMoney(decimal.NewFromInt(10), USD))
		require.NoError(t, err)
		assert.Equal(t, "29.99", sum.Amount().StringFixed(2))
	})

	t.Run("add currency mismatch", func(t *testing.T) {
		_, err := price.Add(MustMoney(decimal.NewFromInt(10), EUR))
		assert.Error(t, err)
	})
}

func TestMoney_MinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"10", 1000},
		{"19.99", 1999},
		{"0.005", 1},
		{"12.344", 1234},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			m := MustMoney(decimal.RequireFromString(tt.amount), USD)
			assert.Equal(t, tt.want, m.MinorUnits())
		})
	}
}

func TestMoney_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(MustMoney(decimal.NewFromInt(5), USD))
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"5.00","currency":"usd"}`, string(b))
}
