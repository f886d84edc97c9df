package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAddress() ShippingAddress {
	return ShippingAddress{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Street:    "1 Analytical Way",
		City:      "London",
		State:     "LDN",
		Zipcode:   "N1 9GU",
		Country:   "UK",
		Phone:     "+44 20 0000 0000",
	}
}

func TestShippingAddress_Validate(t *testing.T) {
	t.Run("valid address", func(t *testing.T) {
		assert.NoError(t, validAddress().Validate())
	})

	t.Run("missing street", func(t *testing.T) {
		a := validAddress()
		a.Street = ""
		err := a.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "street")
	})

	t.Run("invalid email", func(t *testing.T) {
		a := validAddress()
		a.Email = "not-an-email"
		assert.Error(t, a.Validate())
	})

	t.Run("state is optional", func(t *testing.T) {
		a := validAddress()
		a.State = ""
		assert.NoError(t, a.Validate())
	})
}

func TestShippingAddress_Normalize(t *testing.T) {
	a := ShippingAddress{FirstName: "  Ada ", Email: " ADA@Example.com "}.Normalize()
	assert.Equal(t, "Ada", a.FirstName)
	assert.Equal(t, "ada@example.com", a.Email)
}

func TestShippingAddress_ValueScan(t *testing.T) {
	original := validAddress()
	v, err := original.Value()
	require.NoError(t, err)

	var scanned ShippingAddress
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, original, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Equal(t, ShippingAddress{}, scanned)

	assert.Error(t, scanned.Scan(42))
}

func TestShippingAddress_FullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", validAddress().FullName())
}
