package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
)

// ShippingAddress is the delivery address captured at checkout
type ShippingAddress struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zipcode   string `json:"zipcode"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

// Normalize trims every field
func (a ShippingAddress) Normalize() ShippingAddress {
	return ShippingAddress{
		FirstName: strings.TrimSpace(a.FirstName),
		LastName:  strings.TrimSpace(a.LastName),
		Email:     strings.ToLower(strings.TrimSpace(a.Email)),
		Street:    strings.TrimSpace(a.Street),
		City:      strings.TrimSpace(a.City),
		State:     strings.TrimSpace(a.State),
		Zipcode:   strings.TrimSpace(a.Zipcode),
		Country:   strings.TrimSpace(a.Country),
		Phone:     strings.TrimSpace(a.Phone),
	}
}

// Validate checks that the fields needed for delivery are present
func (a ShippingAddress) Validate() error {
	required := []struct{ name, value string }{
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"street", a.Street},
		{"city", a.City},
		{"zipcode", a.Zipcode},
		{"country", a.Country},
		{"phone", a.Phone},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("address %s is required", f.name)
		}
	}
	if a.Email != "" {
		if _, err := mail.ParseAddress(a.Email); err != nil {
			return fmt.Errorf("address email is invalid")
		}
	}
	return nil
}

// FullName joins first and last name
func (a ShippingAddress) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Value implements driver.Valuer, storing the address as JSON
func (a ShippingAddress) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (a *ShippingAddress) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*a = ShippingAddress{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan %T into ShippingAddress", value)
	}
	if len(data) == 0 || string(data) == "null" {
		*a = ShippingAddress{}
		return nil
	}
	return json.Unmarshal(data, a)
}
