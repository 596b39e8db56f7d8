package domain

import (
	"regexp"
	"strings"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusApproved OrderStatus = "approved"
	OrderStatusDeclined OrderStatus = "declined"
)

type ShippingAddress struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country"`
	PhoneNumber string `json:"phoneNumber"`
}

type OrderItem struct {
	ProductID string `json:"product"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     Money  `json:"-"`
	Photo     string `json:"photo"`
}

type Order struct {
	ID              string
	UserID          string
	ShippingAddress ShippingAddress
	Items           []OrderItem
	TotalPrice      Money
	PaymentID       string
	Status          OrderStatus
}

const DefaultCountry = "US"

var (
	emailPattern = regexp.MustCompile(`^\S+@\S+$`)
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
)

// FieldErrors maps a form field to its message.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for _, field := range sortedKeys(f) {
		parts = append(parts, field+": "+f[field])
	}
	return "invalid shipping address: " + strings.Join(parts, "; ")
}

// Normalize trims every field and applies the default country.
func (a ShippingAddress) Normalize() ShippingAddress {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
	a.Address = strings.TrimSpace(a.Address)
	a.City = strings.TrimSpace(a.City)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	a.PhoneNumber = strings.TrimSpace(a.PhoneNumber)
	if a.Country == "" {
		a.Country = DefaultCountry
	}
	return a
}

// Validate returns FieldErrors when any field is missing or malformed, nil otherwise.
func (a ShippingAddress) Validate() error {
	a = a.Normalize()
	errs := FieldErrors{}
	required := map[string]string{
		"name":        a.Name,
		"email":       a.Email,
		"address":     a.Address,
		"city":        a.City,
		"postalCode":  a.PostalCode,
		"phoneNumber": a.PhoneNumber,
	}
	for field, v := range required {
		if v == "" {
			errs[field] = "is required"
		}
	}
	if _, missing := errs["email"]; !missing && !emailPattern.MatchString(a.Email) {
		errs["email"] = "invalid email address"
	}
	if _, missing := errs["phoneNumber"]; !missing && !phonePattern.MatchString(a.PhoneNumber) {
		errs["phoneNumber"] = "must be 10 digits"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
