package admin

import (
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
)

type orderItemDTO struct {
	Product  string          `json:"product"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Photo    string          `json:"photo"`
}

type orderDTO struct {
	ID              string                 `json:"_id"`
	UserID          string                 `json:"userId"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	OrderItems      []orderItemDTO         `json:"orderItems"`
	TotalPrice      decimal.Decimal        `json:"totalPrice"`
	PaymentID       string                 `json:"paymentId"`
	Status          string                 `json:"status"`
}

func (o orderDTO) toDomain() domain.Order {
	items := make([]domain.OrderItem, len(o.OrderItems))
	for i, it := range o.OrderItems {
		items[i] = domain.OrderItem{
			ProductID: it.Product,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     domain.MoneyFromDecimal(it.Price),
			Photo:     it.Photo,
		}
	}
	status := domain.OrderStatus(o.Status)
	if status == "" {
		status = domain.OrderStatusPending
	}
	return domain.Order{
		ID:              o.ID,
		UserID:          o.UserID,
		ShippingAddress: o.ShippingAddress,
		Items:           items,
		TotalPrice:      domain.MoneyFromDecimal(o.TotalPrice),
		PaymentID:       o.PaymentID,
		Status:          status,
	}
}
