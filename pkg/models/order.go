package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusProcessing     OrderStatus = "Food Processing"
	OrderStatusConfirmed      OrderStatus = "Order Confirmed"
	OrderStatusOutForDelivery OrderStatus = "Out for Delivery"
	OrderStatusDelivered      OrderStatus = "Delivered"
	OrderStatusPaymentFailed  OrderStatus = "Payment Failed"
)

var orderStatuses = []OrderStatus{
	OrderStatusProcessing,
	OrderStatusConfirmed,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusPaymentFailed,
}

func (s OrderStatus) Valid() bool {
	for _, v := range orderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// Order is the persisted order document. Items, Amount and Address are
// captured at checkout and never rewritten.
type Order struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID  string             `bson:"userId" json:"userId"`
	Items   []OrderItem        `bson:"items" json:"items"`
	Amount  float64            `bson:"amount" json:"amount"`
	Address Address            `bson:"address" json:"address"`
	Payment bool               `bson:"payment" json:"payment"`
	Status  OrderStatus        `bson:"status" json:"status"`
	Date    time.Time          `bson:"date" json:"date"`
}

type OrderItem struct {
	ID       string  `bson:"id" json:"id"`
	Name     string  `bson:"name" json:"name"`
	Price    float64 `bson:"price" json:"price"`
	Quantity int     `bson:"quantity" json:"quantity"`
}

type Address struct {
	FirstName string `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName  string `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Email     string `bson:"email,omitempty" json:"email,omitempty"`
	Street    string `bson:"street,omitempty" json:"street,omitempty"`
	City      string `bson:"city,omitempty" json:"city,omitempty"`
	State     string `bson:"state,omitempty" json:"state,omitempty"`
	Zipcode   string `bson:"zipcode,omitempty" json:"zipcode,omitempty"`
	Country   string `bson:"country,omitempty" json:"country,omitempty"`
	Phone     string `bson:"phone,omitempty" json:"phone,omitempty"`
}

// OrderPatch is applied to a single order document atomically. Status is
// only written when StatusIf is nil or equals the stored status; Payment is
// written regardless.
type OrderPatch struct {
	Status   *OrderStatus
	StatusIf *OrderStatus
	Payment  *bool
}

func (p OrderPatch) Empty() bool {
	return p.Status == nil && p.Payment == nil
}

// Apply mutates o the way the store applies the patch.
func (p OrderPatch) Apply(o *Order) {
	if p.Payment != nil {
		o.Payment = *p.Payment
	}
	if p.Status != nil && (p.StatusIf == nil || o.Status == *p.StatusIf) {
		o.Status = *p.Status
	}
}

type OrderFilter struct {
	Status OrderStatus
	Skip   int64
	Limit  int64
}
