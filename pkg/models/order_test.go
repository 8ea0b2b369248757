package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_Valid(t *testing.T) {
	for _, s := range OrderStatuses() {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, OrderStatus("Cancelled").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestOrderPatch_Apply(t *testing.T) {
	paid := true
	confirmed := OrderStatusConfirmed
	processing := OrderStatusProcessing

	tests := []struct {
		name        string
		start       Order
		patch       OrderPatch
		wantStatus  OrderStatus
		wantPayment bool
	}{
		{
			name:        "conditional status applies when matching",
			start:       Order{Status: OrderStatusProcessing},
			patch:       OrderPatch{Payment: &paid, Status: &confirmed, StatusIf: &processing},
			wantStatus:  OrderStatusConfirmed,
			wantPayment: true,
		},
		{
			name:        "conditional status skipped, payment still set",
			start:       Order{Status: OrderStatusOutForDelivery},
			patch:       OrderPatch{Payment: &paid, Status: &confirmed, StatusIf: &processing},
			wantStatus:  OrderStatusOutForDelivery,
			wantPayment: true,
		},
		{
			name:       "unconditional status",
			start:      Order{Status: OrderStatusDelivered},
			patch:      OrderPatch{Status: &processing},
			wantStatus: OrderStatusProcessing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.start
			tt.patch.Apply(&o)
			assert.Equal(t, tt.wantStatus, o.Status)
			assert.Equal(t, tt.wantPayment, o.Payment)
		})
	}

	assert.True(t, OrderPatch{}.Empty())
	assert.False(t, OrderPatch{Payment: &paid}.Empty())
}
