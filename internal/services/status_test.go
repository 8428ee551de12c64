package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapCarrierStatus(t *testing.T) {
	tests := []struct {
		carrier string
		want    DeliveryStatus
	}{
		{"queued", DeliveryQueued},
		{"accepted", DeliveryQueued},
		{"scheduled", DeliveryQueued},
		{"sending", DeliverySending},
		{"sent", DeliverySent},
		{"delivered", DeliveryDelivered},
		{"read", DeliveryDelivered},
		{"failed", DeliveryFailed},
		{"canceled", DeliveryFailed},
		{"undelivered", DeliveryUndelivered},
		{"partially_delivered", DeliveryUnknown},
		{"", DeliveryUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapCarrierStatus(tt.carrier), "carrier status %q", tt.carrier)
	}
}

func TestDeliveryStatusTerminal(t *testing.T) {
	assert.True(t, DeliveryDelivered.Terminal())
	assert.True(t, DeliveryFailed.Terminal())
	assert.True(t, DeliveryUndelivered.Terminal())

	assert.False(t, DeliveryQueued.Terminal())
	assert.False(t, DeliverySending.Terminal())
	assert.False(t, DeliverySent.Terminal())
	assert.False(t, DeliveryUnknown.Terminal())
}
