package events

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/belle-designer/AppointmentSystem/internal/appointment"
)

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "appointment.created", RoutingKey(appointment.EventAppointmentCreated))
	assert.Equal(t, "appointment.cancelled", RoutingKey(appointment.EventAppointmentCancelled))
}

func TestMessage(t *testing.T) {
	at := time.Date(2025, time.November, 20, 9, 0, 0, 0, time.UTC)
	ev := appointment.Event{
		Type: appointment.EventAppointmentConfirmed,
		Appointment: appointment.Appointment{
			ID:     uuid.New(),
			Date:   appointment.NewDate(2025, time.December, 1),
			Time:   "09:00 AM",
			Status: appointment.StatusConfirmed,
		},
		OccurredAt: at,
	}

	msg, err := message(ev)
	require.NoError(t, err)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, ev.Type, msg.Type)
	assert.Equal(t, at, msg.Timestamp)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "APPOINTMENT_CONFIRMED", body["type"])
	appt := body["appointment"].(map[string]any)
	assert.Equal(t, "2025-12-01", appt["date"])
	assert.Equal(t, "confirmed", appt["status"])
}
