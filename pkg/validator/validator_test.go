package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/appointment-api/internal/model"
)

func TestCustomTags(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	valid := model.AvailabilityInput{Day: "Monday", StartTime: "08:00", EndTime: "12:30"}
	assert.NoError(t, v.Struct(valid))

	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"bad weekday", model.AvailabilityInput{Day: "funday", StartTime: "08:00", EndTime: "09:00"}, "day must be a weekday name"},
		{"bad clock", model.AvailabilityInput{Day: "monday", StartTime: "8am", EndTime: "09:00"}, "start_time must be a time in HH:MM form"},
		{"bad status", model.UpdateStatusRequest{Status: "done"}, "status must be a known appointment status"},
		{"missing status", model.UpdateStatusRequest{}, "status is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.want, Message(err))
		})
	}
}

func TestIsoDate(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	type req struct {
		Date string `json:"date" binding:"isodate"`
	}
	assert.NoError(t, v.Struct(req{Date: "2030-01-07"}))
	assert.Error(t, v.Struct(req{Date: "2030-02-30"}))
	assert.Error(t, v.Struct(req{Date: "07/01/2030"}))
}

func TestRegisterGin_Idempotent(t *testing.T) {
	require.NoError(t, RegisterGin())
	require.NoError(t, RegisterGin())
}
