package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttendee_NormalizedEmail(t *testing.T) {
	a := Attendee{Name: "Ann", Email: "  Ann@Example.COM "}
	assert.Equal(t, "ann@example.com", a.NormalizedEmail())
}

func TestBooking_OwnedBy(t *testing.T) {
	uid := int64(7)
	member := Booking{UserID: &uid, AttendeeEmail: "ann@example.com"}
	guest := Booking{AttendeeEmail: "guest@example.com"}

	assert.True(t, member.OwnedBy(7, ""))
	assert.True(t, member.OwnedBy(99, "ANN@example.com"))
	assert.False(t, member.OwnedBy(8, "bob@example.com"))
	assert.True(t, guest.OwnedBy(1, "guest@example.com"))
	assert.False(t, guest.OwnedBy(1, ""))
}

func TestBooking_IsActive(t *testing.T) {
	assert.True(t, Booking{Status: BookingConfirmed}.IsActive())
	assert.True(t, Booking{Status: BookingWaitlisted}.IsActive())
	assert.False(t, Booking{Status: BookingCancelled}.IsActive())
}

func TestClassSession_HasStarted(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := ClassSession{StartTime: start, EndTime: start.Add(time.Hour)}

	assert.False(t, s.HasStarted(start.Add(-time.Minute)))
	assert.True(t, s.HasStarted(start))
}
