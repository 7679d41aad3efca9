package noshow

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	repeatOffenderThreshold = 3
	recentNoShowLimit       = 10
)

// Counts are raw totals over class sessions that started in [from, to).
// Rates in Report are derived only from these.
type Counts struct {
	Sessions         int   `db:"sessions"`
	TotalCapacity    int   `db:"total_capacity"`
	Confirmed        int   `db:"confirmed"`
	ConfirmedEnded   int   `db:"confirmed_ended"`
	CheckedIn        int   `db:"checked_in"`
	NoShows          int   `db:"no_shows"`
	RevenueLostCents int64 `db:"revenue_lost_cents"`
}

type RecentNoShow struct {
	BookingID      int64     `db:"booking_id" json:"booking_id"`
	AttendeeName   string    `db:"attendee_name" json:"attendee_name"`
	AttendeeEmail  string    `db:"attendee_email" json:"attendee_email"`
	ClassTitle     string    `db:"class_title" json:"class_title"`
	StartTime      time.Time `db:"start_time" json:"start_time"`
	PenaltyApplied bool      `db:"penalty_applied" json:"penalty_applied"`
}

type Report struct {
	From                time.Time      `json:"from"`
	To                  time.Time      `json:"to"`
	Sessions            int            `json:"sessions"`
	TotalCapacity       int            `json:"total_capacity"`
	Confirmed           int            `json:"confirmed"`
	CheckedIn           int            `json:"checked_in"`
	NoShows             int            `json:"no_shows"`
	NoShowRate          float64        `json:"no_show_rate"`
	AttendanceRate      float64        `json:"attendance_rate"`
	CapacityUtilization float64        `json:"capacity_utilization"`
	AverageCapacity     float64        `json:"average_capacity"`
	RevenueLostCents    int64          `json:"revenue_lost_cents"`
	RepeatOffenders     int            `json:"repeat_offenders"`
	RecentNoShows       []RecentNoShow `json:"recent_no_shows"`
}

type Analytics struct {
	db *sqlx.DB
}

func NewAnalytics(db *sqlx.DB) *Analytics {
	return &Analytics{db: db}
}

// Report summarises attendance for sessions starting in [from, to). A booking
// only counts as a no-show once its class ended more than grace ago.
func (a *Analytics) Report(ctx context.Context, orgID int64, from, to time.Time, grace time.Duration, now time.Time) (*Report, error) {
	cutoff := now.Add(-grace)

	var counts Counts
	err := a.db.GetContext(ctx, &counts, `
		SELECT
			(SELECT COUNT(*) FROM class_sessions
			 WHERE organization_id = $1 AND start_time >= $2 AND start_time < $3) AS sessions,
			(SELECT COALESCE(SUM(capacity), 0) FROM class_sessions
			 WHERE organization_id = $1 AND start_time >= $2 AND start_time < $3) AS total_capacity,
			COUNT(b.id) AS confirmed,
			COUNT(b.id) FILTER (WHERE s.end_time <= $4) AS confirmed_ended,
			COUNT(ci.id) AS checked_in,
			COUNT(b.id) FILTER (WHERE s.end_time <= $4 AND ci.id IS NULL) AS no_shows,
			COALESCE(SUM(s.price_cents) FILTER (WHERE s.end_time <= $4 AND ci.id IS NULL), 0) AS revenue_lost_cents
		FROM bookings b
		JOIN class_sessions s ON s.id = b.class_session_id
		LEFT JOIN check_ins ci ON ci.booking_id = b.id
		WHERE s.organization_id = $1
		  AND s.start_time >= $2 AND s.start_time < $3
		  AND b.status = 'confirmed'
	`, orgID, from, to, cutoff)
	if err != nil {
		return nil, fmt.Errorf("load attendance counts: %w", err)
	}

	var repeat int
	err = a.db.GetContext(ctx, &repeat, `
		SELECT COUNT(*) FROM (
			SELECT b.attendee_email
			FROM bookings b
			JOIN class_sessions s ON s.id = b.class_session_id
			WHERE s.organization_id = $1
			  AND s.start_time >= $2 AND s.start_time < $3
			  AND s.end_time <= $4
			  AND b.status = 'confirmed'
			  AND NOT EXISTS (SELECT 1 FROM check_ins ci WHERE ci.booking_id = b.id)
			GROUP BY b.attendee_email
			HAVING COUNT(*) >= $5
		) offenders
	`, orgID, from, to, cutoff, repeatOffenderThreshold)
	if err != nil {
		return nil, fmt.Errorf("count repeat offenders: %w", err)
	}

	recent := []RecentNoShow{}
	err = a.db.SelectContext(ctx, &recent, `
		SELECT
			b.id AS booking_id, b.attendee_name, b.attendee_email, s.title AS class_title, s.start_time,
			EXISTS (SELECT 1 FROM no_show_penalty_records r WHERE r.booking_id = b.id) AS penalty_applied
		FROM bookings b
		JOIN class_sessions s ON s.id = b.class_session_id
		WHERE s.organization_id = $1
		  AND s.start_time >= $2 AND s.start_time < $3
		  AND s.end_time <= $4
		  AND b.status = 'confirmed'
		  AND NOT EXISTS (SELECT 1 FROM check_ins ci WHERE ci.booking_id = b.id)
		ORDER BY s.start_time DESC, b.id DESC
		LIMIT $5
	`, orgID, from, to, cutoff, recentNoShowLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent no-shows: %w", err)
	}

	report := buildReport(counts, from, to)
	report.RepeatOffenders = repeat
	report.RecentNoShows = recent
	return report, nil
}

func buildReport(c Counts, from, to time.Time) *Report {
	r := &Report{
		From:             from,
		To:               to,
		Sessions:         c.Sessions,
		TotalCapacity:    c.TotalCapacity,
		Confirmed:        c.Confirmed,
		CheckedIn:        c.CheckedIn,
		NoShows:          c.NoShows,
		RevenueLostCents: c.RevenueLostCents,
	}

	r.NoShowRate = percent(c.NoShows, c.ConfirmedEnded)
	r.AttendanceRate = percent(c.CheckedIn, c.Confirmed)
	r.CapacityUtilization = percent(c.Confirmed, c.TotalCapacity)
	if c.Sessions > 0 {
		r.AverageCapacity = float64(c.TotalCapacity) / float64(c.Sessions)
	}
	return r
}

func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
