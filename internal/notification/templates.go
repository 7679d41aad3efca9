package notification

import (
	"fmt"
)

const timeLayout = "Jan 2, 2006 at 3:04 PM"

func Render(kind Kind, to Recipient, p Payload) (subject, body string, err error) {
	when := p.StartsAt.Format(timeLayout)

	switch kind {
	case KindBookingConfirmation:
		subject = "Booking Confirmed - " + p.ClassTitle
		body = fmt.Sprintf(`Hi %s,

Your spot is confirmed!

Class: %s
Time: %s
Booking: #%d

See you in class!

- Classbook`, to.Name, p.ClassTitle, when, p.BookingID)

	case KindWaitlistJoined:
		subject = "You're on the waitlist - " + p.ClassTitle
		body = fmt.Sprintf(`Hi %s,

%s is full, so you have been added to the waitlist at position %d.
We will let you know as soon as a spot opens up.

Class time: %s

- Classbook`, to.Name, p.ClassTitle, p.Position, when)

	case KindWaitlistPromotion:
		subject = "A spot opened up - " + p.ClassTitle
		body = fmt.Sprintf(`Hi %s,

Good news! A spot opened up and your booking for %s is now confirmed.

Time: %s
Booking: #%d

- Classbook`, to.Name, p.ClassTitle, when, p.BookingID)

	case KindBookingCancelled:
		subject = "Booking Cancelled - " + p.ClassTitle
		body = fmt.Sprintf(`Hi %s,

Your booking has been cancelled:

Class: %s
Time: %s

- Classbook`, to.Name, p.ClassTitle, when)

	case KindWaitlistWithdrawn:
		subject = "Waitlist Left - " + p.ClassTitle
		body = fmt.Sprintf(`Hi %s,

You have left the waitlist for %s (%s).

- Classbook`, to.Name, p.ClassTitle, when)

	case KindNoShow:
		subject = "Missed Class - " + p.ClassTitle
		body = fmt.Sprintf(`Hi %s,

We missed you at %s on %s.
A no-show penalty was applied to your account: %s

- Classbook`, to.Name, p.ClassTitle, when, p.PenaltyDetail)

	default:
		return "", "", fmt.Errorf("unknown notification kind %q", kind)
	}

	return subject, body, nil
}
