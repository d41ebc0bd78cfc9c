package links

import (
	"time"

	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/database/models"
)

// State is the read-side view of a link: what an end-client visiting it
// would see. It is computed, never stored.
type State string

const (
	StateOpen    State = "open"
	StateExpired State = "expired"
	StateUsed    State = "used"
)

// CanRedeem reports whether a form may be submitted against link at now.
func CanRedeem(link *models.MagicLink, now time.Time) bool {
	return IsOpen(link.Status) && !IsExpired(link.ExpiresAt, now)
}

// Classify maps a link to its visitor-facing state. A used link reports
// used even after its expiry passes.
func Classify(link *models.MagicLink, now time.Time) State {
	switch {
	case link.Status == models.LinkStatusUsed:
		return StateUsed
	case CanRedeem(link, now):
		return StateOpen
	default:
		return StateExpired
	}
}

// CheckRedeemable returns AlreadyUsed or Expired when link cannot be
// redeemed at now.
func CheckRedeemable(link *models.MagicLink, now time.Time) error {
	switch Classify(link, now) {
	case StateUsed:
		return apperr.New(apperr.KindAlreadyUsed, "form has already been submitted")
	case StateExpired:
		if !IsOpen(link.Status) {
			return apperr.Newf(apperr.KindValidation, "unknown link status %q", link.Status)
		}
		return apperr.New(apperr.KindExpired, "link has expired")
	}
	return nil
}

// TransitionToUsed applies the redeem edge to link in memory. The caller
// persists it with a conditional update.
func TransitionToUsed(link *models.MagicLink, now time.Time) error {
	if err := CheckRedeemable(link, now); err != nil {
		return err
	}
	to, err := Next(link.Status, EventRedeem)
	if err != nil {
		return err
	}
	link.Status = to
	usedAt := now
	link.UsedAt = &usedAt
	return nil
}

// TransitionToPending applies the reset edge to link in memory. It must be
// persisted together with deletion of the link's submission.
func TransitionToPending(link *models.MagicLink) error {
	to, err := Next(link.Status, EventReset)
	if err != nil {
		return apperr.Newf(apperr.KindValidation, "only a used link can be reset (status %q)", link.Status)
	}
	link.Status = to
	link.UsedAt = nil
	return nil
}
