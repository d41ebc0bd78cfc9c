package links

import (
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/database/models"
)

// Event drives a link from one status to the next.
type Event string

const (
	EventRedeem    Event = "redeem"
	EventReset     Event = "reset"
	EventTerminate Event = "terminate"
)

// StatusRemoved is the terminal pseudo-status: the row no longer exists.
const StatusRemoved models.LinkStatus = ""

// transitions is the only place legal status changes are defined.
// pending and issued behave identically: both are "open".
var transitions = map[models.LinkStatus]map[Event]models.LinkStatus{
	models.LinkStatusPending: {
		EventRedeem:    models.LinkStatusUsed,
		EventTerminate: StatusRemoved,
	},
	models.LinkStatusIssued: {
		EventRedeem:    models.LinkStatusUsed,
		EventTerminate: StatusRemoved,
	},
	models.LinkStatusUsed: {
		EventReset:     models.LinkStatusPending,
		EventTerminate: StatusRemoved,
	},
}

// openStatuses is the equivalence class of visitable statuses.
var openStatuses = []models.LinkStatus{models.LinkStatusPending, models.LinkStatusIssued}

// ValidStatus reports whether s is a persisted link status.
func ValidStatus(s models.LinkStatus) bool {
	_, ok := transitions[s]
	return ok
}

// IsOpen reports whether s is in the open class (pending or issued).
func IsOpen(s models.LinkStatus) bool {
	return s == models.LinkStatusPending || s == models.LinkStatusIssued
}

// Next returns the status reached from `from` on ev, or a ValidationFailed
// error when the transition is not in the table.
func Next(from models.LinkStatus, ev Event) (models.LinkStatus, error) {
	edges, ok := transitions[from]
	if !ok {
		return "", apperr.Newf(apperr.KindValidation, "unknown link status %q", from)
	}
	to, ok := edges[ev]
	if !ok {
		return "", apperr.Newf(apperr.KindValidation, "illegal transition: %s on %q link", ev, from)
	}
	return to, nil
}
