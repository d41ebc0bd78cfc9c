package links

import "time"

// IsExpired is the expiry predicate. A link without an expiry is never
// usable, and validity ends at expiresAt itself: expiresAt == now is
// expired.
func IsExpired(expiresAt *time.Time, now time.Time) bool {
	if expiresAt == nil {
		return true
	}
	return !expiresAt.After(now)
}
