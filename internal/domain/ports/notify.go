package ports

import "context"

// ConversionNotification is fired once per finished (successful or failed)
// conversion job, for registered downstream systems (spec.md §4.10 step 6).
type ConversionNotification struct {
	JobID             string
	ItemID            string
	Succeeded         bool
	OutputMediaFileID string
	Error             string
}

// Notifier delivers fire-and-forget post-conversion notifications.
// Implementations must never let a delivery failure propagate: spec.md §5
// states "Notification failures never propagate."
type Notifier interface {
	Notify(ctx context.Context, n ConversionNotification)
}
