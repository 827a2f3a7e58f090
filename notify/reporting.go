package notify

import (
	"context"
	"strconv"

	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/observability"
)

// CaptureFunc reports an error with tags.
type CaptureFunc func(ctx context.Context, err error, tags map[string]string)

// Reporting forwards to next and reports failures before returning them.
type Reporting struct {
	next    generic.Notifier
	capture CaptureFunc
}

// NewReporting reports to Sentry when capture is nil.
func NewReporting(next generic.Notifier, capture CaptureFunc) *Reporting {
	if capture == nil {
		capture = observability.CaptureWithTags
	}
	return &Reporting{next: next, capture: capture}
}

func (r *Reporting) Notify(ctx context.Context, n generic.Notification) error {
	err := r.next.Notify(ctx, n)
	if err != nil {
		r.capture(ctx, err, map[string]string{
			"component": "notify",
			"purpose":   string(n.Purpose),
			"entry_id":  strconv.FormatInt(int64(n.EntryID), 10),
		})
	}
	return err
}

var _ generic.Notifier = (*Reporting)(nil)
