package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/warp/recognition-engine/generic"
)

// Logger writes notifications to the log instead of sending them.
type Logger struct {
	log   *zap.Logger
	clock generic.Clock
}

func NewLogger(log *zap.Logger, clock generic.Clock) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Logger{log: log.Named("notify"), clock: clock}
}

func (l *Logger) Notify(_ context.Context, n generic.Notification) error {
	m := Render(n, l.clock.Now())
	l.log.Info("notification",
		zap.Strings("to", m.To),
		zap.Strings("cc", m.CC),
		zap.String("subject", m.Subject),
		zap.String("purpose", string(m.Purpose)),
		zap.Int64("entry_id", int64(m.EntryID)),
		zap.String("body", m.Body),
		zap.String("link", m.Link),
	)
	return nil
}

var _ generic.Notifier = (*Logger)(nil)
