package notify

import (
	"go.uber.org/zap"

	"github.com/warp/recognition-engine/generic"
)

// Channel and NewPublisherWithDialer expose the transport seam to tests.
type Channel = channel

func NewPublisherWithDialer(queue string, clock generic.Clock, dial func(url, queue string) (Channel, func() error, error)) *Publisher {
	return newPublisher("amqp://test", queue, zap.NewNop(), clock, dial)
}
