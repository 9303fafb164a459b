// Package notify delivers operator messages. Delivery is best effort: a
// failed send is logged and counted, never returned to the scan loop.
package notify

import (
	"context"
	"time"

	"triflow/internal/metrics"
	"triflow/logger"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// Notifier fans messages out to its senders. With no senders it only logs.
type Notifier struct {
	senders []Sender
	timeout time.Duration
	metrics *metrics.Recorder
	log     *logger.Entry
}

func NewNotifier(senders []Sender, timeout time.Duration, rec *metrics.Recorder) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		senders: senders,
		timeout: timeout,
		metrics: rec,
		log:     logger.GetLogger().WithComponent("notifier"),
	}
}

// Notify sends text to every sender, bounding each send by the notifier's
// timeout.
func (n *Notifier) Notify(ctx context.Context, text string) {
	if len(n.senders) == 0 {
		n.log.WithFields(logger.Fields{"text": text}).Debug("notification (no senders)")
		return
	}
	for _, s := range n.senders {
		sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
		err := s.Send(sendCtx, text)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n.metrics.NotifyFailure()
			logger.IncrementNotifyFailure()
			n.log.WithError(err).WithFields(logger.Fields{"sender": s.Name()}).Debug("notification failed")
			continue
		}
		n.log.WithFields(logger.Fields{"sender": s.Name()}).Debug("notification sent")
	}
}

// Close releases senders that hold resources.
func (n *Notifier) Close() error {
	for _, s := range n.senders {
		if c, ok := s.(interface{ Close() error }); ok {
			c.Close()
		}
	}
	return nil
}
