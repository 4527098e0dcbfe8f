package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pedroasavelar91/nexus-familiar/pkg/logger"
)

type publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Broadcaster publishes notifications on a redis channel so other sessions of
// the same household can surface them.
type Broadcaster struct {
	pub     publisher
	channel string
	logg    *logger.Logger
}

func NewBroadcaster(pub publisher, channel string, logg *logger.Logger) (*Broadcaster, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	if channel == "" {
		return nil, fmt.Errorf("channel required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Broadcaster{pub: pub, channel: channel, logg: logg}, nil
}

func (b *Broadcaster) Notify(ctx context.Context, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		b.logg.Error(ctx, "encode notification", err)
		return
	}
	if err := b.pub.Publish(ctx, b.channel, payload); err != nil {
		b.logg.Warn(b.logg.WithField(ctx, "error", err.Error()), "publish notification failed")
	}
}
