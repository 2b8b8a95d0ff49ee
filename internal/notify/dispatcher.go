package notify

import (
	"context"
	"fmt"
	"sync"

	"homeserve/internal/domain"
	"homeserve/internal/models"

	"github.com/rs/zerolog"
)

// Dispatcher routes a message to the sender registered for the contact's
// channel. Unknown channels are a hard error so the worker can retry once a
// sender is configured.
type Dispatcher struct {
	mu      sync.RWMutex
	senders map[string]domain.Sender
	logger  *zerolog.Logger
}

func NewDispatcher(logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		senders: make(map[string]domain.Sender),
		logger:  logger,
	}
}

// Register binds a sender to a contact channel, e.g. models.ChannelTelegram.
func (d *Dispatcher) Register(channel string, sender domain.Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[channel] = sender
}

func (d *Dispatcher) SendMessage(ctx context.Context, contact *models.Contact, text string) error {
	d.mu.RLock()
	sender, ok := d.senders[contact.Channel]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no sender registered for channel '%s'", contact.Channel)
	}

	if err := sender.SendMessage(ctx, contact, text); err != nil {
		return err
	}

	d.logger.Debug().
		Int64("customer_id", contact.CustomerID).
		Str("channel", contact.Channel).
		Msg("message delivered")
	return nil
}
