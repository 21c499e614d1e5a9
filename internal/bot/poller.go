package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Poller consumes updates via long polling. It is the default transport;
// deployments with a public endpoint use the webhook server instead.
type Poller struct {
	API        *tgbotapi.BotAPI
	Dispatcher *Dispatcher

	// Timeout is the long-poll timeout in seconds.
	Timeout int
}

// NewPoller constructs a Poller with a 30 second long-poll timeout.
func NewPoller(api *tgbotapi.BotAPI, d *Dispatcher) *Poller {
	return &Poller{API: api, Dispatcher: d, Timeout: 30}
}

// Run blocks consuming updates until ctx is cancelled. Updates are handled
// one at a time: Telegram delivers a chat's updates in order, and handling
// them sequentially preserves that order end to end.
func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.Timeout
	updates := p.API.GetUpdatesChan(cfg)
	log.Info().Int("timeout_s", p.Timeout).Msg("long polling started")

	for {
		select {
		case <-ctx.Done():
			p.API.StopReceivingUpdates()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			p.Dispatcher.HandleUpdate(ctx, upd)
		}
	}
}
