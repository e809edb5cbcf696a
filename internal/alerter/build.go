package alerter

import (
	"fmt"

	"github.com/komodore/core/internal/model"
)

// BuildSender constructs the concrete backend an Alerter resource names,
// the way the teacher's notify.BuildNotifier switches on Channel.Type.
func BuildSender(cfg model.AlerterConfig) (Sender, error) {
	switch cfg.Endpoint {
	case model.AlerterSlack:
		return NewSlack(cfg.Url), nil
	case model.AlerterDiscord:
		return NewDiscord(cfg.Url), nil
	case model.AlerterNtfy:
		return NewNtfy(cfg.Url, cfg.Token), nil
	case model.AlerterPushover:
		return NewPushover(cfg.Token), nil
	case model.AlerterMqtt:
		return NewMqtt(cfg.Url, cfg.Token), nil
	case model.AlerterWebhook:
		return NewWebhook(cfg.Url, cfg.Token), nil
	case model.AlerterCustomEp:
		return NewCustom(cfg.Url, cfg.Token), nil
	default:
		return nil, fmt.Errorf("unknown alerter endpoint %q", cfg.Endpoint)
	}
}
