package alerter

import (
	"context"

	"github.com/komodore/core/internal/model"
)

// Custom is a user-defined HTTP endpoint, used both for ordinary fan-out
// and as the target of SendAlert's named/type=Custom selection (spec
// §4.10 "custom alerts"). It is wire-identical to Webhook; kept as its
// own type so BuildSender's switch names it explicitly and callers can
// type-assert on it if they ever need Custom-specific behavior.
type Custom struct{ *Webhook }

func NewCustom(url, token string) *Custom {
	return &Custom{Webhook: NewWebhook(url, token)}
}

func (c *Custom) Name() string { return "custom" }

func (c *Custom) Send(ctx context.Context, alert model.Alert) error {
	return c.Webhook.Send(ctx, alert)
}
