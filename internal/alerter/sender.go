// Package alerter implements the Alerter Fan-out (C10): opening and
// resolving Alert rows with the "at most one unresolved alert per
// (target, kind)" invariant, and dispatching each open/resolve/custom
// event to every enabled Alerter resource whose type/target filters admit
// it. The per-backend Send shape (an *http.Client-backed struct built
// from the Alerter's config, POST, check 2xx) is lifted from the
// teacher's internal/notify package; Multi's never-block-on-one-backend's-
// failure fan-out is the same shape as the teacher's notify.Multi.Notify.
package alerter

import (
	"context"

	"github.com/komodore/core/internal/model"
)

// Sender is one concrete alerter backend (spec §4.10's "Slack, Discord,
// Ntfy, Pushover, Mqtt, Webhook, or Custom endpoint").
type Sender interface {
	Send(ctx context.Context, alert model.Alert) error
	Name() string
}
