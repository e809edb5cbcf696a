package alerter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/komodore/core/internal/model"
)

// Ntfy posts to an ntfy.sh-compatible topic. The Alerter's Url is the
// full "server/topic" endpoint; Token, if set, is a bearer token.
type Ntfy struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewNtfy(endpoint, token string) *Ntfy {
	return &Ntfy{endpoint: strings.TrimRight(endpoint, "/"), token: token, client: &http.Client{Timeout: 10 * time.Second}}
}

func (n *Ntfy) Name() string { return "ntfy" }

func (n *Ntfy) Send(ctx context.Context, alert model.Alert) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(body(alert)))
	if err != nil {
		return fmt.Errorf("create ntfy request: %w", err)
	}
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	req.Header.Set("X-Title", title(alert))
	req.Header.Set("X-Priority", priorityFor(alert.Level))

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned %s", resp.Status)
	}
	return nil
}

func priorityFor(level model.AlertLevel) string {
	switch level {
	case model.AlertCritical:
		return "5"
	case model.AlertWarning:
		return "4"
	default:
		return "3"
	}
}
