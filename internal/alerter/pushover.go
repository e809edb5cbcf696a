package alerter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/komodore/core/internal/model"
)

// Pushover posts to the Pushover API. The Alerter's Token holds
// "appToken:userKey" (Pushover's two distinct secrets collapsed onto the
// single Token field the resource schema offers).
type Pushover struct {
	appToken string
	userKey  string
	client   *http.Client
}

func NewPushover(token string) *Pushover {
	appToken, userKey, _ := strings.Cut(token, ":")
	return &Pushover{appToken: appToken, userKey: userKey, client: &http.Client{Timeout: 10 * time.Second}}
}

func (p *Pushover) Name() string { return "pushover" }

func (p *Pushover) Send(ctx context.Context, alert model.Alert) error {
	form := url.Values{
		"token":   {p.appToken},
		"user":    {p.userKey},
		"title":   {title(alert)},
		"message": {body(alert)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.pushover.net/1/messages.json",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create pushover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send pushover request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pushover returned %s", resp.Status)
	}
	return nil
}
