package alerter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/komodore/core/internal/model"
)

func sampleAlert() model.Alert {
	return model.Alert{
		Id:     "a1",
		Level:  model.AlertCritical,
		Target: model.ResourceTarget{Kind: model.KindServer, Id: "s1"},
		Data:   model.AlertData{Kind: model.AlertServerUnreachable, Message: "no response"},
	}
}

func TestSlackSendsMarkdownPayload(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL)
	if err := s.Send(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(body, "no response") {
		t.Fatalf("expected message in payload, got %s", body)
	}
}

func TestSlackPropagatesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL)
	if err := s.Send(context.Background(), sampleAlert()); err == nil {
		t.Fatalf("expected an error on a non-2xx response")
	}
}

func TestNtfySetsTitleAndPriorityHeaders(t *testing.T) {
	var gotTitle, gotPriority, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("X-Title")
		gotPriority = r.Header.Get("X-Priority")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNtfy(srv.URL, "tok-1")
	if err := n.Send(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotTitle == "" {
		t.Fatalf("expected X-Title header to be set")
	}
	if gotPriority != "5" {
		t.Fatalf("expected Critical to map to priority 5, got %q", gotPriority)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("expected bearer auth header, got %q", gotAuth)
	}
}

func TestPushoverSplitsTokenOnColon(t *testing.T) {
	p := NewPushover("apptoken123:userkey456")
	if p.appToken != "apptoken123" || p.userKey != "userkey456" {
		t.Fatalf("expected token split into app/user, got %q/%q", p.appToken, p.userKey)
	}
}

func TestWebhookSendsJSONWithBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, "secret")
	if err := w.Send(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token header, got %q", gotAuth)
	}
}

func TestSplitBrokerTopic(t *testing.T) {
	cases := []struct {
		in           string
		broker, topic string
	}{
		{"tcp://broker:1883/alerts/core", "tcp://broker:1883", "alerts/core"},
		{"tcp://broker:1883", "tcp://broker:1883", ""},
	}
	for _, c := range cases {
		broker, topic := splitBrokerTopic(c.in)
		if broker != c.broker || topic != c.topic {
			t.Fatalf("splitBrokerTopic(%q) = (%q, %q), want (%q, %q)", c.in, broker, topic, c.broker, c.topic)
		}
	}
}

func TestBuildSenderCoversEveryEndpointKind(t *testing.T) {
	kinds := []model.AlerterEndpointKind{
		model.AlerterSlack, model.AlerterDiscord, model.AlerterNtfy,
		model.AlerterPushover, model.AlerterMqtt, model.AlerterWebhook, model.AlerterCustomEp,
	}
	for _, k := range kinds {
		if _, err := BuildSender(model.AlerterConfig{Endpoint: k, Url: "http://x", Token: "a:b"}); err != nil {
			t.Fatalf("BuildSender(%s): %v", k, err)
		}
	}
	if _, err := BuildSender(model.AlerterConfig{Endpoint: "Bogus"}); err == nil {
		t.Fatalf("expected an error for an unknown endpoint kind")
	}
}
