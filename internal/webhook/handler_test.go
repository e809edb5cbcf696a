package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/model"
)

type fakeResources struct {
	byTarget map[model.ResourceTarget]*model.Resource
}

func (f *fakeResources) Get(kind model.ResourceKind, id string) (*model.Resource, error) {
	r, ok := f.byTarget[model.ResourceTarget{Kind: kind, Id: id}]
	if !ok {
		return nil, model.ErrNotFound
	}
	return r, nil
}

func stackResource(id, secret, branch string) *model.Resource {
	return &model.Resource{
		Id:   id,
		Kind: model.KindStack,
		Config: model.RawConfig{
			"webhook_secret": secret,
			"webhook_branch": branch,
		},
	}
}

func githubBody(branch string) []byte {
	return []byte(fmt.Sprintf(`{"ref":"refs/heads/%s"}`, branch))
}

func githubSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newTestHandler(resources ResourceSource, trigger Trigger) *Handler {
	return New(resources, trigger, "default-secret", logging.New(false))
}

func doWebhook(t *testing.T, h *Handler, provider, kind, id, action string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	url := fmt.Sprintf("/listener/%s/%s/%s/%s", provider, kind, id, action)
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestServeWebhookValidSignatureAndBranchTriggers(t *testing.T) {
	target := model.ResourceTarget{Kind: model.KindStack, Id: "web"}
	resources := &fakeResources{byTarget: map[model.ResourceTarget]*model.Resource{
		target: stackResource("web", "shh", "main"),
	}}
	var triggered model.ResourceTarget
	var gotAction string
	trigger := func(ctx context.Context, t model.ResourceTarget, action string) (*model.Update, error) {
		triggered = t
		gotAction = action
		return &model.Update{Id: "upd-1", Target: t, Operation: action}, nil
	}
	h := newTestHandler(resources, trigger)

	body := githubBody("main")
	rec := doWebhook(t, h, "github", "Stack", "web", "pull", body, map[string]string{
		"X-Hub-Signature-256": githubSignature("shh", body),
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if triggered != target {
		t.Errorf("triggered target = %+v, want %+v", triggered, target)
	}
	if gotAction != "pull" {
		t.Errorf("action = %q, want pull", gotAction)
	}
}

func TestServeWebhookInvalidSignatureRejected(t *testing.T) {
	target := model.ResourceTarget{Kind: model.KindStack, Id: "web"}
	resources := &fakeResources{byTarget: map[model.ResourceTarget]*model.Resource{
		target: stackResource("web", "shh", "main"),
	}}
	called := false
	trigger := func(ctx context.Context, t model.ResourceTarget, action string) (*model.Update, error) {
		called = true
		return &model.Update{Id: "upd-1"}, nil
	}
	h := newTestHandler(resources, trigger)

	body := githubBody("main")
	rec := doWebhook(t, h, "github", "Stack", "web", "pull", body, map[string]string{
		"X-Hub-Signature-256": githubSignature("wrong-secret", body),
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if called {
		t.Error("trigger must not be called on signature mismatch")
	}
}

func TestServeWebhookBranchMismatchIgnored(t *testing.T) {
	target := model.ResourceTarget{Kind: model.KindStack, Id: "web"}
	resources := &fakeResources{byTarget: map[model.ResourceTarget]*model.Resource{
		target: stackResource("web", "shh", "main"),
	}}
	called := false
	trigger := func(ctx context.Context, t model.ResourceTarget, action string) (*model.Update, error) {
		called = true
		return &model.Update{Id: "upd-1"}, nil
	}
	h := newTestHandler(resources, trigger)

	body := githubBody("dev")
	rec := doWebhook(t, h, "github", "Stack", "web", "pull", body, map[string]string{
		"X-Hub-Signature-256": githubSignature("shh", body),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (ignored, not rejected)", rec.Code)
	}
	if called {
		t.Error("trigger must not be called on branch mismatch")
	}
}

func TestServeWebhookAnyBranchSentinelMatchesEverything(t *testing.T) {
	target := model.ResourceTarget{Kind: model.KindAction, Id: "deploy-script"}
	resources := &fakeResources{byTarget: map[model.ResourceTarget]*model.Resource{
		target: {
			Id:   "deploy-script",
			Kind: model.KindAction,
			Config: model.RawConfig{
				"webhook_secret": "shh",
				"webhook_branch": "__ANY__",
			},
		},
	}}
	called := false
	trigger := func(ctx context.Context, t model.ResourceTarget, action string) (*model.Update, error) {
		called = true
		return &model.Update{Id: "upd-1"}, nil
	}
	h := newTestHandler(resources, trigger)

	body := githubBody("some-feature-branch")
	rec := doWebhook(t, h, "github", "Action", "deploy-script", "run", body, map[string]string{
		"X-Hub-Signature-256": githubSignature("shh", body),
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !called {
		t.Error("expected trigger to be called for __ANY__ branch sentinel")
	}
}

func TestServeWebhookFallsBackToDefaultSecret(t *testing.T) {
	target := model.ResourceTarget{Kind: model.KindStack, Id: "web"}
	resources := &fakeResources{byTarget: map[model.ResourceTarget]*model.Resource{
		target: stackResource("web", "", "main"), // no custom secret configured
	}}
	called := false
	trigger := func(ctx context.Context, t model.ResourceTarget, action string) (*model.Update, error) {
		called = true
		return &model.Update{Id: "upd-1"}, nil
	}
	h := newTestHandler(resources, trigger)

	body := githubBody("main")
	rec := doWebhook(t, h, "github", "Stack", "web", "pull", body, map[string]string{
		"X-Hub-Signature-256": githubSignature("default-secret", body),
	})

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !called {
		t.Error("expected trigger to be called using the default secret")
	}
}

func TestServeWebhookGitlabTokenCompare(t *testing.T) {
	target := model.ResourceTarget{Kind: model.KindStack, Id: "web"}
	resources := &fakeResources{byTarget: map[model.ResourceTarget]*model.Resource{
		target: stackResource("web", "shh", "main"),
	}}
	trigger := func(ctx context.Context, t model.ResourceTarget, action string) (*model.Update, error) {
		return &model.Update{Id: "upd-1"}, nil
	}
	h := newTestHandler(resources, trigger)

	body := githubBody("main")
	ok := doWebhook(t, h, "gitlab", "Stack", "web", "pull", body, map[string]string{"X-Gitlab-Token": "shh"})
	if ok.Code != http.StatusAccepted {
		t.Fatalf("correct token: status = %d", ok.Code)
	}
	bad := doWebhook(t, h, "gitlab", "Stack", "web", "pull", body, map[string]string{"X-Gitlab-Token": "nope"})
	if bad.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", bad.Code)
	}
}

func TestServeWebhookUnknownResourceNotFound(t *testing.T) {
	resources := &fakeResources{byTarget: map[model.ResourceTarget]*model.Resource{}}
	trigger := func(ctx context.Context, t model.ResourceTarget, action string) (*model.Update, error) {
		return &model.Update{Id: "upd-1"}, nil
	}
	h := newTestHandler(resources, trigger)

	body := githubBody("main")
	rec := doWebhook(t, h, "github", "Stack", "missing", "pull", body, map[string]string{
		"X-Hub-Signature-256": githubSignature("default-secret", body),
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// TestServeWebhookSerializesPerResource proves two concurrent webhooks
// for the same target never run their trigger concurrently.
func TestServeWebhookSerializesPerResource(t *testing.T) {
	targetA := model.ResourceTarget{Kind: model.KindStack, Id: "web"}
	resources := &fakeResources{byTarget: map[model.ResourceTarget]*model.Resource{
		targetA: stackResource("web", "shh", "__ANY__"),
	}}

	var (
		inFlight    int32
		maxObserved int32
	)
	trigger := func(ctx context.Context, t model.ResourceTarget, action string) (*model.Update, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxObserved)
			if n <= cur || atomic.CompareAndSwapInt32(&maxObserved, cur, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &model.Update{Id: "upd"}, nil
	}
	h := newTestHandler(resources, trigger)

	body := githubBody("main")
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doWebhook(t, h, "github", "Stack", "web", "pull", body, map[string]string{
				"X-Hub-Signature-256": githubSignature("shh", body),
			})
		}()
	}
	wg.Wait()

	if maxObserved > 1 {
		t.Fatalf("observed %d concurrent triggers for the same resource, want <= 1", maxObserved)
	}
}
