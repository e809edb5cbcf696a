package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/komodore/core/internal/logging"
	"github.com/komodore/core/internal/model"
)

const maxBodyBytes = 1 << 20 // 1 MB, the same limit the teacher's apiWebhook applies.

// ResourceSource fetches the target resource the webhook names.
type ResourceSource interface {
	Get(kind model.ResourceKind, id string) (*model.Resource, error)
}

// Trigger dispatches the matched Execute call. The caller (cmd/core's
// wiring) maps {action} to whatever Handler the Execution Dispatcher
// needs — this package only knows it has a URL-named action string to
// hand off, the same indirection internal/scheduler.RunFunc uses to stay
// decoupled from internal/dispatch's Handler shape.
type Trigger func(ctx context.Context, target model.ResourceTarget, action string) (*model.Update, error)

// Handler serves the Webhook Listener's HTTP surface.
type Handler struct {
	resources     ResourceSource
	trigger       Trigger
	defaultSecret string
	locks         *resourceLocks
	log           *logging.Logger
}

// New constructs a Handler. defaultSecret is the fallback the teacher's
// config loader calls webhook_default_secret, consulted when a resource
// has no custom secret of its own.
func New(resources ResourceSource, trigger Trigger, defaultSecret string, log *logging.Logger) *Handler {
	return &Handler{resources: resources, trigger: trigger, defaultSecret: defaultSecret, locks: newResourceLocks(), log: log.Component("webhook")}
}

// Register mounts the listener route on mux (spec §4.13: "Routes
// /listener/{provider}/{kind}/{id}/{action}"), using Go's stdlib
// pattern-matching ServeMux rather than a third-party router, matching
// the teacher's own Chi-free stdlib routing.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /listener/{provider}/{kind}/{id}/{action}", h.serveWebhook)
}

func (h *Handler) serveWebhook(w http.ResponseWriter, r *http.Request) {
	provider := Provider(r.PathValue("provider"))
	kind := model.ResourceKind(r.PathValue("kind"))
	id := r.PathValue("id")
	action := r.PathValue("action")

	target := model.ResourceTarget{Kind: kind, Id: id}

	resource, err := h.resources.Get(kind, id)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "resource not found")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	secret := resourceSecret(resource, h.defaultSecret)
	if !VerifySignature(provider, secret, body, r.Header) {
		h.log.Warn("webhook rejected: signature mismatch", "provider", provider, "target", target)
		writeJSONError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	branch, err := ExtractBranch(provider, body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !BranchMatches(resourceExpectedBranch(resource), branch) {
		h.log.Info("webhook ignored: branch mismatch", "target", target, "branch", branch)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "branch mismatch"})
		return
	}

	unlock := h.locks.lock(target)
	defer unlock()

	update, err := h.trigger(r.Context(), target, action)
	if err != nil {
		h.log.Error("webhook dispatch failed", "target", target, "action", action, "error", err)
		writeJSONError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "update_id": update.Id})
}

// resourceSecret reads a resource's custom webhook_secret, falling back
// to the core-wide default (spec §4.13 "against the resource's custom
// secret, falling back to the configured default").
func resourceSecret(r *model.Resource, defaultSecret string) string {
	if s, _ := r.Config["webhook_secret"].(string); s != "" {
		return s
	}
	return defaultSecret
}

// resourceExpectedBranch reads a resource's configured webhook_branch,
// or for Repo-kind resources (which have no such field) its tracked
// branch — a push webhook for a Repo is only meaningful for the branch
// the Repo actually follows.
func resourceExpectedBranch(r *model.Resource) string {
	if b, _ := r.Config["webhook_branch"].(string); b != "" {
		return b
	}
	if b, _ := r.Config["branch"].(string); b != "" {
		return b
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
