// Package webhook implements the Webhook Listener (C13): provider-routed
// HMAC verification, branch extraction/matching, and a per-resource
// serialized dispatch mutex. The stdlib-only `net/http` routing mirrors
// the teacher's own Chi-free stdlib-router web API layer
// (internal/web/api_webhook.go); unlike the teacher's registry-push
// parser (Docker Hub/GHCR/generic image-tag payloads), this listener
// triggers a resource's Execute operation rather than a scan, so
// provider detection and verification follow GitHub/GitLab's actual push
// webhook shape instead.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Provider names a supported webhook source (spec §4.13 "github, gitlab, …").
type Provider string

const (
	ProviderGithub Provider = "github"
	ProviderGitlab Provider = "gitlab"
)

// VerifySignature checks the inbound request's signature against secret,
// using the verification scheme each provider actually uses: GitHub signs
// the body with HMAC-SHA256 in X-Hub-Signature-256; GitLab instead sends
// the raw token in X-Gitlab-Token for a constant-time compare. Both are
// "HMAC-verify the body against the resource's custom secret" in spirit
// (spec §4.13) even though GitLab's own webhook design omits body-HMAC
// in favor of a shared-secret header.
func VerifySignature(provider Provider, secret string, body []byte, header http.Header) bool {
	if secret == "" {
		return false
	}
	switch provider {
	case ProviderGithub:
		return verifyGithub(secret, body, header.Get("X-Hub-Signature-256"))
	case ProviderGitlab:
		return subtle.ConstantTimeCompare([]byte(header.Get("X-Gitlab-Token")), []byte(secret)) == 1
	default:
		return false
	}
}

func verifyGithub(secret string, body []byte, signatureHeader string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(signatureHeader, prefix) {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, prefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// ExtractBranch pulls the pushed-to branch out of a provider's push
// payload. Both GitHub and GitLab push events carry a "ref" field of the
// form "refs/heads/<branch>".
func ExtractBranch(provider Provider, body []byte) (string, error) {
	var payload struct {
		Ref string `json:"ref"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("parse %s push payload: %w", provider, err)
	}
	const refPrefix = "refs/heads/"
	if !strings.HasPrefix(payload.Ref, refPrefix) {
		return "", fmt.Errorf("%s payload ref %q is not a branch push", provider, payload.Ref)
	}
	return strings.TrimPrefix(payload.Ref, refPrefix), nil
}

// BranchMatches reports whether a pushed branch satisfies a resource's
// configured expected branch. An unconfigured (empty) expected branch
// matches anything, as does the "__ANY__" sentinel Procedures/Actions use
// explicitly (spec §4.13, GLOSSARY).
func BranchMatches(expected, pushed string) bool {
	return expected == "" || expected == "__ANY__" || expected == pushed
}
