package alerter

import (
	"fmt"
	"strings"

	"github.com/komodore/core/internal/model"
)

// title renders a one-line summary used as a message title/subject by
// every backend (spec §4.10 step 3 "serialize in the alerter's format").
func title(alert model.Alert) string {
	return fmt.Sprintf("%s %s: %s", emoji(alert.Level), alert.Data.Kind, alert.Target)
}

func emoji(level model.AlertLevel) string {
	switch level {
	case model.AlertCritical:
		return "\U0001f6a8"
	case model.AlertWarning:
		return "⚠️"
	default:
		return "✅"
	}
}

// body renders the default plaintext message body, in the style of the
// teacher's notify.defaultFormat.
func body(alert model.Alert) string {
	var b strings.Builder
	b.WriteString(title(alert))
	b.WriteString("\n")
	if alert.Resolved {
		b.WriteString("Status: resolved\n")
	}
	if alert.Data.Message != "" {
		b.WriteString("Message: ")
		b.WriteString(alert.Data.Message)
		b.WriteString("\n")
	}
	if alert.Data.Previous != "" {
		b.WriteString("Previous: ")
		b.WriteString(alert.Data.Previous)
		b.WriteString("\n")
	}
	if alert.Data.Current != "" {
		b.WriteString("Current: ")
		b.WriteString(alert.Data.Current)
		b.WriteString("\n")
	}
	if alert.Data.Metric != 0 {
		b.WriteString(fmt.Sprintf("Metric: %.2f\n", alert.Data.Metric))
	}
	return b.String()
}

// markdown renders the same content with Slack-style bold markers, the
// way the teacher's slack.go builds a distinct message from the plain one
// rather than reusing defaultFormat verbatim.
func markdown(alert model.Alert) string {
	var b strings.Builder
	b.WriteString("*" + title(alert) + "*\n")
	if alert.Data.Message != "" {
		b.WriteString(alert.Data.Message + "\n")
	}
	if alert.Data.Previous != "" && alert.Data.Current != "" {
		b.WriteString(fmt.Sprintf("%s -> %s\n", alert.Data.Previous, alert.Data.Current))
	}
	return b.String()
}
