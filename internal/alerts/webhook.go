package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// fact is one labelled value shown in chat notifications.
type fact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func facts(a *Alert) []fact {
	return []fact{
		{"Rule", a.RuleName},
		{"Run", a.RunID},
		{"State", a.State},
		{"Value", strconv.FormatFloat(a.Value, 'f', 2, 64)},
	}
}

// payload renders a for one webhook type.
func payload(kind string, a *Alert) any {
	switch kind {
	case "slack":
		fields := make([]map[string]any, 0, 4)
		for _, f := range facts(a) {
			fields = append(fields, map[string]any{"title": f.Name, "value": f.Value, "short": true})
		}
		return map[string]any{
			"text": fmt.Sprintf("%s pairmatch: %s", severityLabel(a.Severity), a.Message),
			"attachments": []map[string]any{{
				"color":  "#" + severityColor(a.Severity),
				"fields": fields,
			}},
		}
	case "teams":
		return map[string]any{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": severityColor(a.Severity),
			"summary":    a.RuleName,
			"title":      fmt.Sprintf("pairmatch %s: %s", a.State, a.RuleName),
			"text":       a.Message,
			"sections":   []map[string]any{{"facts": facts(a)}},
		}
	default:
		return map[string]any{"source": "pairmatch", "alert": a}
	}
}

// deliver posts a to every configured webhook. Failures are logged only.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			slog.Debug("alerts: webhook url unset", "type", wh.Type, "url_env", wh.URLEnv)
			continue
		}
		body, err := json.Marshal(payload(wh.Type, a))
		if err == nil {
			err = e.post(url, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "rule", a.RuleName, "run", a.RunID, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

func (e *Engine) post(url string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return ":red_circle:"
	case "warning":
		return ":warning:"
	default:
		return ":information_source:"
	}
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "D7263D"
	case "warning":
		return "F4A259"
	default:
		return "5B8E7D"
	}
}
