package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/pairmatch/pairmatch/internal/config"
	"github.com/pairmatch/pairmatch/internal/engine"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert is one firing or resolved rule.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	RunID      string     `json:"run_id"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // firing | resolved
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates rules against runs. It is safe for concurrent use.
type Engine struct {
	rules    []rule
	webhooks []config.WebhookConfig
	client   *http.Client
	now      func() time.Time // injectable for deterministic tests

	mu       sync.Mutex
	active   map[string]*Alert // by rule name
	lastFire map[string]time.Time
	history  []*Alert
	wg       sync.WaitGroup
}

// New builds an Engine, rejecting rules whose condition does not parse.
// An Engine without rules is valid; Evaluate is then a no-op.
func New(cfg config.AlertsConfig) (*Engine, error) {
	e := &Engine{
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
	}
	for _, r := range cfg.Rules {
		c, err := parseCondition(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("alerts: rule %q: %w", r.Name, err)
		}
		e.rules = append(e.rules, rule{AlertRule: r, cond: c})
	}
	return e, nil
}

// Evaluate tests every rule against run. Newly firing and newly resolved
// alerts are delivered to the webhooks in the background.
func (e *Engine) Evaluate(run *engine.Run) {
	if len(e.rules) == 0 || run.Result == nil {
		return
	}

	now := e.now()
	for _, r := range e.rules {
		fires, value := r.cond.eval(run.Result)

		e.mu.Lock()
		var notify *Alert
		a, firing := e.active[r.Name]
		switch {
		case fires && !firing:
			cooldown := r.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if last, ok := e.lastFire[r.Name]; ok && now.Sub(last) < cooldown {
				break
			}
			sev := r.Severity
			if sev == "" {
				sev = "warning"
			}
			a = &Alert{
				ID:       fmt.Sprintf("%s:%d", r.Name, now.UnixNano()),
				RuleName: r.Name,
				RunID:    run.ID,
				Severity: sev,
				Value:    value,
				Message:  fmt.Sprintf("[%s] %s fired on run %s: %s (value %.2f)", sev, r.Name, run.ID, r.Condition, value),
				FiredAt:  now,
				State:    "firing",
			}
			e.active[r.Name] = a
			e.lastFire[r.Name] = now
			cp := *a
			notify = &cp
			slog.Warn("alerts: fired", "rule", r.Name, "run", run.ID, "value", value, "severity", sev)

		case !fires && firing:
			resolved := now
			a.State = "resolved"
			a.ResolvedAt = &resolved
			a.RunID = run.ID
			delete(e.active, r.Name)
			e.history = append(e.history, a)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			cp := *a
			notify = &cp
			slog.Info("alerts: resolved", "rule", r.Name, "run", run.ID)
		}
		e.mu.Unlock()

		if notify != nil && len(e.webhooks) > 0 {
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				e.deliver(notify)
			}()
		}
	}
}

// Active returns the firing alerts plus those resolved within the last hour,
// newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FiredAt.Equal(out[j].FiredAt) {
			return out[i].FiredAt.After(out[j].FiredAt)
		}
		return out[i].RuleName < out[j].RuleName
	})
	return out
}

// Wait blocks until in-flight webhook deliveries finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}
