package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/creator-credit/internal/config"
)

// minSample is the number of evaluations below which rate alerts stay quiet.
const minSample = 5

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailureRate         AlertType = "evaluation_failure_rate"
	AlertInvalidDecisionRate AlertType = "invalid_decision_rate"
	AlertExposure            AlertType = "approved_exposure"
)

// Alert is one breached threshold, posted as JSON to the webhook.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// rule is a single threshold check. breached returns nil when the snapshot is
// within bounds.
type rule struct {
	typ      AlertType
	severity string
	breached func(snap *MetricsSnapshot, cfg config.MonitoringConfig) (msg string, details map[string]any)
}

var rules = []rule{
	{
		typ:      AlertFailureRate,
		severity: "high",
		breached: func(s *MetricsSnapshot, cfg config.MonitoringConfig) (string, map[string]any) {
			// Oracle outages and missing channel data both land here.
			if s.Total < minSample || cfg.FailureRateThreshold <= 0 || s.FailureRate <= cfg.FailureRateThreshold {
				return "", nil
			}
			return fmt.Sprintf("Evaluation failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d in last %dh)",
				s.FailureRate*100, cfg.FailureRateThreshold*100, s.Failed, s.Total, s.LookbackHours),
				map[string]any{"failure_rate": s.FailureRate, "threshold": cfg.FailureRateThreshold, "failed": s.Failed, "total": s.Total}
		},
	},
	{
		typ:      AlertInvalidDecisionRate,
		severity: "medium",
		breached: func(s *MetricsSnapshot, cfg config.MonitoringConfig) (string, map[string]any) {
			if s.Total < minSample || cfg.InvalidDecisionThreshold <= 0 || s.InvalidDecisionRate <= cfg.InvalidDecisionThreshold {
				return "", nil
			}
			return fmt.Sprintf("Invalid decision rate %.1f%% exceeds threshold %.1f%% (%d of %d in last %dh)",
				s.InvalidDecisionRate*100, cfg.InvalidDecisionThreshold*100, s.InvalidDecision, s.Total, s.LookbackHours),
				map[string]any{"invalid_decision_rate": s.InvalidDecisionRate, "threshold": cfg.InvalidDecisionThreshold, "invalid": s.InvalidDecision}
		},
	},
	{
		typ:      AlertExposure,
		severity: "high",
		breached: func(s *MetricsSnapshot, cfg config.MonitoringConfig) (string, map[string]any) {
			if cfg.ExposureThreshold <= 0 || s.ApprovedAmount <= cfg.ExposureThreshold {
				return "", nil
			}
			return fmt.Sprintf("Approved credit %d exceeds threshold %d in last %dh",
				s.ApprovedAmount, cfg.ExposureThreshold, s.LookbackHours),
				map[string]any{"approved_amount": s.ApprovedAmount, "threshold": cfg.ExposureThreshold, "approved": s.Approved}
		},
	},
}

// Alerter turns a MetricsSnapshot into alerts and posts them to a webhook.
// A zero threshold disables its check.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter returns an Alerter for cfg.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

// Evaluate returns the alerts for every breached threshold, in rule order.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()
	for _, r := range rules {
		msg, details := r.breached(snap, a.cfg)
		if details == nil {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      r.typ,
			Severity:  r.severity,
			Message:   msg,
			Details:   details,
			Timestamp: now,
		})
	}
	return alerts
}

// SendAlerts posts each alert to the webhook and returns how many were
// accepted. Delivery failures are logged, not returned.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		return 0
	}

	var sent int
	for _, alert := range alerts {
		log := zap.L().With(zap.String("type", string(alert.Type)), zap.String("severity", alert.Severity))
		if err := a.post(ctx, alert); err != nil {
			log.Error("monitoring: alert delivery failed", zap.Error(err))
			continue
		}
		log.Info("monitoring: alert sent")
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: encode alert")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusBadRequest {
		return eris.Errorf("monitoring: webhook status %d", resp.StatusCode)
	}
	return nil
}
