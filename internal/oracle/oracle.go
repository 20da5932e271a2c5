package oracle

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/creator-credit/internal/metrics"
	"github.com/sells-group/creator-credit/internal/model"
	"github.com/sells-group/creator-credit/internal/resilience"
)

var errEmptyResponse = eris.New("oracle: empty response")

// Option configures an oracle.
type Option func(*caller)

// WithTimeout bounds each call. Zero means no extra deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *caller) {
		c.timeout = d
	}
}

// WithBreaker guards calls with b instead of a default breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *caller) {
		c.breaker = b
	}
}

// WithMetrics records call durations and failures.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *caller) {
		c.metrics = r
	}
}

// caller is the shared call path of every oracle.
type caller struct {
	name      string
	completer Completer
	timeout   time.Duration
	breaker   *resilience.Breaker
	metrics   *metrics.Recorder
}

func newCaller(name string, c Completer, opts []Option) caller {
	cl := caller{name: name, completer: c}
	for _, o := range opts {
		o(&cl)
	}
	if cl.breaker == nil {
		cl.breaker = resilience.NewBreaker(resilience.BreakerConfig{Name: name})
	}
	return cl
}

// call runs one prompt. Any failure, including an empty response, comes back
// as a *model.ScoringUnavailableError.
func (c *caller) call(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := resilience.Guard(ctx, c.breaker, func(ctx context.Context) (string, error) {
		return c.completer.Complete(ctx, Prompt{
			Oracle:    c.name,
			System:    system,
			User:      user,
			MaxTokens: maxTokens,
		})
	})
	c.metrics.OracleCall(c.name, time.Since(start), err)

	if err != nil {
		zap.L().Warn("oracle: call failed", zap.String("oracle", c.name), zap.Error(err))
		return "", &model.ScoringUnavailableError{Source: c.name, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &model.ScoringUnavailableError{Source: c.name, Err: errEmptyResponse}
	}
	return text, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
