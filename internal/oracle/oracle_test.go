package oracle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/creator-credit/internal/metrics"
	"github.com/sells-group/creator-credit/internal/model"
	"github.com/sells-group/creator-credit/internal/resilience"
	"github.com/sells-group/creator-credit/pkg/anthropic"
	anthropicmocks "github.com/sells-group/creator-credit/pkg/anthropic/mocks"
	"github.com/sells-group/creator-credit/pkg/gemini"
)

type fakeCompleter struct {
	mu      sync.Mutex
	text    string
	err     error
	delay   time.Duration
	prompts []Prompt
}

func (f *fakeCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func snapshot() *model.ChannelSnapshot {
	return &model.ChannelSnapshot{
		ChannelID: "UC1",
		Videos: []model.VideoStats{
			{VideoID: "v1", Title: "Sourdough basics", Description: "Bread at home"},
			{VideoID: "v2", Description: "untitled upload"},
		},
	}
}

func TestBrandSafety_Score(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"plain", "3", 3},
		{"whitespace", "  7\n", 7},
		{"trailing text", "4 - mild humor", 4},
		{"above range", "14", 10},
		{"negative", "-2", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCompleter{text: tt.text}
			got, err := NewBrandSafety(fc).Score(context.Background(), snapshot())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			require.Len(t, fc.prompts, 1)
			assert.Equal(t, model.BranchBrandSafety, fc.prompts[0].Oracle)
			assert.Contains(t, fc.prompts[0].User, "Sourdough basics")
			assert.Contains(t, fc.prompts[0].User, `"v2": "untitled upload"`)
		})
	}
}

func TestBrandSafety_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		fc   *fakeCompleter
		snap *model.ChannelSnapshot
	}{
		{"no uploads", &fakeCompleter{text: "3"}, &model.ChannelSnapshot{ChannelID: "UC1"}},
		{"nil snapshot", &fakeCompleter{text: "3"}, nil},
		{"not an integer", &fakeCompleter{text: "safe"}, snapshot()},
		{"empty", &fakeCompleter{text: "   "}, snapshot()},
		{"call error", &fakeCompleter{err: errors.New("overloaded")}, snapshot()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBrandSafety(tt.fc).Score(context.Background(), tt.snap)
			require.Error(t, err)
			assert.True(t, model.IsScoringUnavailable(err))
		})
	}
}

func TestProposal_ScoreInline(t *testing.T) {
	fc := &fakeCompleter{text: "```json\n{\"risk_score\": 6.4, \"report_summary\": \"Aggressive projections\"}\n```"}
	res, err := NewProposal(fc, "").Score(context.Background(), "UC1", "Buy a camera, repay in 6 months.")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 6, res.Score)
	assert.Equal(t, "Aggressive projections", res.Summary)
	assert.Equal(t, "Buy a camera, repay in 6 months.", fc.prompts[0].User)
}

func TestProposal_ScoreFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UCaBc.txt"), []byte("Studio upgrade plan"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "UCabc.txt"), []byte("Merch line"), 0o600))

	fc := &fakeCompleter{text: `{"risk_score": 12, "report_summary": "x"}`}
	res, err := NewProposal(fc, dir).Score(context.Background(), "UCaBc", "")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 10, res.Score, "clamped")
	assert.Equal(t, "Studio upgrade plan", fc.prompts[0].User)

	_, err = NewProposal(fc, dir).Score(context.Background(), "UCabc", "")
	require.NoError(t, err)
	assert.Equal(t, "Merch line", fc.prompts[1].User, "channel IDs are case-sensitive")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"ascii", "abcdef", 3, "abc"},
		{"rune boundary", "aé", 3, "aé"},
		{"mid rune", "aé", 2, "a"},
		{"mid emoji", "ok🎬", 4, "ok"},
		{"zero", "é", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestProposal_Missing(t *testing.T) {
	fc := &fakeCompleter{text: `{"risk_score": 1}`}
	res, err := NewProposal(fc, t.TempDir()).Score(context.Background(), "UC404", "")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 0, fc.calls(), "no proposal, no call")

	res, err = NewProposal(fc, "").Score(context.Background(), "UC404", "")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestParseProposal_Errors(t *testing.T) {
	for _, text := range []string{
		"no json here",
		`{"risk_score": "high"}`,
		`{"report_summary": "missing score"}`,
	} {
		_, err := parseProposal(text)
		require.Error(t, err, text)
		assert.True(t, model.IsScoringUnavailable(err), text)
	}
}

func TestDecision_Decide(t *testing.T) {
	fc := &fakeCompleter{text: " [1, 15000]\n"}
	text, err := NewDecision(fc).Decide(context.Background(), []byte(`{"loan_requested":20000}`))
	require.NoError(t, err)
	assert.Equal(t, "[1, 15000]", text)
	assert.Equal(t, DecisionOracleName, fc.prompts[0].Oracle)
	assert.Contains(t, fc.prompts[0].System, "[approved, amount]")
	assert.Equal(t, int64(32), fc.prompts[0].MaxTokens)
}

func TestDecision_Timeout(t *testing.T) {
	fc := &fakeCompleter{text: "[1, 1]", delay: time.Second}
	_, err := NewDecision(fc, WithTimeout(10*time.Millisecond)).Decide(context.Background(), []byte("{}"))
	require.Error(t, err)
	assert.True(t, model.IsScoringUnavailable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOracle_BreakerOpens(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("503")}
	b := resilience.NewBreaker(resilience.BreakerConfig{Name: "decision", FailureThreshold: 2, Cooldown: time.Hour})
	rec := metrics.New("test")
	o := NewDecision(fc, WithBreaker(b), WithMetrics(rec))

	for i := 0; i < 3; i++ {
		_, err := o.Decide(context.Background(), []byte("{}"))
		require.Error(t, err)
		assert.True(t, model.IsScoringUnavailable(err))
	}
	assert.Equal(t, 2, fc.calls(), "third call rejected by the breaker")
	assert.Equal(t, resilience.BreakerOpen, b.State())
}

func TestAnthropicCompleter(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-5-20250929" &&
			req.MaxTokens == 16 &&
			req.System == "sys" &&
			req.Temperature != nil && *req.Temperature == 0 &&
			len(req.Messages) == 1 && req.Messages[0].Content == "user"
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "5"}},
	}, nil).Once()

	c := NewAnthropicCompleter(client, "claude-sonnet-4-5-20250929", 1024)
	text, err := c.Complete(context.Background(), Prompt{Oracle: "brand_safety", System: "sys", User: "user", MaxTokens: 16})
	require.NoError(t, err)
	assert.Equal(t, "5", text)
}

func TestAnthropicCompleter_Error(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

	_, err := NewAnthropicCompleter(client, "m", 0).Complete(context.Background(), Prompt{Oracle: "decision"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle: decision completion")
}

type fakeGemini struct {
	req gemini.GenerateRequest
}

func (f *fakeGemini) GenerateText(_ context.Context, req gemini.GenerateRequest) (*gemini.GenerateResponse, error) {
	f.req = req
	return &gemini.GenerateResponse{Text: "[0, 0]"}, nil
}

func TestGeminiCompleter(t *testing.T) {
	fg := &fakeGemini{}
	text, err := NewGeminiCompleter(fg, "gemini-2.5-flash").Complete(context.Background(), Prompt{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "[0, 0]", text)
	assert.Equal(t, "gemini-2.5-flash", fg.req.Model)
	require.NotNil(t, fg.req.Temperature)
	assert.Zero(t, *fg.req.Temperature)
}
