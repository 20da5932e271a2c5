package oracle

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/creator-credit/internal/model"
)

const (
	// brandSafetyVideos is how many recent uploads the prompt includes.
	brandSafetyVideos = 10
	// maxDescriptionChars truncates each upload description.
	maxDescriptionChars = 600
)

var (
	leadingInt    = regexp.MustCompile(`^-?\d+`)
	errNoContent  = eris.New("oracle: channel has no uploads to assess")
	errNotInteger = eris.New("oracle: response is not an integer")
)

// BrandSafety scores a channel's recent uploads for advertiser risk.
type BrandSafety struct {
	caller
}

// NewBrandSafety creates a brand-safety oracle.
func NewBrandSafety(c Completer, opts ...Option) *BrandSafety {
	return &BrandSafety{caller: newCaller(model.BranchBrandSafety, c, opts)}
}

// Score returns a 0-10 brand-safety score. Out-of-range answers are clamped;
// a snapshot with no uploads or a non-integer answer is unavailable.
func (o *BrandSafety) Score(ctx context.Context, snap *model.ChannelSnapshot) (int, error) {
	if snap == nil || len(snap.Videos) == 0 {
		return 0, &model.ScoringUnavailableError{Source: o.name, Err: errNoContent}
	}

	content := make(map[string]string, brandSafetyVideos)
	for _, v := range snap.Videos[:min(brandSafetyVideos, len(snap.Videos))] {
		desc := truncate(v.Description, maxDescriptionChars)
		title := v.Title
		if title == "" {
			title = v.VideoID
		}
		content[title] = desc
	}
	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return 0, eris.Wrap(err, "oracle: marshal brand safety content")
	}

	text, err := o.call(ctx, brandSafetyPrompt, string(payload), 16)
	if err != nil {
		return 0, err
	}
	return parseBrandSafety(text)
}

func parseBrandSafety(text string) (int, error) {
	m := leadingInt.FindString(text)
	if m == "" {
		return 0, &model.ScoringUnavailableError{Source: model.BranchBrandSafety, Err: eris.Wrapf(errNotInteger, "got %q", text)}
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, &model.ScoringUnavailableError{Source: model.BranchBrandSafety, Err: err}
	}
	return min(max(n, 0), 10), nil
}
