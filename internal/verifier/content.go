package verifier

import (
	"context"
	"fmt"
	"strings"

	"earlyadopters/internal/config"
	"earlyadopters/internal/content"
)

// ContentVerifier checks the submitted text against the activity detail.
type ContentVerifier struct {
	Mode  string
	Store content.Store
}

func NewContentVerifier(mode string, store content.Store) (*ContentVerifier, error) {
	switch mode {
	case config.ModeAny, config.ModeNonEmpty:
	case config.ModeContains, config.ModeEquals:
		if store == nil {
			return nil, fmt.Errorf("content mode %s needs a content store", mode)
		}
	default:
		return nil, fmt.Errorf("unknown content mode %q", mode)
	}
	return &ContentVerifier{Mode: mode, Store: store}, nil
}

func (v *ContentVerifier) Name() string { return "content:" + v.Mode }

func (v *ContentVerifier) Verify(ctx context.Context, s Subject) (bool, error) {
	got := normalize(s.Content)
	switch v.Mode {
	case config.ModeAny:
		return true, nil
	case config.ModeNonEmpty:
		return got != "", nil
	}
	detail, err := content.ReadDetail(ctx, v.Store, s.DetailURI)
	if err != nil {
		return false, fmt.Errorf("read activity detail: %w", err)
	}
	want := normalize(detail)
	if v.Mode == config.ModeEquals {
		return got == want, nil
	}
	return want != "" && strings.Contains(got, want), nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
