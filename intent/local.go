package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbxark/intakeagent/types"
)

type LocalIntentRecognizer struct {
	AffirmKeywords  []string
	DeclineKeywords []string
	SkipKeywords    []string
}

func NewLocalIntentRecognizer() *LocalIntentRecognizer {
	return &LocalIntentRecognizer{
		AffirmKeywords:  []string{"yes", "y", "yeah", "yep", "sure", "ok", "okay", "unlock", "yes please", "yes unlock"},
		DeclineKeywords: []string{"no", "n", "nope", "no thanks", "keep it", "leave it"},
		SkipKeywords:    []string{"skip", "pass", "i don't know", "i dont know", "don't know", "dont know", "not sure", "no idea", "idk", "n/a", "unknown", "skip it", "skip this"},
	}
}

func normalize(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), ".!?, ")
}

func (p *LocalIntentRecognizer) RecognizeIntent(ctx context.Context, req *types.ToolRequest) (Intent, error) {
	normalized := normalize(req.UserInput)
	if normalized == "" {
		return None, nil
	}
	for _, group := range []struct {
		intent   Intent
		keywords []string
	}{
		{Affirm, p.AffirmKeywords},
		{Decline, p.DeclineKeywords},
		{Skip, p.SkipKeywords},
	} {
		for _, keyword := range group.keywords {
			if normalized == keyword {
				return group.intent, nil
			}
		}
	}
	return None, nil
}

// FailbackRecognizer asks each recognizer in turn until one returns a definite intent.
type FailbackRecognizer struct {
	recognizers []Recognizer
}

func NewFailbackRecognizer(recognizers ...Recognizer) *FailbackRecognizer {
	return &FailbackRecognizer{recognizers: recognizers}
}

func (p *FailbackRecognizer) RecognizeIntent(ctx context.Context, req *types.ToolRequest) (Intent, error) {
	var lastErr error
	answered := false
	for _, r := range p.recognizers {
		it, err := r.RecognizeIntent(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		answered = true
		if it != None {
			return it, nil
		}
	}
	if answered || lastErr == nil {
		return None, nil
	}
	return None, fmt.Errorf("all intent recognizers failed: %w", lastErr)
}
