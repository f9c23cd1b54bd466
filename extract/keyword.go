package extract

import (
	"context"
	"strings"

	"github.com/tbxark/intakeagent/types"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// KeywordExtractor fills a topic field from keyword lists and a free-text
// field from the whole message. It never calls a model.
type KeywordExtractor struct {
	TopicField   string
	DetailField  string
	Topics       []Topic
	MinDetailLen int
}

type Topic struct {
	Name     string
	Keywords []string
}

func NewFeedbackKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{
		TopicField:   "Feedback_Topic",
		DetailField:  "Feedback_Cause_Help",
		MinDetailLen: 20,
		Topics: []Topic{
			{Name: "service", Keywords: []string{"service", "support", "staff", "agent", "representative"}},
			{Name: "product", Keywords: []string{"product", "item", "quality", "defect", "feature"}},
			{Name: "website", Keywords: []string{"website", "site", "app", "online", "page", "login", "checkout"}},
			{Name: "billing", Keywords: []string{"bill", "billing", "charge", "payment", "refund", "invoice", "price"}},
			{Name: "suggestion", Keywords: []string{"suggest", "suggestion", "idea", "improve", "recommend"}},
			{Name: "complaint", Keywords: []string{"complain", "complaint", "unhappy", "disappointed", "problem"}},
		},
	}
}

func inScope(req *types.ToolRequest, name string) bool {
	for _, f := range req.Scope {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (e *KeywordExtractor) topic(text string) string {
	title := cases.Title(language.Und, cases.NoLower)
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	for _, t := range e.Topics {
		for _, kw := range t.Keywords {
			if set[kw] {
				return title.String(t.Name)
			}
		}
	}
	original := strings.Fields(text)
	if len(original) > 3 {
		return strings.Join(original[:4], " ")
	}
	return ""
}

func (e *KeywordExtractor) Extract(ctx context.Context, req *types.ToolRequest) (Result, error) {
	out := Result{}
	text := strings.TrimSpace(req.UserInput)
	if text == "" {
		return out, nil
	}
	if e.TopicField != "" && inScope(req, e.TopicField) {
		if topic := e.topic(text); topic != "" {
			out[e.TopicField] = topic
		}
	}
	if e.DetailField != "" && inScope(req, e.DetailField) && len(text) > e.MinDetailLen {
		out[e.DetailField] = text
	}
	return out, nil
}
