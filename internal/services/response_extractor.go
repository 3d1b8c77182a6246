package services

import (
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// textExtractor pulls text out of one response shape. ok is false when the shape does not apply.
type textExtractor func(resp interface{}) (text string, ok bool)

// responseExtractors are tried in order; the first that applies wins
var responseExtractors = []textExtractor{
	extractDirectText,
	extractCandidateText,
	extractStringForm,
}

// ExtractResponseText returns the trimmed text carried by a provider response.
// It yields "" when no strategy finds anything.
func ExtractResponseText(resp interface{}) string {
	for _, extract := range responseExtractors {
		if text, ok := extract(resp); ok {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

type textProvider interface {
	Text() string
}

func extractDirectText(resp interface{}) (string, bool) {
	switch v := resp.(type) {
	case string:
		return v, true
	case textProvider:
		return v.Text(), true
	}
	return "", false
}

func extractCandidateText(resp interface{}) (string, bool) {
	gr, ok := resp.(*genai.GenerateContentResponse)
	if !ok {
		return "", false
	}
	if gr == nil {
		return "", true
	}
	for _, cand := range gr.Candidates {
		if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 {
			continue
		}
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
		return sb.String(), true
	}
	return "", true
}

func extractStringForm(resp interface{}) (string, bool) {
	if resp == nil {
		return "", true
	}
	return fmt.Sprint(resp), true
}
