// Package services provides embedded templates for AI service prompts
package services

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	contextutils "feedbackapp/internal/utils"
)

//go:embed templates/*.tmpl
var aiTemplatesFS embed.FS

// Template names as constants
const (
	ReplyPromptTemplate             = "reply_prompt.tmpl"
	SummaryPromptTemplate           = "summary_prompt.tmpl"
	RecommendedActionPromptTemplate = "recommended_action_prompt.tmpl"
)

// Word limits requested from the model
const (
	SummaryMaxWords = 50
	ActionMaxWords  = 30
)

// AITemplateData holds data for rendering AI prompt templates
type AITemplateData struct {
	Rating           int
	Review           string
	NeedsImprovement bool // rating of 3 or below
	MaxWords         int
}

// AITemplateManager manages AI prompt templates
type AITemplateManager struct {
	templates *template.Template
}

// NewAITemplateManager creates a new template manager
func NewAITemplateManager() (result0 *AITemplateManager, err error) {
	templates, err := template.New("").ParseFS(aiTemplatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}

	return &AITemplateManager{
		templates: templates,
	}, nil
}

// RenderTemplate renders a template with the given data
func (tm *AITemplateManager) RenderTemplate(templateName string, data AITemplateData) (result0 string, err error) {
	var buf strings.Builder
	err = tm.templates.ExecuteTemplate(&buf, templateName, data)
	if err != nil {
		return "", contextutils.WrapErrorf(err, "failed to render template %s", templateName)
	}
	return strings.TrimSpace(buf.String()), nil
}

// BuildReplyPrompt renders the customer reply prompt
func (tm *AITemplateManager) BuildReplyPrompt(rating int, review string) (string, error) {
	return tm.RenderTemplate(ReplyPromptTemplate, AITemplateData{
		Rating:           rating,
		Review:           review,
		NeedsImprovement: rating <= 3,
	})
}

// BuildSummaryPrompt renders the one-sentence summary prompt
func (tm *AITemplateManager) BuildSummaryPrompt(review string) (string, error) {
	return tm.RenderTemplate(SummaryPromptTemplate, AITemplateData{
		Review:   review,
		MaxWords: SummaryMaxWords,
	})
}

// BuildRecommendedActionPrompt renders the next-step prompt
func (tm *AITemplateManager) BuildRecommendedActionPrompt(rating int, review string) (string, error) {
	return tm.RenderTemplate(RecommendedActionPromptTemplate, AITemplateData{
		Rating:   rating,
		Review:   review,
		MaxWords: ActionMaxWords,
	})
}

// MustHaveTemplates reports an error when any required template is missing
func (tm *AITemplateManager) MustHaveTemplates(names ...string) error {
	for _, name := range names {
		if tm.templates.Lookup(name) == nil {
			return fmt.Errorf("template %s not loaded", name)
		}
	}
	return nil
}
