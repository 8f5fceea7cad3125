package usecase

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"ragchat/internal/domain"
)

//go:embed templates/*.txt
var promptTemplates embed.FS

var (
	condenseTmpl = mustTemplate("templates/condense_prompt.txt")
	systemTmpl   = mustTemplate("templates/system_prompt.txt")
)

func mustTemplate(name string) *template.Template {
	content, err := promptTemplates.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("prompt template %s: %v", name, err))
	}
	return template.Must(template.New(name).Parse(string(content)))
}

type condenseData struct {
	History  string
	Question string
}

type systemData struct {
	Topic    string
	Fallback string
	Context  string
}

// renderCondensePrompt serializes the history and follow-up question into
// the rewrite instruction.
func renderCondensePrompt(history []domain.Turn, question string) (string, error) {
	var buf bytes.Buffer
	err := condenseTmpl.Execute(&buf, condenseData{
		History:  serializeHistory(history),
		Question: question,
	})
	if err != nil {
		return "", fmt.Errorf("render condense prompt: %w", err)
	}
	return buf.String(), nil
}

// renderSystemPrompt builds the grounding system instruction with the
// retrieved passages as context.
func renderSystemPrompt(topic, fallback string, passages []domain.Passage) (string, error) {
	var buf bytes.Buffer
	err := systemTmpl.Execute(&buf, systemData{
		Topic:    topic,
		Fallback: fallback,
		Context:  serializePassages(passages),
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return buf.String(), nil
}

func serializeHistory(history []domain.Turn) string {
	var sb strings.Builder
	for _, turn := range history {
		switch turn.Speaker {
		case domain.SpeakerUser:
			sb.WriteString("User: ")
		default:
			sb.WriteString("Assistant: ")
		}
		sb.WriteString(turn.Text)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func serializePassages(passages []domain.Passage) string {
	if len(passages) == 0 {
		return "(no relevant information found)"
	}
	var sb strings.Builder
	for _, p := range passages {
		sb.WriteString(fmt.Sprintf("[%d] (source: %s)\n%s\n\n", p.Rank, p.Source, p.Content))
	}
	return strings.TrimRight(sb.String(), "\n")
}
