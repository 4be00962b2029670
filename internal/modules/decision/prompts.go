package decision

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// Role is one seat in the deliberation.
type Role string

const (
	RoleTrader      Role = "trader"
	RoleRiskManager Role = "risk_manager"
	RoleExecutive   Role = "executive"
)

var systemPrompts = map[Role]string{
	RoleTrader:      "You are an expert stock trader with deep knowledge of market analysis, technical indicators, and risk management.",
	RoleRiskManager: "You are a disciplined risk manager. You protect capital and size positions conservatively.",
	RoleExecutive:   "You are the desk executive. You make the final decision and always answer in the requested format.",
}

const sentimentSystemPrompt = "You are a market analyst providing quick sentiment analysis."

var templates = template.Must(template.New("prompts").Option("missingkey=error").ParseFS(promptFiles, "prompts/*.md"))

// promptData feeds the role templates.
type promptData struct {
	Provider           string
	Persona            string
	PersonaDescription string
	Symbol             string
	Symbols            string
	Context            string
	Pitch              string
	Critique           string
}

func renderPrompt(name string, data promptData) (string, error) {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, name+".md", data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return sb.String(), nil
}
