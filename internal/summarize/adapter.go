package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Prompt bounds keep external calls cheap and deterministic in size.
const (
	maxPromptText    = 2500
	maxSnippetChars  = 300
	maxSnippets      = 2
	maxAnalysisChars = 1500
)

// Card is the title/summary/insights result for one page. All fields are
// populated: missing model output defaults to empty insights and the General
// category, and the fallback path guarantees title and summary.
type Card struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	Category    string   `json:"category"`
	Insights    []string `json:"insights"`
	CodeExample string   `json:"codeExample"`
	// Degraded reports that the heuristic fallback produced this card.
	Degraded bool `json:"-"`
}

// ScriptCard is the per-script analysis result.
type ScriptCard struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
}

// PageInput is what the adapter summarizes.
type PageInput struct {
	URL        string
	Text       string
	Headings   []string
	CodeBlocks []string
}

// Adapter wraps the AI client with prompt construction, reply parsing, and a
// heuristic fallback. Summarize and AnalyzeScript never return errors.
type Adapter struct {
	client Client
	logger *zap.Logger
}

// NewAdapter builds an Adapter. A nil client forces the fallback path, which
// keeps the walker usable without an AI backend.
func NewAdapter(client Client, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{client: client, logger: logger}
}

// Summarize produces a card for one page. On any client or parse failure it
// degrades to heuristics; the result always has a non-empty title and
// summary.
func (a *Adapter) Summarize(ctx context.Context, in PageInput) Card {
	if a.client != nil {
		reply, err := a.client.Complete(ctx, buildPagePrompt(in))
		if err == nil {
			if card, ok := parseCard(reply); ok {
				return fillCardDefaults(card, in)
			}
			a.logger.Debug("summarizer reply had no parsable card", zap.String("url", in.URL))
		} else {
			a.logger.Debug("summarizer call failed, using fallback",
				zap.String("url", in.URL), zap.Error(err))
		}
	}
	return fallbackCard(in)
}

// AnalyzeScript names and describes one extracted script. Failures degrade
// to a heuristic name and a generic purpose.
func (a *Adapter) AnalyzeScript(ctx context.Context, code, sourceURL string) ScriptCard {
	if a.client != nil {
		reply, err := a.client.Complete(ctx, buildScriptPrompt(code))
		if err == nil {
			if card, ok := parseScriptCard(reply); ok {
				return fillScriptDefaults(card, code)
			}
		} else {
			a.logger.Debug("script analysis failed, using fallback",
				zap.String("url", sourceURL), zap.Error(err))
		}
	}
	return fallbackScriptCard(code)
}

func buildPagePrompt(in PageInput) string {
	var b strings.Builder
	b.WriteString("You are an expert PowerShell documentation analyst. ")
	b.WriteString("Analyze the following documentation page and respond with strict JSON only, using exactly these keys: ")
	b.WriteString(`"title", "summary", "category", "insights" (array of strings), "codeExample".` + "\n\n")
	fmt.Fprintf(&b, "PAGE URL: %s\n\nPAGE TEXT:\n%s\n", in.URL, truncate(in.Text, maxPromptText))
	for i, snippet := range in.CodeBlocks {
		if i >= maxSnippets {
			break
		}
		fmt.Fprintf(&b, "\nCODE SAMPLE %d:\n%s\n", i+1, truncate(snippet, maxSnippetChars))
	}
	return b.String()
}

func buildScriptPrompt(code string) string {
	var b strings.Builder
	b.WriteString("You are an expert PowerShell script analyzer. ")
	b.WriteString("Respond with strict JSON only, using exactly these keys: ")
	b.WriteString(`"name" (short script name), "purpose" (one sentence).` + "\n\nSCRIPT:\n")
	b.WriteString(truncate(code, maxAnalysisChars))
	return b.String()
}

// parseCard extracts the first well-formed JSON object from the reply,
// tolerating wrapping prose, code fences, or quotes around it.
func parseCard(reply string) (Card, bool) {
	raw, ok := firstJSONObject(reply)
	if !ok {
		return Card{}, false
	}
	var card Card
	if err := json.Unmarshal([]byte(raw), &card); err != nil {
		return Card{}, false
	}
	if strings.TrimSpace(card.Title) == "" && strings.TrimSpace(card.Summary) == "" {
		return Card{}, false
	}
	return card, true
}

func parseScriptCard(reply string) (ScriptCard, bool) {
	raw, ok := firstJSONObject(reply)
	if !ok {
		return ScriptCard{}, false
	}
	var card ScriptCard
	if err := json.Unmarshal([]byte(raw), &card); err != nil {
		return ScriptCard{}, false
	}
	if strings.TrimSpace(card.Name) == "" && strings.TrimSpace(card.Purpose) == "" {
		return ScriptCard{}, false
	}
	return card, true
}

// firstJSONObject scans for the first balanced top-level {...} span,
// respecting string literals and escapes.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func fillCardDefaults(card Card, in PageInput) Card {
	if strings.TrimSpace(card.Title) == "" {
		card.Title = fallbackTitle(in)
	}
	if strings.TrimSpace(card.Summary) == "" {
		card.Summary = fallbackSummary(in.Text, card.Title)
	}
	if strings.TrimSpace(card.Category) == "" {
		card.Category = CategoryGeneral
	}
	if card.Insights == nil {
		card.Insights = []string{}
	}
	return card
}

func fillScriptDefaults(card ScriptCard, code string) ScriptCard {
	if strings.TrimSpace(card.Name) == "" {
		card.Name = fallbackScriptName(code)
	}
	if strings.TrimSpace(card.Purpose) == "" {
		card.Purpose = fallbackScriptPurpose(code)
	}
	return card
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
