package summarize

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// CategoryGeneral is the catch-all category.
const CategoryGeneral = "General"

const (
	maxTitleChars     = 60
	summaryWindow     = 250
	defaultPageTitle  = "Documentation Page"
	defaultPurpose    = "PowerShell script extracted from documentation."
	defaultScriptName = "PowerShell Script"
)

// categoryKeywords maps fixed vocabulary keywords to categories. First match
// wins in slice order so the more specific buckets are checked first.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"Data Conversion", []string{"convertto", "convertfrom", "json", "csv", "xml", "data conversion"}},
	{"Pipeline", []string{"pipeline", "foreach-object", "where-object", "select-object"}},
	{"Process Management", []string{"process", "get-process", "stop-process"}},
	{"Security", []string{"security", "credential", "certificate", "encrypt", "acl", "execution policy"}},
	{"Networking", []string{"network", "dns", "tcp", "ip address", "invoke-webrequest", "http"}},
	{"Services", []string{"service", "get-service", "daemon"}},
	{"Modules", []string{"module", "import-module", "install-module", "gallery"}},
	{"File Management", []string{"file", "folder", "directory", "path", "get-childitem"}},
}

// boilerplatePattern matches chrome that documentation sites prefix content
// with; occurrences are removed from fallback summaries. Matching is
// case-insensitive on the original text so removal never slices at offsets
// computed from a lowercased copy.
var boilerplatePattern = regexp.MustCompile(`(?i)` + strings.Join([]string{
	"skip to main content",
	"table of contents",
	"in this article",
	"was this page helpful",
	"this browser is no longer supported",
}, "|"))

var (
	headingLinePattern   = regexp.MustCompile(`(?m)^#{1,4}\s+(.+)$`)
	sentenceEndPattern   = regexp.MustCompile(`[.!?](\s|$)`)
	nonWordTitlePattern  = regexp.MustCompile(`[-_]+`)
	titleCandidatePrefix = regexp.MustCompile(`^[A-Za-z0-9]`)
)

func fallbackCard(in PageInput) Card {
	title := fallbackTitle(in)
	card := Card{
		Title:    title,
		Summary:  fallbackSummary(in.Text, title),
		Category: fallbackCategory(in.Text),
		Insights: []string{},
		Degraded: true,
	}
	if len(in.CodeBlocks) > 0 {
		card.CodeExample = in.CodeBlocks[0]
	}
	return card
}

// fallbackTitle derives a title from the URL's last path segment, then from
// the page's first heading, then from the first heading-like line in the
// text, defaulting to "Documentation Page" when all are degenerate.
func fallbackTitle(in PageInput) string {
	if title := titleFromURL(in.URL); title != "" {
		return title
	}
	if len(in.Headings) > 0 {
		if heading := strings.TrimSpace(in.Headings[0]); heading != "" {
			return truncateTitle(heading)
		}
	}
	if title := titleFromHeading(in.Text); title != "" {
		return title
	}
	return defaultPageTitle
}

func titleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segment := path.Base(strings.TrimRight(u.Path, "/"))
	if segment == "." || segment == "/" || segment == "" {
		return ""
	}
	if ext := path.Ext(segment); ext != "" {
		segment = strings.TrimSuffix(segment, ext)
	}
	segment = nonWordTitlePattern.ReplaceAllString(segment, " ")
	segment = strings.TrimSpace(segment)
	if len(segment) < 3 || !titleCandidatePrefix.MatchString(segment) {
		return ""
	}
	return truncateTitle(titleCase(segment))
}

func titleFromHeading(text string) string {
	if m := headingLinePattern.FindStringSubmatch(text); m != nil {
		return truncateTitle(strings.TrimSpace(m[1]))
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) <= 80 && titleCandidatePrefix.MatchString(line) && !sentenceEndPattern.MatchString(line) {
			return truncateTitle(line)
		}
		break
	}
	return ""
}

// fallbackSummary extracts the first complete sentence found within the
// first ~250 characters of cleaned text.
func fallbackSummary(text, title string) string {
	cleaned := stripBoilerplate(text)
	window := cleaned
	if len(window) > summaryWindow {
		window = window[:summaryWindow]
	}
	if loc := sentenceEndPattern.FindStringIndex(window); loc != nil {
		sentence := strings.TrimSpace(window[:loc[0]+1])
		if len(sentence) >= 20 {
			return sentence
		}
	}
	if trimmed := strings.TrimSpace(window); len(trimmed) >= 20 {
		return trimmed
	}
	return "PowerShell documentation: " + title + "."
}

func fallbackCategory(text string) string {
	lower := strings.ToLower(text)
	for _, bucket := range categoryKeywords {
		for _, keyword := range bucket.keywords {
			if strings.Contains(lower, keyword) {
				return bucket.category
			}
		}
	}
	return CategoryGeneral
}

func fallbackScriptCard(code string) ScriptCard {
	return ScriptCard{
		Name:    fallbackScriptName(code),
		Purpose: fallbackScriptPurpose(code),
	}
}

func fallbackScriptName(code string) string {
	if name := firstIdentifier(code); name != "" {
		return name
	}
	return defaultScriptName
}

func fallbackScriptPurpose(code string) string {
	if name := firstIdentifier(code); name != "" {
		return "Runs " + name + " against the local system."
	}
	return defaultPurpose
}

var identifierPattern = regexp.MustCompile(`(?i)\bfunction\s+([A-Za-z][\w-]*)|(\b[A-Z][a-z]+-[A-Z][A-Za-z]+\b)`)

func firstIdentifier(code string) string {
	m := identifierPattern.FindStringSubmatch(code)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

func stripBoilerplate(text string) string {
	return strings.TrimSpace(boilerplatePattern.ReplaceAllString(text, ""))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		if len(word) == 0 {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

func truncateTitle(s string) string {
	if len(s) <= maxTitleChars {
		return s
	}
	cut := s[:maxTitleChars]
	if idx := strings.LastIndexByte(cut, ' '); idx > 20 {
		cut = cut[:idx]
	}
	return cut
}
