// Package extract parses documentation HTML into plain text, candidate
// PowerShell code blocks, and tag-bearing token sets.
package extract

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/psdocs/doc-harvester/internal/harvest"
)

// Content is everything pulled from one page.
type Content struct {
	Title      string
	Text       string
	Headings   []string
	CodeBlocks []string
	Commands   []string
	Modules    []string
	Links      []string
}

// TooShort reports whether the page carried too little prose to be worth a
// document. The walker treats this as "nothing to crawl here", not an error.
func (c Content) TooShort() bool {
	return len(c.Text) < MinContentChars
}

// Extractor parses HTML pages. It holds no state and is safe for concurrent
// use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// nonContentSelector lists elements stripped before text derivation.
const nonContentSelector = "script, style, noscript, nav, header, footer, aside, form"

// contentSelectors are tried in order for the primary content container
// before falling back to the whole body.
var contentSelectors = []string{"main", "article", "[role=main]", "#content", ".content", ".documentation"}

// Extract parses html fetched from pageURL.
func (e *Extractor) Extract(pageURL string, html []byte) (Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Content{}, fmt.Errorf("parse html: %w", err)
	}

	var out Content
	out.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if out.Title == "" {
		out.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	out.Links = collectLinks(doc, pageURL)
	out.Headings = collectHeadings(doc)
	out.CodeBlocks = collectCodeBlocks(doc)

	doc.Find(nonContentSelector).Remove()
	out.Text = collapseWhitespace(primaryContainer(doc).Text())

	out.Commands = collectCommands(out.Text, out.CodeBlocks)
	out.Modules = collectModules(out.Text, out.CodeBlocks)
	return out, nil
}

func primaryContainer(doc *goquery.Document) *goquery.Selection {
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	return doc.Find("body")
}

func collectLinks(doc *goquery.Document, pageURL string) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved := harvest.ResolveLink(pageURL, href)
		if resolved == "" || resolved == pageURL {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})
	return links
}

func collectHeadings(doc *goquery.Document) []string {
	var headings []string
	doc.Find("h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			headings = append(headings, text)
		}
	})
	return headings
}

func collectCodeBlocks(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var blocks []string
	keep := func(sel *goquery.Selection) {
		code := strings.TrimSpace(sel.Text())
		if len(code) < minCodeChars || len(code) > maxCodeChars {
			return
		}
		if !looksLikePowerShell(code) {
			return
		}
		if _, dup := seen[code]; dup {
			return
		}
		seen[code] = struct{}{}
		blocks = append(blocks, code)
	}
	doc.Find("pre").Each(func(_ int, sel *goquery.Selection) { keep(sel) })
	// Inline <code> outside <pre> occasionally carries full one-liners.
	doc.Find("code").Each(func(_ int, sel *goquery.Selection) {
		if sel.ParentsFiltered("pre").Length() > 0 {
			return
		}
		keep(sel)
	})
	return blocks
}

// FunctionName returns the first declared function name in a code block, or
// the first cmdlet-shaped token, or empty.
func FunctionName(code string) string {
	if m := functionNamePattern.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return cmdletPattern.FindString(code)
}

func collectCommands(text string, codeBlocks []string) []string {
	set := make(map[string]struct{})
	for _, src := range append([]string{text}, codeBlocks...) {
		for _, token := range cmdletPattern.FindAllString(src, -1) {
			set[token] = struct{}{}
		}
	}
	return sortedSet(set)
}

func collectModules(text string, codeBlocks []string) []string {
	set := make(map[string]struct{})
	for _, src := range append([]string{text}, codeBlocks...) {
		for _, match := range modulePattern.FindAllStringSubmatch(src, -1) {
			set[match[1]] = struct{}{}
		}
	}
	return sortedSet(set)
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for token := range set {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = whitespacePattern.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankLinesPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
