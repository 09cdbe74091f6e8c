package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Working with Services</title><style>.x { color: red }</style></head>
<body>
<nav><a href="/nav-only">Navigation</a></nav>
<header>Site header boilerplate</header>
<main>
<h1>Working with Services</h1>
<p>This guide explains how to inspect and restart Windows services using
PowerShell. The Get-Service cmdlet lists services; Restart-Service restarts
them. Use the pipeline to combine both.</p>
<pre>Get-Service -Name Spooler | Restart-Service -Force</pre>
<pre>function Restart-Spooler {
    param([string]$Name = "Spooler")
    Restart-Service -Name $Name -Force
}</pre>
<pre>x</pre>
<pre>SELECT id, name FROM services WHERE state = 'running' ORDER BY name LIMIT 10;</pre>
<p>Install the helper first: Import-Module ServiceTools</p>
<a href="advanced">Advanced topics</a>
<a href="https://other.example.org/external">External</a>
<a href="#top">Top</a>
</main>
<footer>Footer boilerplate</footer>
<script>console.log("hi")</script>
</body>
</html>`

func TestExtractText(t *testing.T) {
	t.Parallel()

	content, err := New().Extract("https://docs.example.com/services/intro", []byte(samplePage))
	require.NoError(t, err)

	assert.Equal(t, "Working with Services", content.Title)
	assert.Equal(t, []string{"Working with Services"}, content.Headings)
	assert.Contains(t, content.Text, "inspect and restart Windows services")
	assert.NotContains(t, content.Text, "console.log")
	assert.NotContains(t, content.Text, "Footer boilerplate")
	assert.NotContains(t, content.Text, "color: red")
	assert.False(t, content.TooShort())
}

func TestExtractCodeBlocks(t *testing.T) {
	t.Parallel()

	content, err := New().Extract("https://docs.example.com/services/intro", []byte(samplePage))
	require.NoError(t, err)

	require.Len(t, content.CodeBlocks, 2, "short block and SQL block should be filtered")
	assert.Contains(t, content.CodeBlocks[0], "Get-Service -Name Spooler")
	assert.Contains(t, content.CodeBlocks[1], "function Restart-Spooler")
}

func TestExtractCommandAndModuleSets(t *testing.T) {
	t.Parallel()

	content, err := New().Extract("https://docs.example.com/services/intro", []byte(samplePage))
	require.NoError(t, err)

	assert.Contains(t, content.Commands, "Get-Service")
	assert.Contains(t, content.Commands, "Restart-Service")
	assert.Contains(t, content.Commands, "Import-Module")
	assert.Equal(t, []string{"ServiceTools"}, content.Modules)
}

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	content, err := New().Extract("https://docs.example.com/services/intro", []byte(samplePage))
	require.NoError(t, err)

	assert.Contains(t, content.Links, "https://docs.example.com/services/advanced")
	assert.Contains(t, content.Links, "https://other.example.org/external")
	for _, link := range content.Links {
		assert.NotContains(t, link, "#")
	}
}

func TestTooShortPage(t *testing.T) {
	t.Parallel()

	content, err := New().Extract("https://docs.example.com/empty", []byte("<html><body><p>Tiny.</p></body></html>"))
	require.NoError(t, err)
	assert.True(t, content.TooShort())
}

func TestLooksLikePowerShellHeuristics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code string
		want bool
	}{
		{name: "verb-noun cmdlet", code: "Get-ChildItem -Path C:\\Logs -Recurse", want: true},
		{name: "variable sigil", code: "$total = 1; $total + 41 # arithmetic", want: true},
		{name: "param block", code: "param([int]$Count = 10) # entry point", want: true},
		{name: "function keyword", code: "function doThing { 'works even lowercase' }", want: true},
		{name: "pipeline", code: "dir | Sort-Object Length -Descending", want: true},
		{name: "plain prose", code: "This sentence is long enough but has no shell in it.", want: false},
		{name: "python", code: "def main():\n    print('hello world')\n", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, looksLikePowerShell(tc.code))
		})
	}
}

func TestFunctionName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Restart-Spooler", FunctionName("function Restart-Spooler { }"))
	assert.Equal(t, "Get-Thing", FunctionName("Get-Thing -Id 4 | Out-Null"))
	assert.Empty(t, FunctionName("plain text only"))
}

func TestCodeBlockLengthBounds(t *testing.T) {
	t.Parallel()

	huge := "<pre>$x = '" + strings.Repeat("a", maxCodeChars) + "'</pre>"
	content, err := New().Extract("https://docs.example.com/big", []byte("<html><body>"+huge+"</body></html>"))
	require.NoError(t, err)
	assert.Empty(t, content.CodeBlocks)
}
