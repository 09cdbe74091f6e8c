package extract

import "regexp"

// Extraction bounds. Blocks outside the length window are discarded before
// any heuristic runs.
const (
	MinContentChars = 100
	minCodeChars    = 20
	maxCodeChars    = 10000
)

var (
	// cmdletPattern matches Verb-Noun shaped tokens such as Get-Process.
	cmdletPattern = regexp.MustCompile(`\b[A-Z][a-z]+-[A-Z][A-Za-z]+\b`)

	// variablePattern matches PowerShell variable sigils ($name, $env:PATH).
	variablePattern = regexp.MustCompile(`\$(?:env:)?[A-Za-z_]\w*`)

	// paramBlockPattern matches a param( declaration.
	paramBlockPattern = regexp.MustCompile(`(?i)\bparam\s*\(`)

	// functionPattern matches a function definition.
	functionPattern = regexp.MustCompile(`(?i)\bfunction\s+[A-Za-z]`)

	// pipelinePattern matches a pipe into a cmdlet.
	pipelinePattern = regexp.MustCompile(`\|\s*[A-Z][a-z]+-[A-Z]`)

	// modulePattern captures module names after the usual import verbs.
	modulePattern = regexp.MustCompile(`(?i)\b(?:Import-Module|Install-Module|using\s+module|#Requires\s+-Modules?)\s+([A-Za-z][\w.]*)`)

	// functionNamePattern captures the name of the first defined function.
	functionNamePattern = regexp.MustCompile(`(?i)\bfunction\s+([A-Za-z][\w-]*)`)

	whitespacePattern = regexp.MustCompile(`[ \t]+`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// commonCmdlets are frequent cmdlets whose presence alone marks a block as
// PowerShell even when the Verb-Noun shape is lost to formatting.
var commonCmdlets = []string{
	"Get-Process",
	"Get-Service",
	"Get-ChildItem",
	"Get-Content",
	"Set-Location",
	"Write-Host",
	"Write-Output",
	"Invoke-Command",
	"Invoke-WebRequest",
	"New-Item",
	"Remove-Item",
	"Import-Module",
	"Select-Object",
	"Where-Object",
	"ForEach-Object",
}

// looksLikePowerShell applies a recall-biased filter: false positives are
// acceptable, false negatives are not.
func looksLikePowerShell(code string) bool {
	if cmdletPattern.MatchString(code) {
		return true
	}
	if variablePattern.MatchString(code) {
		return true
	}
	if paramBlockPattern.MatchString(code) {
		return true
	}
	if functionPattern.MatchString(code) {
		return true
	}
	if pipelinePattern.MatchString(code) {
		return true
	}
	for _, cmdlet := range commonCmdlets {
		if containsFold(code, cmdlet) {
			return true
		}
	}
	return false
}
