// Package report renders a test run as Markdown and as sanitized HTML.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/kuitang/flightprobe/internal/errs"
)

// Status is the outcome of one step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result records one step.
type Result struct {
	Name          string
	Status        Status
	Duration      time.Duration
	Code          errs.Code
	Message       string
	ScreenshotURL string
}

// Run records one test case.
type Run struct {
	ID       string
	TestCase string
	Started  time.Time
	Finished time.Time
	Results  []Result
}

// Status is failed when any step failed, otherwise passed.
func (r Run) Status() Status {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return StatusFailed
		}
	}
	return StatusPassed
}

// Markdown renders the run as a Markdown document with one table row per step.
func Markdown(run Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", cell(orDefault(run.TestCase, "flightprobe run")))
	fmt.Fprintf(&b, "- Run: `%s`\n", strings.ReplaceAll(run.ID, "`", ""))
	fmt.Fprintf(&b, "- Status: **%s**\n", run.Status())
	if !run.Started.IsZero() {
		fmt.Fprintf(&b, "- Started: %s\n", run.Started.UTC().Format(time.RFC3339))
	}
	if !run.Finished.IsZero() && !run.Started.IsZero() {
		fmt.Fprintf(&b, "- Duration: %s\n", run.Finished.Sub(run.Started).Round(time.Millisecond))
	}
	b.WriteString("\n| # | Step | Status | Duration | Error | Screenshot |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for i, res := range run.Results {
		errText := ""
		if res.Code != "" || res.Message != "" {
			errText = cell(strings.TrimSpace(string(res.Code) + " " + res.Message))
		}
		shot := ""
		if res.ScreenshotURL != "" {
			shot = fmt.Sprintf("[png](%s)", strings.NewReplacer("(", "%28", ")", "%29", " ", "%20").Replace(res.ScreenshotURL))
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n",
			i+1, cell(res.Name), res.Status, res.Duration.Round(time.Millisecond), errText, shot)
	}
	return b.String()
}

var cellEscaper = strings.NewReplacer("|", `\|`, "<", `\<`, ">", `\>`, "`", "\\`")

// cell makes s safe inside a single Markdown table cell.
func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return cellEscaper.Replace(s)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 960px; margin: 0 auto; padding: 2rem 1rem; }
        table { width: 100%; border-collapse: collapse; }
        th, td { border: 1px solid #e0e0e0; padding: 0.4em 0.8em; text-align: left; }
        code { background: #f5f5f5; padding: 0.1em 0.3em; }
    </style>
</head>
<body class="{{.Status}}">
{{.Content}}
</body>
</html>`

var pageTemplate = template.Must(template.New("report").Parse(htmlTemplate))

type templateData struct {
	Title   string
	Status  Status
	Content template.HTML
}

// HTML renders the Markdown report to a standalone, sanitized HTML document.
func HTML(run Run) []byte {
	extensions := parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	doc := parser.NewWithExtensions(extensions).Parse([]byte(Markdown(run)))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	body := bluemonday.UGCPolicy().SanitizeBytes(markdown.Render(doc, renderer))

	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, templateData{
		Title:   orDefault(run.TestCase, "flightprobe run"),
		Status:  run.Status(),
		Content: template.HTML(body),
	})
	if err != nil {
		return []byte("<!DOCTYPE html><html><head><title>Error</title></head><body><h1>Error rendering report</h1></body></html>")
	}
	return buf.Bytes()
}
