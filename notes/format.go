package notes

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/vitalvas/edgenotes/mux"
)

// Format defaults.
const (
	DefaultTitle    = "Edge Notes"
	DefaultSubtitle = "AI-powered content created with Edge Notes"
)

// DefaultTags label formatted documents without explicit tags.
var DefaultTags = []string{"Summary", "Notes", "AI Generated"}

var (
	bulletRe      = regexp.MustCompile(`^[-•*]\s+(.+)$`)
	numberedRe    = regexp.MustCompile(`^\d+[.)]\s+(.+)$`)
	mdHeadingRe   = regexp.MustCompile(`^(#{1,3})\s+(.+)$`)
	labelRe       = regexp.MustCompile(`(?i)^([A-Z][^:]+):\s*(.+)$`)
	punctuationRe = regexp.MustCompile(`[.!?,;:]$`)

	// strict escapes user text and strips any markup it carries.
	strict = bluemonday.StrictPolicy()
)

var documentTmpl = template.Must(template.New("document").Parse(`<div class="edge-note" style="max-width: 700px; margin: 0 auto; font-family: sans-serif; color: #1f2937; line-height: 1.6;">
  <header style="background: #1e3a5f; border-radius: 12px; padding: 24px; margin-bottom: 24px; color: white;">
    <h1 style="margin: 0 0 6px 0; font-size: 1.4rem;">{{.Title}}</h1>
    <p style="margin: 0; font-size: 14px;">{{.Subtitle}}</p>
    <div style="margin-top: 16px;">{{range .Tags}}
      <span style="display: inline-block; background: #eff6ff; color: #1e40af; padding: 4px 12px; border-radius: 4px; font-size: 12px;">{{.}}</span>{{end}}
    </div>
  </header>
  <section style="background: #f8fafc; border: 1px solid #e2e8f0; border-radius: 10px; padding: 20px 24px;">
    {{.Body}}
  </section>
  <p style="background: #fef9c3; border-left: 4px solid #eab308; padding: 14px 18px; margin-top: 20px; font-size: 14px;"><strong>Remember:</strong> This content was generated with AI assistance. Review it before sharing.</p>
  <footer style="font-size: 11px; color: #9ca3af; text-align: center; margin-top: 20px;">Created with Edge Notes</footer>
</div>`))

type formatRequest struct {
	Content  any       `json:"content"`
	Title    *string   `json:"title"`
	Subtitle *string   `json:"subtitle"`
	Tags     *[]string `json:"tags"`
}

type document struct {
	Title    string
	Subtitle string
	Tags     []string
	Body     template.HTML
}

// Format renders the content as a styled HTML fragment. It is
// deterministic and does not call the AI runner.
func (a *API) Format(c *mux.Context) (*mux.Response, error) {
	var req formatRequest
	if res, err := bind(c, &req); res != nil || err != nil {
		return res, err
	}

	content, ok := contentField(req.Content)
	if !ok {
		return errorResponse(http.StatusBadRequest, "Invalid content"), nil
	}

	doc := document{
		Title:    DefaultTitle,
		Subtitle: DefaultSubtitle,
		Tags:     DefaultTags,
		Body:     template.HTML(FormatBody(content)), //nolint:gosec // FormatBody escapes all user text.
	}

	if req.Title != nil {
		doc.Title = *req.Title
	}

	if req.Subtitle != nil {
		doc.Subtitle = *req.Subtitle
	}

	if req.Tags != nil {
		doc.Tags = *req.Tags
	}

	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, doc); err != nil {
		return errorResponse(http.StatusInternalServerError, "HTML format failed", err.Error()), nil
	}

	return mux.JSON(http.StatusOK, map[string]string{"result": buf.String()}), nil
}

// FormatBody converts plain text into HTML blocks: consecutive bullet or
// numbered lines become a list, markdown headings and short unpunctuated
// lines become headings, and everything else becomes a paragraph.
func FormatBody(content string) string {
	var (
		out  strings.Builder
		list []string
	)

	flush := func() {
		if len(list) == 0 {
			return
		}

		out.WriteString(`<ul style="margin: 8px 0 16px 0; padding-left: 24px;">`)
		for _, item := range list {
			fmt.Fprintf(&out, `<li style="margin-bottom: 8px;">%s</li>`, formatItem(item))
		}
		out.WriteString(`</ul>`)

		list = list[:0]
	}

	for line := range strings.SplitSeq(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}

		if m := bulletRe.FindStringSubmatch(trimmed); m != nil {
			list = append(list, m[1])
			continue
		}

		if m := numberedRe.FindStringSubmatch(trimmed); m != nil {
			list = append(list, m[1])
			continue
		}

		flush()

		if level, text, ok := heading(trimmed); ok {
			fmt.Fprintf(&out, `<h%d style="color: #1e3a5f; font-weight: 600;">%s</h%d>`, level, escape(text), level)
			continue
		}

		fmt.Fprintf(&out, `<p style="margin: 0 0 12px 0;">%s</p>`, escape(trimmed))
	}

	flush()

	return out.String()
}

// heading reports whether line is a markdown heading or a short line
// without trailing punctuation.
func heading(line string) (int, string, bool) {
	if m := mdHeadingRe.FindStringSubmatch(line); m != nil {
		return len(m[1]), m[2], true
	}

	n := utf8.RuneCountInString(line)
	if n > 3 && n < 60 && !punctuationRe.MatchString(line) {
		return 2, line, true
	}

	return 0, "", false
}

// formatItem emphasizes a "Label: description" prefix.
func formatItem(item string) string {
	if m := labelRe.FindStringSubmatch(item); m != nil {
		return fmt.Sprintf(`<strong style="color: #1e40af;">%s:</strong> %s`, escape(m[1]), escape(m[2]))
	}

	return escape(item)
}

func escape(s string) string {
	return strict.Sanitize(s)
}
