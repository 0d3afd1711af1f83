package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var messageTemplate = template.Must(template.New("message.html").ParseFS(templateFS, "templates/message.html"))

type messageEmailData struct {
	Title      string
	Paragraphs []string
}

// renderMessageHTML wraps a plain-text body in the HTML layout, one
// paragraph per blank-line separated block.
func renderMessageHTML(subject, body string) (string, error) {
	data := messageEmailData{Title: subject}
	for _, block := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			data.Paragraphs = append(data.Paragraphs, trimmed)
		}
	}

	var buf bytes.Buffer
	if err := messageTemplate.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template: %w", err)
	}
	return buf.String(), nil
}
