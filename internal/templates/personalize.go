package templates

import (
	"regexp"
	"strings"
)

// Fields are the lead values available to templates.
type Fields struct {
	FirstName string
	LastName  string
	Company   string
	Email     string
	Link      string
}

const (
	fallbackFirstName = "there"
	fallbackCompany   = "your company"
)

// blank marks a placeholder that resolved to nothing until the
// surrounding spacing is tidied.
const blank = "\uE000"

var (
	blankBeforePunct = regexp.MustCompile("[ \t]*" + blank + "+[ \t]*([,.!?;:])")
	blankRun         = regexp.MustCompile("[ \t]*" + blank + "+[ \t]*")
)

// Personalize substitutes {{firstName}}, {{lastName}}, {{company}},
// {{email}} and {{link}}. Missing first name and company fall back to
// friendly defaults. Other missing values are dropped together with the
// spacing they would leave behind, so "Hi {{firstName}} {{lastName}},"
// renders "Hi there," and never "Hi there ,".
func Personalize(body string, f Fields) string {
	firstName := strings.TrimSpace(f.FirstName)
	if firstName == "" {
		firstName = fallbackFirstName
	}
	company := strings.TrimSpace(f.Company)
	if company == "" {
		company = fallbackCompany
	}

	r := strings.NewReplacer(
		"{{firstName}}", firstName,
		"{{lastName}}", orBlank(f.LastName),
		"{{company}}", company,
		"{{email}}", orBlank(f.Email),
		"{{link}}", orBlank(f.Link),
	)
	out := r.Replace(body)
	if strings.Contains(out, blank) {
		out = blankBeforePunct.ReplaceAllString(out, "$1")
		out = blankRun.ReplaceAllStringFunc(out, func(m string) string {
			if isSpace(m[0]) && isSpace(m[len(m)-1]) {
				return " "
			}
			return ""
		})
	}
	return strings.TrimSpace(out)
}

func orBlank(v string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return blank
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' }
