// Package normalize cleans raw assistant replies into canonical text and
// performs best-effort contact-field extraction from that text.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/nin-ia/leadcard/internal/model"
)

var (
	valueWrapperRe = regexp.MustCompile(`(?s)value="(.*?)"\)`)
	htmlTagRe      = regexp.MustCompile(`<[^>]+>`)
	labelLineRe    = regexp.MustCompile(`^\s*[-*#>\s]*([^:]+?)\s*:\s*(.+)$`)
)

// Clean strips presentation debris from a raw assistant reply: a value="..." )
// wrapper if the reply was stringified from a response object, HTML-like tags,
// and literal \n escape sequences. Idempotent.
func Clean(raw string) string {
	cleaned := raw
	if m := valueWrapperRe.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}
	cleaned = htmlTagRe.ReplaceAllString(cleaned, "")
	cleaned = strings.ReplaceAll(cleaned, `\n`, "\n")
	return strings.TrimSpace(cleaned)
}

// accentFolder decomposes to NFD, drops combining marks and recomposes, so
// "Téléphone" folds to "Telephone".
var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldLabel(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	// Labels arrive with markdown emphasis around them ("**Nom**").
	return strings.Trim(folded, "*_ \t")
}

// canonical label (accent-folded, lowercased) per contact field.
var fieldLabels = map[string]func(*model.LeadFields, string){
	"nom":       func(f *model.LeadFields, v string) { f.Nom = v },
	"prenom":    func(f *model.LeadFields, v string) { f.Prenom = v },
	"telephone": func(f *model.LeadFields, v string) { f.Telephone = v },
	"tel":       func(f *model.LeadFields, v string) { f.Telephone = v },
	"mail":      func(f *model.LeadFields, v string) { f.Mail = v },
	"email":     func(f *model.LeadFields, v string) { f.Mail = v },
}

// ParseFields extracts Nom, Prénom, Téléphone and Mail from "Label: value"
// lines. Label matching is case-insensitive and accent-tolerant; the first
// occurrence of each field wins. Missing labels leave the field empty — partial
// extraction is acceptable, review is manual downstream.
func ParseFields(text string) model.LeadFields {
	var fields model.LeadFields
	seen := make(map[string]bool, 4)

	for _, line := range strings.Split(text, "\n") {
		m := labelLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		set, ok := fieldLabels[foldLabel(m[1])]
		if !ok {
			continue
		}

		value := strings.Trim(strings.TrimSpace(m[2]), "*_")
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		key := fieldKey(m[1])
		if seen[key] {
			continue
		}
		seen[key] = true
		set(&fields, value)
	}

	return fields
}

// fieldKey collapses label aliases so "Tel" and "Téléphone" count as one field.
func fieldKey(label string) string {
	switch folded := foldLabel(label); folded {
	case "tel":
		return "telephone"
	case "email":
		return "mail"
	default:
		return folded
	}
}
