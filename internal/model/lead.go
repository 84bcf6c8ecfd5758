package model

import "time"

// Qualification classifies how a lead should be approached. The set is fixed:
// the matching and email stages key their pitch off these values.
type Qualification string

const (
	QualificationSmartTalk  Qualification = "Smart Talk"
	QualificationFormations Qualification = "Mise en avant de la formation"
	QualificationAudits     Qualification = "Mise en avant des audits"
	QualificationModules    Qualification = "Mise en avant des modules IA"
)

// Qualifications lists every valid qualification, in display order.
var Qualifications = []Qualification{
	QualificationSmartTalk,
	QualificationFormations,
	QualificationAudits,
	QualificationModules,
}

// Valid reports whether q is one of the known qualifications.
func (q Qualification) Valid() bool {
	for _, known := range Qualifications {
		if q == known {
			return true
		}
	}
	return false
}

// LeadFields holds the contact fields parsed from the extraction stage output.
// Every field defaults to empty; a card with no phone still yields a usable lead.
type LeadFields struct {
	Nom       string `json:"nom"`
	Prenom    string `json:"prenom"`
	Telephone string `json:"telephone"`
	Mail      string `json:"mail"`
}

// Lead is one business-card prospect: the OCR source text, the parsed contact
// fields, the three stage outputs and the capture context. Immutable once inserted.
type Lead struct {
	ID            int64         `json:"id"`
	OCRText       string        `json:"ocr_text"`
	Fields        LeadFields    `json:"fields"`
	Agent1        string        `json:"agent1"` // extraction + enrichment
	Agent2        string        `json:"agent2"` // product matching
	Agent3        string        `json:"agent3"` // drafted email
	Qualification Qualification `json:"qualification"`
	Note          string        `json:"note"`
	Timestamp     time.Time     `json:"timestamp"`
}

// StageTrace records one pipeline stage's raw and normalized output so callers
// can inspect intermediate state, not just the final email.
type StageTrace struct {
	Stage      string `json:"stage"`
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
}
