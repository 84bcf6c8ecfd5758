// Package store persists lead records. Inserts are the only write the
// pipeline performs; seed and reset exist for the review page.
package store

import (
	"context"

	"github.com/nin-ia/leadcard/internal/model"
)

// Store defines the persistence interface for lead records.
type Store interface {
	// Migrate applies the additive schema migrations. Idempotent; called once
	// at startup before any write.
	Migrate(ctx context.Context) error

	// InsertLead appends one lead and returns its assigned id.
	InsertLead(ctx context.Context, lead *model.Lead) (int64, error)

	// ListLeads returns leads newest first.
	ListLeads(ctx context.Context, limit int) ([]model.Lead, error)

	// SeedDummyLead inserts a fixture row for review-page testing.
	SeedDummyLead(ctx context.Context) (int64, error)

	// ResetLeads deletes every lead and returns the number removed.
	ResetLeads(ctx context.Context) (int64, error)

	Close() error
}

// leadColumns is the declared schema migration list: each column is added to
// the leads table if missing, in order. Adding here is the only way the
// schema evolves.
var leadColumns = []struct {
	name    string
	sqlite  string
	pgType  string
}{
	{"ocr_text", "TEXT", "TEXT"},
	{"nom", "TEXT", "TEXT"},
	{"prenom", "TEXT", "TEXT"},
	{"telephone", "TEXT", "TEXT"},
	{"mail", "TEXT", "TEXT"},
	{"agent1", "TEXT", "TEXT"},
	{"agent2", "TEXT", "TEXT"},
	{"agent3", "TEXT", "TEXT"},
	{"qualification", "TEXT", "TEXT"},
	{"note", "TEXT", "TEXT"},
	{"timestamp", "DATETIME DEFAULT CURRENT_TIMESTAMP", "TIMESTAMPTZ NOT NULL DEFAULT now()"},
}

// dummyLead is the fixture row used by SeedDummyLead.
var dummyLead = model.Lead{
	OCRText: "Ceci est un OCR fictif",
	Fields: model.LeadFields{
		Nom:       "Doe",
		Prenom:    "John",
		Telephone: "0123456789",
		Mail:      "john.doe@example.com",
	},
	Agent1:        "Réponse fictive agent1",
	Agent2:        "Réponse fictive agent2",
	Agent3:        "Réponse fictive agent3",
	Qualification: model.QualificationSmartTalk,
	Note:          "Ceci est une note fictive",
}
