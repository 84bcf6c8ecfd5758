// Package pipeline orchestrates the three-stage lead capture flow: field
// extraction with web enrichment, product matching, then email drafting. A
// stage failure aborts the whole capture; nothing is persisted partially.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nin-ia/leadcard/internal/agent"
	"github.com/nin-ia/leadcard/internal/model"
	"github.com/nin-ia/leadcard/internal/normalize"
	"github.com/nin-ia/leadcard/internal/ocr"
	"github.com/nin-ia/leadcard/internal/store"
)

// StageRunner executes one agent stage to completion and returns its final
// assistant text. agent.Runner is the production implementation.
type StageRunner interface {
	RunStage(ctx context.Context, def agent.Definition, userMessage string) (string, error)
}

// CaptureInput is a capture request with OCR already done.
type CaptureInput struct {
	OCRText       string
	Qualification model.Qualification
	Note          string
}

// Result is a persisted lead plus the per-stage raw and normalized outputs.
type Result struct {
	Lead   model.Lead
	Stages []model.StageTrace
}

// Pipeline runs captures end to end.
type Pipeline struct {
	runner    StageRunner
	defs      *agent.Registry
	extractor ocr.Extractor
	store     store.Store
}

func New(runner StageRunner, defs *agent.Registry, extractor ocr.Extractor, st store.Store) *Pipeline {
	return &Pipeline{runner: runner, defs: defs, extractor: extractor, store: st}
}

// Capture OCRs a card image and runs the full pipeline on the result.
func (p *Pipeline) Capture(ctx context.Context, image []byte, qualification model.Qualification, note string) (*Result, error) {
	if err := validateRequest(qualification, note); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, eris.New("pipeline: empty card image")
	}

	text, err := p.extractor.ExtractCardText(ctx, image)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: ocr")
	}
	if text == "" {
		return nil, eris.New("pipeline: no usable text extracted from card")
	}

	return p.Run(ctx, CaptureInput{
		OCRText:       text,
		Qualification: qualification,
		Note:          note,
	})
}

// Run executes the three agent stages over already-extracted OCR text and
// inserts the resulting lead.
func (p *Pipeline) Run(ctx context.Context, in CaptureInput) (*Result, error) {
	if err := validateRequest(in.Qualification, in.Note); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.OCRText) == "" {
		return nil, eris.New("pipeline: empty ocr text")
	}

	traceID := uuid.New().String()
	log := zap.L().With(zap.String("trace_id", traceID))
	log.Info("capture started",
		zap.String("qualification", string(in.Qualification)),
		zap.Int("ocr_chars", len(in.OCRText)))

	var stages []model.StageTrace

	stage1, err := p.runStage(ctx, log, "extraction", p.defs.Extractor,
		extractionPrompt(in), &stages)
	if err != nil {
		return nil, err
	}
	fields := normalize.ParseFields(stage1)

	stage2, err := p.runStage(ctx, log, "matching", p.defs.Matcher,
		matchingPrompt(stage1, in), &stages)
	if err != nil {
		return nil, err
	}

	stage3, err := p.runStage(ctx, log, "email", p.defs.Emailer,
		emailPrompt(stage1, stage2, in), &stages)
	if err != nil {
		return nil, err
	}

	lead := model.Lead{
		OCRText:       in.OCRText,
		Fields:        fields,
		Agent1:        stage1,
		Agent2:        stage2,
		Agent3:        stage3,
		Qualification: in.Qualification,
		Note:          in.Note,
	}

	id, err := p.store.InsertLead(ctx, &lead)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: persist lead")
	}
	lead.ID = id

	log.Info("capture complete",
		zap.Int64("lead_id", id),
		zap.String("nom", fields.Nom),
		zap.String("mail", fields.Mail))

	return &Result{Lead: lead, Stages: stages}, nil
}

func (p *Pipeline) runStage(ctx context.Context, log *zap.Logger, name string, def agent.Definition, prompt string, stages *[]model.StageTrace) (string, error) {
	raw, err := p.runner.RunStage(ctx, def, prompt)
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: stage %s", name)
	}
	cleaned := normalize.Clean(raw)
	*stages = append(*stages, model.StageTrace{Stage: name, Raw: raw, Normalized: cleaned})
	log.Info("stage complete", zap.String("stage", name), zap.Int("chars", len(cleaned)))
	return cleaned, nil
}

func validateRequest(qualification model.Qualification, note string) error {
	if strings.TrimSpace(note) == "" {
		return eris.New("pipeline: note is required")
	}
	if !qualification.Valid() {
		return eris.Errorf("pipeline: invalid qualification %q", qualification)
	}
	return nil
}

func extractionPrompt(in CaptureInput) string {
	return fmt.Sprintf(
		"Données extraites de la carte :\n"+
			"Qualification : %s\n"+
			"Note : %s\n"+
			"Texte : %s\n\n"+
			"Veuillez extraire les informations clés (Nom, Prénom, Téléphone, Mail) "+
			"et compléter par une recherche en ligne.",
		in.Qualification, in.Note, in.OCRText)
}

func matchingPrompt(stage1 string, in CaptureInput) string {
	return fmt.Sprintf(
		"Informations sur l'entreprise extraites :\n%s\n\n"+
			"Qualification : %s\n"+
			"Note : %s\n\n"+
			"Veuillez rédiger un matching entre nos produits et les besoins du client, "+
			"en mettant en avant les avantages de nos offres.",
		stage1, in.Qualification, in.Note)
}

func emailPrompt(stage1, stage2 string, in CaptureInput) string {
	return fmt.Sprintf(
		"Informations sur l'intervenant et son entreprise :\n%s\n\n"+
			"Matching de notre offre :\n%s\n\n"+
			"Qualification : %s\n"+
			"Note : %s\n\n"+
			"Veuillez rédiger un mail de relance percutant pour convertir ce lead. "+
			"Le mail doit commencer par 'Bonjour [prénom]' et se terminer par "+
			"'Cordialement, Emeline Boulange, Co-dirigeante de Nin-IA'.",
		stage1, stage2, in.Qualification, in.Note)
}
