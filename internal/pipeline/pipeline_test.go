package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nin-ia/leadcard/internal/agent"
	"github.com/nin-ia/leadcard/internal/model"
)

// scriptedRunner returns one canned response per stage, keyed by definition
// name, and records the prompts it received.
type scriptedRunner struct {
	responses map[string]string
	errs      map[string]error
	prompts   map[string]string
}

func (r *scriptedRunner) RunStage(_ context.Context, def agent.Definition, userMessage string) (string, error) {
	if r.prompts == nil {
		r.prompts = make(map[string]string)
	}
	r.prompts[def.Name] = userMessage
	if err := r.errs[def.Name]; err != nil {
		return "", err
	}
	return r.responses[def.Name], nil
}

type fakeExtractor struct {
	text   string
	err    error
	images [][]byte
}

func (f *fakeExtractor) ExtractCardText(_ context.Context, image []byte) (string, error) {
	f.images = append(f.images, image)
	return f.text, f.err
}

// memStore records inserts; the other Store methods are unused by the pipeline.
type memStore struct {
	inserted []model.Lead
	insertErr error
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) InsertLead(_ context.Context, lead *model.Lead) (int64, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.inserted = append(m.inserted, *lead)
	return int64(len(m.inserted)), nil
}
func (m *memStore) ListLeads(context.Context, int) ([]model.Lead, error) { return nil, nil }
func (m *memStore) SeedDummyLead(context.Context) (int64, error)         { return 0, nil }
func (m *memStore) ResetLeads(context.Context) (int64, error)            { return 0, nil }
func (m *memStore) Close() error                                         { return nil }

func loadDefs(t *testing.T) *agent.Registry {
	t.Helper()
	defs, err := agent.LoadDefinitions("")
	require.NoError(t, err)
	return defs
}

func happyRunner(t *testing.T) *scriptedRunner {
	t.Helper()
	defs := loadDefs(t)
	return &scriptedRunner{
		responses: map[string]string{
			defs.Extractor.Name: `value="Nom: Dupont\nPrénom: Jean\nTéléphone: 0612345678\nMail: jean.dupont@exemple.fr\n\nL'entreprise Exemple SARL est active dans le conseil.")`,
			defs.Matcher.Name:   "Les <b>formations</b> Nin-IA répondent au besoin du client.",
			defs.Emailer.Name:   "Bonjour Jean,\n\nSuite à notre échange...\n\nCordialement, Emeline Boulange, Co-dirigeante de Nin-IA",
		},
	}
}

func validInput() CaptureInput {
	return CaptureInput{
		OCRText:       "Jean Dupont\nExemple SARL\n06 12 34 56 78",
		Qualification: model.QualificationFormations,
		Note:          "Rencontré au salon IA Paris",
	}
}

func TestPipelineRun_HappyPath(t *testing.T) {
	defs := loadDefs(t)
	runner := happyRunner(t)
	st := &memStore{}
	p := New(runner, defs, &fakeExtractor{}, st)

	res, err := p.Run(context.Background(), validInput())
	require.NoError(t, err)

	// Stage outputs are normalized before storage and reuse.
	wantStage1 := "Nom: Dupont\nPrénom: Jean\nTéléphone: 0612345678\nMail: jean.dupont@exemple.fr\n\nL'entreprise Exemple SARL est active dans le conseil."
	assert.Equal(t, wantStage1, res.Lead.Agent1)
	assert.Equal(t, "Les formations Nin-IA répondent au besoin du client.", res.Lead.Agent2)
	assert.Contains(t, res.Lead.Agent3, "Bonjour Jean")

	assert.Equal(t, model.LeadFields{
		Nom:       "Dupont",
		Prenom:    "Jean",
		Telephone: "0612345678",
		Mail:      "jean.dupont@exemple.fr",
	}, res.Lead.Fields)

	assert.Equal(t, model.QualificationFormations, res.Lead.Qualification)
	assert.Equal(t, "Rencontré au salon IA Paris", res.Lead.Note)
	assert.Equal(t, int64(1), res.Lead.ID)
	require.Len(t, st.inserted, 1)

	require.Len(t, res.Stages, 3)
	assert.Equal(t, "extraction", res.Stages[0].Stage)
	assert.Equal(t, wantStage1, res.Stages[0].Normalized)
	assert.NotEqual(t, res.Stages[0].Raw, res.Stages[0].Normalized)
}

func TestPipelineRun_PromptsCarryContext(t *testing.T) {
	defs := loadDefs(t)
	runner := happyRunner(t)
	p := New(runner, defs, &fakeExtractor{}, &memStore{})

	_, err := p.Run(context.Background(), validInput())
	require.NoError(t, err)

	// Stage 1 sees the OCR text; stage 2 sees stage 1's output; stage 3 sees both.
	assert.Contains(t, runner.prompts[defs.Extractor.Name], "Jean Dupont\nExemple SARL")
	assert.Contains(t, runner.prompts[defs.Extractor.Name], "Qualification : Mise en avant de la formation")
	assert.Contains(t, runner.prompts[defs.Matcher.Name], "Nom: Dupont")
	assert.Contains(t, runner.prompts[defs.Emailer.Name], "Nom: Dupont")
	assert.Contains(t, runner.prompts[defs.Emailer.Name], "Les formations Nin-IA")
	assert.Contains(t, runner.prompts[defs.Emailer.Name], "Bonjour [prénom]")
}

func TestPipelineRun_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CaptureInput)
		wantErr string
	}{
		{"empty note", func(in *CaptureInput) { in.Note = "  " }, "note is required"},
		{"invalid qualification", func(in *CaptureInput) { in.Qualification = "Autre" }, "invalid qualification"},
		{"empty ocr text", func(in *CaptureInput) { in.OCRText = "\n " }, "empty ocr text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptedRunner{}
			st := &memStore{}
			p := New(runner, loadDefs(t), &fakeExtractor{}, st)

			in := validInput()
			tt.mutate(&in)

			_, err := p.Run(context.Background(), in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			// Rejected before any agent call or write.
			assert.Empty(t, runner.prompts)
			assert.Empty(t, st.inserted)
		})
	}
}

func TestPipelineRun_StageFailureAborts(t *testing.T) {
	defs := loadDefs(t)
	runner := happyRunner(t)
	runner.errs = map[string]error{defs.Matcher.Name: eris.New("run poll timed out")}
	st := &memStore{}
	p := New(runner, defs, &fakeExtractor{}, st)

	_, err := p.Run(context.Background(), validInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage matching")

	// Stage 3 never ran and nothing was persisted.
	assert.NotContains(t, runner.prompts, defs.Emailer.Name)
	assert.Empty(t, st.inserted)
}

func TestPipelineRun_PersistFailure(t *testing.T) {
	st := &memStore{insertErr: eris.New("disk full")}
	p := New(happyRunner(t), loadDefs(t), &fakeExtractor{}, st)

	_, err := p.Run(context.Background(), validInput())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist lead")
}

func TestPipelineCapture(t *testing.T) {
	ext := &fakeExtractor{text: "Jean Dupont\nExemple SARL"}
	st := &memStore{}
	p := New(happyRunner(t), loadDefs(t), ext, st)

	image := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	res, err := p.Capture(context.Background(), image, model.QualificationFormations, "salon")
	require.NoError(t, err)

	require.Len(t, ext.images, 1)
	assert.Equal(t, image, ext.images[0])
	assert.Equal(t, "Jean Dupont\nExemple SARL", res.Lead.OCRText)
	require.Len(t, st.inserted, 1)
}

func TestPipelineCapture_EmptyImage(t *testing.T) {
	ext := &fakeExtractor{}
	p := New(&scriptedRunner{}, loadDefs(t), ext, &memStore{})

	_, err := p.Capture(context.Background(), nil, model.QualificationFormations, "salon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty card image")
	assert.Empty(t, ext.images)
}

func TestPipelineCapture_NoUsableText(t *testing.T) {
	ext := &fakeExtractor{text: ""}
	st := &memStore{}
	p := New(&scriptedRunner{}, loadDefs(t), ext, st)

	_, err := p.Capture(context.Background(), []byte{0xFF, 0xD8}, model.QualificationFormations, "salon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable text")
	assert.Empty(t, st.inserted)
}
