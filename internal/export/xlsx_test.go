package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/nin-ia/leadcard/internal/model"
)

func TestWriteLeadsXLSX(t *testing.T) {
	leads := []model.Lead{
		{
			ID:      2,
			OCRText: "Jean Dupont\nExemple SARL",
			Fields: model.LeadFields{
				Nom:       "Dupont",
				Prenom:    "Jean",
				Telephone: "0612345678",
				Mail:      "jean@exemple.fr",
			},
			Agent1:        "extraction",
			Agent2:        "matching",
			Agent3:        "mail",
			Qualification: model.QualificationModules,
			Note:          "salon",
			Timestamp:     time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		},
		{ID: 1, Qualification: model.QualificationSmartTalk},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteLeadsXLSX(&buf, leads))

	// Round-trip through a file so the workbook can be reopened and checked.
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "Leads", sheet.Name)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "id", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "timestamp", sheet.Rows[0].Cells[11].String())

	first := sheet.Rows[1]
	assert.Equal(t, "2", first.Cells[0].String())
	assert.Equal(t, "Dupont", first.Cells[2].String())
	assert.Equal(t, "jean@exemple.fr", first.Cells[5].String())
	assert.Equal(t, "Mise en avant des modules IA", first.Cells[9].String())
	assert.Equal(t, "2026-03-14T09:30:00Z", first.Cells[11].String())

	// Zero timestamp renders empty rather than the zero time.
	assert.Equal(t, "", sheet.Rows[2].Cells[11].String())
}

func TestWriteLeadsXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLeadsXLSX(&buf, nil))
	assert.NotZero(t, buf.Len(), "header-only workbook still written")
}
