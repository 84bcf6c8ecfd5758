// Package export renders lead records to spreadsheet files.
package export

import (
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/nin-ia/leadcard/internal/model"
)

// leadHeaders mirrors the review-page column order.
var leadHeaders = []string{
	"id", "ocr_text", "nom", "prenom", "telephone", "mail",
	"agent1", "agent2", "agent3", "qualification", "note", "timestamp",
}

// WriteLeadsXLSX writes leads to w as a single-sheet workbook, header row
// first, one row per lead in the given order.
func WriteLeadsXLSX(w io.Writer, leads []model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range leadHeaders {
		header.AddCell().Value = h
	}

	for _, lead := range leads {
		row := sheet.AddRow()
		for _, v := range leadRow(lead) {
			row.AddCell().Value = v
		}
	}

	return eris.Wrap(f.Write(w), "export: write workbook")
}

func leadRow(lead model.Lead) []string {
	ts := ""
	if !lead.Timestamp.IsZero() {
		ts = lead.Timestamp.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(lead.ID, 10),
		lead.OCRText,
		lead.Fields.Nom,
		lead.Fields.Prenom,
		lead.Fields.Telephone,
		lead.Fields.Mail,
		lead.Agent1,
		lead.Agent2,
		lead.Agent3,
		string(lead.Qualification),
		lead.Note,
		ts,
	}
}
