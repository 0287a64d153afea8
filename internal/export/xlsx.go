// Package export writes the recent history as a spreadsheet, in the same
// column order the Apps Script appends rows.
package export

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadscan/internal/model"
)

// SheetName is the worksheet the history is written to.
const SheetName = "Leads"

// Header is the first row of the exported sheet.
var Header = []string{
	"Timestamp", "Name", "Company", "Notes", "Scanned By",
	"Email", "Phone", "Rating", "Products", "Sent",
}

// HistoryFile builds a workbook with one row per history entry, most recent
// first.
func HistoryFile(entries []model.HistoryEntry) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add sheet")
	}

	addRow(sheet, Header)
	for _, e := range entries {
		row := sheet.AddRow()
		for _, v := range []string{e.Timestamp, e.Name, e.Company, e.Notes, e.ScannedBy, e.Email, e.Phone} {
			row.AddCell().SetString(v)
		}
		rating := row.AddCell()
		if e.Rating > 0 {
			rating.SetInt(e.Rating)
		}
		row.AddCell().SetString(strings.Join(e.Products, ", "))
		row.AddCell().SetBool(e.Delivered)
	}
	return f, nil
}

// WriteHistory writes the workbook to w.
func WriteHistory(w io.Writer, entries []model.HistoryEntry) error {
	f, err := HistoryFile(entries)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write")
	}
	return nil
}

// SaveHistory writes the workbook to path.
func SaveHistory(path string, entries []model.HistoryEntry) error {
	f, err := HistoryFile(entries)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
