package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/mapscrap/internal/model"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "businesses"

// Positions of the numeric columns in Columns.
const (
	colReviewsCount   = 7
	colReviewsAverage = 8
	colLatitude       = 9
	colLongitude      = 10
)

// WriteXLSX writes businesses to a single-sheet workbook at path. Numeric
// columns are written as number cells.
func WriteXLSX(path string, businesses []model.Business) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range Columns {
		header.AddCell().SetString(col)
	}

	for _, b := range businesses {
		row := sheet.AddRow()
		for i, v := range Row(b) {
			cell := row.AddCell()
			switch {
			case v == "":
				cell.SetString("")
			case i == colReviewsCount:
				cell.SetInt(*b.ReviewsCount)
			case i == colReviewsAverage:
				cell.SetFloat(*b.ReviewsAverage)
			case i == colLatitude:
				cell.SetFloat(*b.Latitude)
			case i == colLongitude:
				cell.SetFloat(*b.Longitude)
			default:
				cell.SetString(v)
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// ReadXLSX reads the businesses sheet of a workbook written by WriteXLSX.
func ReadXLSX(path string) ([]model.Business, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: open %s", path)
	}
	sheet, ok := f.Sheet[SheetName]
	if !ok {
		if len(f.Sheets) == 0 {
			return nil, eris.Errorf("export: %s has no sheets", path)
		}
		sheet = f.Sheets[0]
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	header := rowStrings(sheet.Rows[0])
	out := make([]model.Business, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		out = append(out, FromRow(header, rowStrings(row)))
	}
	return out, nil
}

func rowStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		cells[i] = c.String()
	}
	return cells
}
