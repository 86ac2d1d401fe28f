package export

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mapscrap/internal/model"
)

// WriteCSV writes a header row followed by one row per business.
func WriteCSV(w io.Writer, businesses []model.Business) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, b := range businesses {
		if err := cw.Write(Row(b)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// ReadCSV reads a file produced by WriteCSV, or any CSV with a header row
// naming a subset of Columns. A UTF-8 byte order mark is tolerated.
func ReadCSV(r io.Reader) ([]model.Business, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "export: read csv header")
	}
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	var out []model.Business
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, eris.Wrapf(err, "export: read csv row %d", len(out)+2)
		}
		out = append(out, FromRow(header, record))
	}
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
