package export

import (
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
)

var unsafeRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// FileStem turns a query into a safe file name stem, replacing every
// character outside [A-Za-z0-9_-] with an underscore.
func FileStem(query string) string {
	stem := unsafeRe.ReplaceAllString(query, "_")
	if stem == "" {
		return "results"
	}
	return stem
}

// DatedDir creates and returns <root>/<YYYY-MM-DD> for now.
func DatedDir(root string, now time.Time) (string, error) {
	dir := filepath.Join(root, now.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "export: create %s", dir)
	}
	return dir, nil
}

// Paths holds the output files for one query.
type Paths struct {
	CSV  string
	XLSX string
}

// PathsFor returns the CSV and XLSX paths for query inside dir.
func PathsFor(dir, query string) Paths {
	stem := FileStem(query)
	return Paths{
		CSV:  filepath.Join(dir, stem+".csv"),
		XLSX: filepath.Join(dir, stem+".xlsx"),
	}
}
