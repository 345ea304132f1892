package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
)

// Separator is the field delimiter of the intermediate files.
const Separator = '|'

const (
	xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	xlsMIME  = "application/vnd.ms-excel"
)

// Load reads a source table. The content decides the format: text is parsed
// as comma-separated values whatever the file is called, and workbooks are
// read from their first sheet. The .xlsx and .csv extensions are trusted
// when sniffing is inconclusive.
func Load(path string) (*Table, error) {
	if err := exists(path); err != nil {
		return nil, err
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: detect %s: %w", path, err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case isText(mt):
		return loadDelimited(path, ',')
	case mt.Is(xlsxMIME), ext == ".xlsx":
		return loadXLSX(path)
	case mt.Is(xlsMIME):
		return nil, fmt.Errorf("dataset: %s: legacy .xls workbooks are not supported, save as .xlsx or .csv", path)
	case ext == ".csv":
		// Stray non-UTF-8 bytes can defeat sniffing.
		return loadDelimited(path, ',')
	}
	return nil, fmt.Errorf("dataset: %s: unsupported format %s", path, mt.String())
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// ReadPipe reads an intermediate pipe-delimited file.
func ReadPipe(path string) (*Table, error) {
	if err := exists(path); err != nil {
		return nil, err
	}
	return loadDelimited(path, Separator)
}

// ReadRecords reads an intermediate file straight into records.
func ReadRecords(path string) ([]domain.Record, error) {
	t, err := ReadPipe(path)
	if err != nil {
		return nil, err
	}
	return t.Records()
}

func exists(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("dataset: %w: %s", domain.ErrInputNotFound, path)
		}
		return fmt.Errorf("dataset: stat %s: %w", path, err)
	}
	return nil
}

func loadDelimited(path string, sep rune) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	raw, err := readDelimited(f, sep)
	if err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}
	return newTable(raw)
}

func readDelimited(r io.Reader, sep rune) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func loadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("dataset: %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("dataset: read sheet %q: %w", sheets[0], err)
	}
	return newTable(rows)
}

// WritePipe writes t as a pipe-delimited file. The data goes to a temporary
// file in the destination directory first and is renamed into place, so a
// failed write never leaves a truncated output behind.
func WritePipe(path string, t *Table) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("dataset: create temp in %s: %w", dir, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	w.Comma = Separator
	if err = w.Write(t.Header); err != nil {
		return fmt.Errorf("dataset: write header: %w", err)
	}
	if err = w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("dataset: write rows: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("dataset: close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("dataset: rename to %s: %w", path, err)
	}
	return nil
}
