package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"testing/quick"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
	"github.com/xuri/excelize/v2"
)

var allowedOnly = regexp.MustCompile(`^[A-Za-z0-9\s]*$`)

func TestCleanText(t *testing.T) {
	cases := map[string]string{
		"I feel anxious!!":           "I feel anxious",
		"Try breathing exercises.":   "Try breathing exercises",
		"it's 3am, can't sleep...":   "its 3am cant sleep",
		"tabs\tand\nnewlines stay":   "tabs\tand\nnewlines stay",
		"naïve café":                 "nave caf",
		"":                           "",
		"|pipes|and\"quotes\"":       "pipesandquotes",
	}
	for in, want := range cases {
		if got := CleanText(in); got != want {
			t.Errorf("CleanText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanText_Properties(t *testing.T) {
	onlyAllowed := func(s string) bool { return allowedOnly.MatchString(CleanText(s)) }
	if err := quick.Check(onlyAllowed, nil); err != nil {
		t.Errorf("output contains disallowed characters: %v", err)
	}
	idempotent := func(s string) bool {
		once := CleanText(s)
		return CleanText(once) == once
	}
	if err := quick.Check(idempotent, nil); err != nil {
		t.Errorf("not idempotent: %v", err)
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestClean_CSV(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "data.csv",
		"Context,Response,Source\n"+
			"\"I feel anxious!!\",\"Try breathing exercises.\",forum#1\n"+
			"\"Can't sleep, what now?\",,forum#2\n")
	out := filepath.Join(dir, "cleaned_data.txt")

	st, err := Clean(in, out, nil)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if st.Rows != 2 {
		t.Fatalf("rows = %d, want 2", st.Rows)
	}

	tbl, err := ReadPipe(out)
	if err != nil {
		t.Fatalf("ReadPipe: %v", err)
	}
	recs, err := tbl.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if recs[0].Context != "I feel anxious" || recs[0].Response != "Try breathing exercises" {
		t.Errorf("row 0 = %+v", recs[0])
	}
	if recs[1].Context != "Cant sleep what now" || recs[1].Response != "" {
		t.Errorf("row 1 = %+v", recs[1])
	}
	src, _ := tbl.Column("Source")
	if tbl.Rows[0][src] != "forum#1" {
		t.Errorf("untouched column changed: %q", tbl.Rows[0][src])
	}
}

func TestClean_XLSX(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "data.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	f.SetCellValue(sheet, "A1", "Context")
	f.SetCellValue(sheet, "B1", "Response")
	f.SetCellValue(sheet, "A2", "Panic attacks?!")
	f.SetCellValue(sheet, "B2", "Grounding: 5-4-3-2-1.")
	if err := f.SaveAs(in); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}
	f.Close()

	out := filepath.Join(dir, "cleaned_data.txt")
	if _, err := Clean(in, out, nil); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	recs, err := ReadRecords(out)
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(recs) != 1 || recs[0].Context != "Panic attacks" || recs[0].Response != "Grounding 54321" {
		t.Errorf("records = %+v", recs)
	}
}

func TestClean_MissingInput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "cleaned_data.txt")
	_, err := Clean(filepath.Join(dir, "absent.csv"), out, nil)
	if !errors.Is(err, domain.ErrInputNotFound) {
		t.Fatalf("expected ErrInputNotFound, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("no output should be written")
	}
}

func TestClean_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "data.csv", "Context,Answer\nhi,there\n")
	out := filepath.Join(dir, "cleaned_data.txt")
	_, err := Clean(in, out, nil)
	if !errors.Is(err, domain.ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("no output should be written")
	}
}
