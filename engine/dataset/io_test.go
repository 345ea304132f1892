package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestWritePipe_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	want := &Table{
		Header: []string{"Context", "Response"},
		Rows: [][]string{
			{"plain", "text"},
			{"has|pipe", "has \"quote\""},
			{"multi\nline", ""},
			{"", ""},
		},
	}
	if err := WritePipe(path, want); err != nil {
		t.Fatalf("WritePipe: %v", err)
	}
	got, err := ReadPipe(path)
	if err != nil {
		t.Fatalf("ReadPipe: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got, want)
	}
}

func TestWritePipe_NoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	if err := WritePipe(path, &Table{Header: []string{"Context", "Response"}}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.txt" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestWritePipe_BadDir(t *testing.T) {
	err := WritePipe(filepath.Join(t.TempDir(), "missing", "out.txt"), &Table{Header: []string{"a"}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLoad_ShortRowsPadded(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "d.csv")
	if err := os.WriteFile(p, []byte("\ufeffContext,Response\nonly context\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	recs, err := tbl.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(recs) != 1 || recs[0].Context != "only context" || recs[0].Response != "" {
		t.Fatalf("records = %+v", recs)
	}
}

func TestLoad_WideRowRejected(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "d.csv")
	if err := os.WriteFile(p, []byte("Context,Response\na,b\nc,d,stray\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(p)
	if !errors.Is(err, ErrRowTooWide) || !strings.Contains(err.Error(), "row 2") {
		t.Fatalf("err = %v", err)
	}

	// Trailing empty cells carry no data.
	if err := os.WriteFile(p, []byte("Context,Response\na,b,\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err != nil {
		t.Fatalf("trailing empty cell: %v", err)
	}
}

func TestLoad_SniffsContent(t *testing.T) {
	dir := t.TempDir()
	// An export that kept the workbook extension but holds plain CSV.
	p := filepath.Join(dir, "export.xlsx")
	if err := os.WriteFile(p, []byte("Context,Response\nfeel low,reach out\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0][1] != "reach out" {
		t.Fatalf("rows = %v", tbl.Rows)
	}
}

func TestLoad_RejectsBinary(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "data.bin")
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	if err := os.WriteFile(p, png, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for an image")
	}
}
