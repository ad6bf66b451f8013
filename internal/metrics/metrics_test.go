package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteTextfile(t *testing.T) {
	RowsRead.WithLabelValues("asmr", "deaths").Add(3)
	TidyRows.WithLabelValues("asmr").Set(18)

	path := filepath.Join(t.TempDir(), "eurorates.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`eurorates_rows_read_total{analysis="asmr",measure="deaths"} 3`,
		`eurorates_tidy_rows{analysis="asmr"} 18`,
	} {
		if !strings.Contains(string(b), want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}
