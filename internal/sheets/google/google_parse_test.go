package google

import (
	"testing"
)

func TestToSheet(t *testing.T) {
	values := [][]interface{}{
		{"BatchID", "Crop", "", "Expected Yield"},
		{"B1", "Tomato", "x", 1000.0},
		{"B2", "Chilli"},
		{},
		{"", nil, "", ""},
	}

	sh := toSheet("Batches", values)

	if sh.Name != "Batches" {
		t.Errorf("Name = %q", sh.Name)
	}
	wantHeaders := []string{"BatchID", "Crop", "Column 3", "Expected Yield"}
	for i, h := range wantHeaders {
		if sh.Headers[i] != h {
			t.Errorf("header[%d] = %q, want %q", i, sh.Headers[i], h)
		}
	}
	if len(sh.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (blank rows dropped)", len(sh.Rows))
	}
	if got := sh.Rows[0]["Expected Yield"]; got != "1000" {
		t.Errorf("numeric cell = %q, want 1000", got)
	}
	if got, ok := sh.Rows[1]["Expected Yield"]; !ok || got != "" {
		t.Errorf("short row should be padded, got %q (present=%v)", got, ok)
	}
}

func TestToSheet_Empty(t *testing.T) {
	sh := toSheet("Empty", nil)
	if len(sh.Headers) != 0 || len(sh.Rows) != 0 {
		t.Errorf("expected empty sheet, got %+v", sh)
	}
}

func TestQuoteTab(t *testing.T) {
	tests := map[string]string{
		"Sales":          "'Sales'",
		"Farmer's Batch": "'Farmer''s Batch'",
		"Post Harvest":   "'Post Harvest'",
	}
	for in, want := range tests {
		if got := quoteTab(in); got != want {
			t.Errorf("quoteTab(%q) = %q, want %q", in, got, want)
		}
	}
}
