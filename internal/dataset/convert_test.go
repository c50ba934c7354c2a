package dataset

import "testing"

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hola", "hola"},
		{"surrounding space", "  hola  ", "hola"},
		{"bom", "\uFEFFhola", "hola"},
		{"non-breaking space", "hola mundo", "hola mundo"},
		{"excel formula wrapper", `="1002345"`, "1002345"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestToInt(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      int64
	}{
		{"integer", "42", true, 42},
		{"negative", "-3", true, -3},
		{"spreadsheet float", "42.0", true, 42},
		{"thousands separator", "1,234", true, 1234},
		{"fractional", "42.5", false, 0},
		{"text", "cuarenta", false, 0},
		{"empty", "", false, 0},
		{"whitespace", "   ", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToInt(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToInt(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if got.Valid && got.Int64 != tt.want {
				t.Errorf("ToInt(%q) = %d, want %d", tt.input, got.Int64, tt.want)
			}
		})
	}
}

func TestToDate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      string
	}{
		{"iso", "2023-05-17", true, "2023-05-17"},
		{"day first slash", "17/05/2023", true, "2023-05-17"},
		{"day first dash", "17-05-2023", true, "2023-05-17"},
		{"iso datetime", "2023-05-17 08:30:00", true, "2023-05-17"},
		{"excel serial", "45063", true, "2023-05-17"},
		{"nonsense", "mayo 17", false, ""},
		{"empty", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDate(tt.input)
			if got.Valid != tt.wantValid {
				t.Fatalf("ToDate(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
			if got.Valid && got.String != tt.want {
				t.Errorf("ToDate(%q) = %q, want %q", tt.input, got.String, tt.want)
			}
		})
	}
}

func TestToText(t *testing.T) {
	if got := ToText("  hola  "); !got.Valid || got.String != "hola" {
		t.Errorf("ToText trims: got %+v", got)
	}
	if got := ToText("   "); got.Valid {
		t.Errorf("ToText on whitespace should be NULL, got %+v", got)
	}
}
