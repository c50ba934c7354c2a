package textnorm

import "testing"

func TestCorregimiento(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "enumeration prefix and boilerplate",
			input: "12 - Corregimiento de El Paraíso",
			want:  "el paraiso",
		},
		{
			name:  "boilerplate without de",
			input: "Corregimiento Altavista",
			want:  "altavista",
		},
		{
			name:  "already canonical",
			input: "san cristobal",
			want:  "san cristobal",
		},
		{
			name:  "uppercase with accents",
			input: "SAN ANTONIO DE PRADO",
			want:  "san antonio de prado",
		},
		{
			name:  "internal whitespace runs",
			input: "  Santa   Elena  ",
			want:  "santa elena",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Corregimiento(tt.input); got != tt.want {
				t.Errorf("Corregimiento(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestVereda(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plural prefix with de",
			input: "Veredas de La Esperanza",
			want:  "la esperanza",
		},
		{
			name:  "singular prefix",
			input: "Vereda El Cerro",
			want:  "el cerro",
		},
		{
			name:  "expansion area",
			input: "Área de Expansión Pajarito",
			want:  "pajarito",
		},
		{
			name:  "sector prefix",
			input: "Sector La Loma",
			want:  "la loma",
		},
		{
			name:  "zona prefix",
			input: "Zonas Centrales",
			want:  "centrales",
		},
		{
			name:  "enumeration then prefix",
			input: "80 - Vereda La Palma",
			want:  "la palma",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Vereda(tt.input); got != tt.want {
				t.Errorf("Vereda(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Café  Especial ", "cafe especial"},
		{"NO REPORTA", "no reporta"},
		{"3 - Primaria", "primaria"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Label(tt.input); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// Normalization must be idempotent: applying it to its own output is a
// no-op. The query layer relies on this when a client sends an already
// canonical value back as a filter.
func TestIdempotence(t *testing.T) {
	samples := []string{
		"12 - Corregimiento de El Paraíso",
		"Veredas de La Esperanza",
		"Área de Expansión Pajarito",
		"SAN SEBASTIÁN DE PALMITAS",
		"sector  la  loma",
		"",
		"   ",
		"80 - ",
	}

	for _, s := range samples {
		for kind, fn := range map[string]func(string) string{
			"corregimiento": Corregimiento,
			"vereda":        Vereda,
			"label":         Label,
		} {
			once := fn(s)
			twice := fn(once)
			if once != twice {
				t.Errorf("%s(%q): not idempotent, %q != %q", kind, s, once, twice)
			}
		}
	}
}

func TestGeoDispatch(t *testing.T) {
	if got := Geo("corregimiento", "Corregimiento de Altavista"); got != "altavista" {
		t.Errorf("Geo corregimiento = %q", got)
	}
	if got := Geo("vereda", "Vereda El Cerro"); got != "el cerro" {
		t.Errorf("Geo vereda = %q", got)
	}
	if got := Geo("sexo", " F "); got != "f" {
		t.Errorf("Geo fallback = %q", got)
	}
}
