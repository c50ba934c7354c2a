package dataset

// schema.go declares the per-module column schemas and the header
// normalization applied before validation.
//
// Headers are slugified (lowercase, non-alphanumeric runs -> "_") and then
// mapped through a fixed alias table so that the frequent label variants in
// the source workbooks ("Tel", "Correo", "Sexo/Género") land on the
// canonical column names. Schemas are non-strict: columns not declared
// here pass through to the staged table unchanged.

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugUnaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	slugStrip    = regexp.MustCompile(`[^0-9a-zA-Z]+`)
)

// SlugifyHeader reduces a column header to snake_case ASCII.
func SlugifyHeader(name string) string {
	s, _, err := transform.String(slugUnaccent, name)
	if err != nil {
		s = name
	}
	s = slugStrip.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return strings.ToLower(s)
}

// headerAliases maps slugified header variants to canonical column names.
var headerAliases = map[string]string{
	// "Año" loses its tilde during slugification; map it back onto the
	// canonical year column the rollups group by.
	"ano":                    "anio",
	"linea_prod":             "linea_productiva",
	"linea_productiva_":      "linea_productiva",
	"telefono_contacto":      "telefono",
	"tel":                    "telefono",
	"e_mail":                 "email",
	"correo":                 "email",
	"fecha_de_registro":      "fecha_registro",
	"sexo_genero":            "sexo",
	"estrato_socioeconomico": "estrato",
}

// CanonicalHeader slugifies a header and resolves known aliases.
func CanonicalHeader(name string) string {
	slug := SlugifyHeader(name)
	if canonical, ok := headerAliases[slug]; ok {
		return canonical
	}
	return slug
}

// CanonicalizeHeaders rewrites a table's column names in place. Duplicate
// resulting names get a numeric suffix so no column is silently shadowed.
func CanonicalizeHeaders(t *Table) {
	seen := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		name := CanonicalHeader(c)
		if name == "" {
			name = "column"
		}
		if n := seen[name]; n > 0 {
			t.Columns[i] = name + "_" + strconv.Itoa(n+1)
		} else {
			t.Columns[i] = name
		}
		seen[name]++
	}
}

// textColumns always stay TEXT regardless of what the cells look like;
// document and phone numbers lose leading zeros otherwise.
var textColumns = map[string]bool{
	"documento": true, "telefono": true, "celular": true, "email": true,
	"nit": true, "corregimiento": true, "vereda": true, "linea_productiva": true,
}

// IsTextColumn reports whether a column must be stored as raw text.
func IsTextColumn(name string) bool { return textColumns[name] }

// IsDateColumn reports whether a column holds dates. Date columns are
// parsed best-effort into the canonical layout; unparsable cells become
// NULL.
func IsDateColumn(name string) bool { return strings.HasPrefix(name, "fecha") }

// sexoValues is the closed set for the sexo column, including the explicit
// "not reported" markers and the empty string.
var sexoValues = []string{"F", "M", "X", "O", "OTRO", "NO REPORTA", ""}

// ModuleSchema returns the declared field specs for a module. Only the
// registry carries real validation rules; the other modules declare their
// numeric columns so coercion knows about them.
func ModuleSchema(m Module) []FieldSpec {
	switch m {
	case ModuleRuea:
		return []FieldSpec{
			{Name: "documento", Type: FieldText, Required: true},
			{Name: "nombres", Type: FieldText},
			{Name: "apellidos", Type: FieldText},
			{Name: "sexo", Type: FieldEnum, EnumValues: sexoValues},
			{Name: "edad", Type: FieldInt, Ranged: true, Min: 0, Max: 120},
			{Name: "estrato", Type: FieldInt, Ranged: true, Min: 0, Max: 6},
			{Name: "escolaridad", Type: FieldText},
			{Name: "corregimiento", Type: FieldText},
			{Name: "vereda", Type: FieldText},
			{Name: "linea_productiva", Type: FieldText},
			{Name: "fecha_registro", Type: FieldDate},
			{Name: "telefono", Type: FieldText},
			{Name: "email", Type: FieldText},
		}
	case ModuleIndicadores:
		return []FieldSpec{
			{Name: "anio", Type: FieldInt},
			{Name: "eje", Type: FieldText},
			{Name: "valor", Type: FieldInt},
			{Name: "cumplimiento", Type: FieldInt},
		}
	case ModuleComercializacion:
		return []FieldSpec{
			{Name: "anio", Type: FieldInt},
			{Name: "estrategia", Type: FieldText},
			{Name: "monto", Type: FieldInt},
		}
	case ModuleNodos:
		return []FieldSpec{
			{Name: "nodo", Type: FieldText},
			{Name: "corregimiento", Type: FieldText},
		}
	}
	return nil
}

// specFor finds the declared spec for a column, if any.
func specFor(specs []FieldSpec, column string) (FieldSpec, bool) {
	for _, s := range specs {
		if s.Name == column {
			return s, true
		}
	}
	return FieldSpec{}, false
}
