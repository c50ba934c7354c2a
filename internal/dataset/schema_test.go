package dataset

import (
	"reflect"
	"testing"
)

func TestSlugifyHeader(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Línea Productiva", "linea_productiva"},
		{"  Fecha de Registro ", "fecha_de_registro"},
		{"SEXO/GÉNERO", "sexo_genero"},
		{"Teléfono (contacto)", "telefono_contacto"},
		{"N° Documento", "n_documento"},
		{"edad", "edad"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SlugifyHeader(tt.input); got != tt.want {
			t.Errorf("SlugifyHeader(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCanonicalHeader_Aliases(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Año", "anio"},
		{"AÑO", "anio"},
		{"Tel", "telefono"},
		{"Correo", "email"},
		{"E-mail", "email"},
		{"Fecha de Registro", "fecha_registro"},
		{"Sexo/Género", "sexo"},
		{"Estrato Socioeconómico", "estrato"},
		{"Línea Prod", "linea_productiva"},
		{"vereda", "vereda"},
	}

	for _, tt := range tests {
		if got := CanonicalHeader(tt.input); got != tt.want {
			t.Errorf("CanonicalHeader(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCanonicalizeHeaders_Duplicates(t *testing.T) {
	table := &Table{Columns: []string{"Documento", "documento", "Tel", "Teléfono (contacto)"}}
	CanonicalizeHeaders(table)

	want := []string{"documento", "documento_2", "telefono", "telefono_2"}
	if !reflect.DeepEqual(table.Columns, want) {
		t.Errorf("CanonicalizeHeaders = %v, want %v", table.Columns, want)
	}
}

func TestColumnClassifiers(t *testing.T) {
	if !IsTextColumn("documento") || !IsTextColumn("telefono") {
		t.Error("documento and telefono must be text columns")
	}
	if IsTextColumn("edad") {
		t.Error("edad is not a text column")
	}
	if !IsDateColumn("fecha_registro") || IsDateColumn("registro_fecha") {
		t.Error("date columns are detected by the fecha prefix")
	}
}
