package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/portal-alcaldia/ruea-api/internal/textnorm"
)

// publishTables stages and promotes tables into a fresh layout, returning
// the query side over it.
func publishTables(t *testing.T, tables map[Module]*Table) (Layout, *Queries) {
	t.Helper()
	layout, err := NewLayout(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	staged, err := Stage(context.Background(), layout, NewVersion(time.Now()), tables)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if err := Promote(layout, staged.Dir); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	store := NewStore(layout)
	t.Cleanup(func() { store.Close() })
	return layout, NewQueries(store)
}

func registryFixture() map[Module]*Table {
	return map[Module]*Table{
		ModuleRuea: {
			Columns: []string{"documento", "sexo", "edad", "estrato", "corregimiento", "vereda", "linea_productiva", "escolaridad"},
			Rows: [][]string{
				{"1001", "F", "34", "2", "12 - Corregimiento de El Paraíso", "Veredas de La Esperanza", "Café", "Primaria"},
				{"1002", "M", "51", "1", "Altavista", "Vereda El Cerro", "Plátano", "Secundaria"},
				{"1003", "F", "29", "3", "Altavista", "", "Café", "Primaria"},
				{"1004", "M", "40", "2", "San Cristóbal", "Vereda La Palma", "Aguacate", "Ninguna"},
			},
		},
	}
}

// The scalar functions registered on the driver must agree exactly with
// the in-process normalizers, otherwise filters silently miss rows.
func TestScalarFunctionsMatchTextnorm(t *testing.T) {
	_, q := publishTables(t, registryFixture())
	db, _, release, err := q.store.Reader(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	inputs := []string{
		"12 - Corregimiento de El Paraíso",
		"Veredas de La Esperanza",
		"  ALTAVISTA  ",
		"Área de Expansión San Cristóbal",
		"Café Especial",
		"",
	}
	for _, in := range inputs {
		var corr, ver, label string
		err := db.QueryRow(
			"SELECT norm_corregimiento(?), norm_vereda(?), norm_label(?)",
			in, in, in,
		).Scan(&corr, &ver, &label)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if want := textnorm.Corregimiento(in); corr != want {
			t.Errorf("norm_corregimiento(%q) = %q, want %q", in, corr, want)
		}
		if want := textnorm.Vereda(in); ver != want {
			t.Errorf("norm_vereda(%q) = %q, want %q", in, ver, want)
		}
		if want := textnorm.Label(in); label != want {
			t.Errorf("norm_label(%q) = %q, want %q", in, label, want)
		}
	}
}

func TestRegistry_GeoFilterMatchesAcrossSpellings(t *testing.T) {
	_, q := publishTables(t, registryFixture())
	ctx := context.Background()

	tests := []struct {
		name    string
		filters RegistryFilters
		want    int
	}{
		{"district canonical", RegistryFilters{Corregimiento: "el paraiso"}, 1},
		{"district decorated", RegistryFilters{Corregimiento: "Corregimiento de EL PARAÍSO"}, 1},
		{"district plain", RegistryFilters{Corregimiento: "Altavista"}, 2},
		{"village decorated", RegistryFilters{Vereda: "Veredas de La Esperanza"}, 1},
		{"village canonical", RegistryFilters{Vereda: "la esperanza"}, 1},
		{"label substring", RegistryFilters{LineaProductiva: "caf"}, 2},
		{"combined", RegistryFilters{Corregimiento: "altavista", LineaProductiva: "café"}, 1},
		{"no match", RegistryFilters{Corregimiento: "no existe"}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			page, err := q.Registry(ctx, tc.filters, PageParams{})
			if err != nil {
				t.Fatal(err)
			}
			if page.Count != tc.want {
				t.Errorf("count = %d, want %d", page.Count, tc.want)
			}
			if len(page.Items) != tc.want {
				t.Errorf("items = %d, want %d", len(page.Items), tc.want)
			}
		})
	}
}

func TestRegistry_VeredaSortEmptyLast(t *testing.T) {
	_, q := publishTables(t, registryFixture())
	ctx := context.Background()

	for _, desc := range []bool{false, true} {
		page, err := q.Registry(ctx, RegistryFilters{}, PageParams{OrderBy: "vereda", Desc: desc})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Items) != 4 {
			t.Fatalf("items = %d, want 4", len(page.Items))
		}
		last := page.Items[3]
		if last["vereda"] != nil {
			t.Errorf("desc=%v: empty vereda must sort last, got %v", desc, last["vereda"])
		}
		first, _ := page.Items[0]["vereda"].(string)
		if desc {
			if want := "Vereda La Palma"; first != want {
				t.Errorf("desc first = %q, want %q", first, want)
			}
		} else {
			if want := "Vereda El Cerro"; first != want {
				t.Errorf("asc first = %q, want %q", first, want)
			}
		}
	}
}

func TestRegistry_UnknownSortFallsBack(t *testing.T) {
	_, q := publishTables(t, registryFixture())

	page, err := q.Registry(context.Background(), RegistryFilters{}, PageParams{OrderBy: "drop table"})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := page.Items[0]["documento"].(string); got != "1001" {
		t.Errorf("fallback sort first documento = %q, want 1001", got)
	}
}

func TestRegistry_Pagination(t *testing.T) {
	_, q := publishTables(t, registryFixture())

	page, err := q.Registry(context.Background(), RegistryFilters{},
		PageParams{OrderBy: "documento", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if page.Count != 4 {
		t.Errorf("count must ignore pagination, got %d", page.Count)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(page.Items))
	}
	if got, _ := page.Items[0]["documento"].(string); got != "1003" {
		t.Errorf("offset item = %q, want 1003", got)
	}
}

func TestRegistry_FieldProjectionDropsUnknown(t *testing.T) {
	_, q := publishTables(t, registryFixture())

	page, err := q.Registry(context.Background(), RegistryFilters{},
		PageParams{Fields: []string{"documento", "no_existe", "Sexo"}})
	if err != nil {
		t.Fatal(err)
	}
	for _, item := range page.Items {
		if len(item) != 2 {
			t.Fatalf("projected columns = %d, want 2: %v", len(item), item)
		}
		if _, ok := item["documento"]; !ok {
			t.Errorf("documento missing from projection: %v", item)
		}
		if _, ok := item["sexo"]; !ok {
			t.Errorf("sexo missing from projection: %v", item)
		}
	}
}

func TestFacets_SelfExclusion(t *testing.T) {
	_, q := publishTables(t, registryFixture())

	facets, err := q.Facets(context.Background(), RegistryFilters{Vereda: "la esperanza"})
	if err != nil {
		t.Fatal(err)
	}

	// The vereda list ignores its own filter: all non-empty villages stay
	// selectable.
	wantVeredas := []string{"el cerro", "la esperanza", "la palma"}
	if got := facets["vereda"]; len(got) != len(wantVeredas) {
		t.Fatalf("vereda facets = %v, want %v", got, wantVeredas)
	} else {
		for i, v := range wantVeredas {
			if got[i] != v {
				t.Errorf("vereda facet[%d] = %q, want %q", i, got[i], v)
			}
		}
	}

	// Every other facet honors the vereda filter.
	if got := facets["corregimiento"]; len(got) != 1 || got[0] != "el paraiso" {
		t.Errorf("corregimiento facets = %v, want [el paraiso]", got)
	}
	if got := facets["linea_productiva"]; len(got) != 1 || got[0] != "café" {
		t.Errorf("linea_productiva facets = %v, want [café]", got)
	}
}

func TestStats_GroupsAndTruncates(t *testing.T) {
	_, q := publishTables(t, registryFixture())
	ctx := context.Background()

	buckets, err := q.Stats(ctx, RegistryFilters{}, "corregimiento", 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []StatsBucket{
		{Name: "altavista", Total: 2},
		{Name: "el paraiso", Total: 1},
		{Name: "san cristobal", Total: 1},
	}
	if len(buckets) != len(want) {
		t.Fatalf("buckets = %v, want %v", buckets, want)
	}
	for i := range want {
		if buckets[i] != want[i] {
			t.Errorf("bucket[%d] = %v, want %v", i, buckets[i], want[i])
		}
	}

	top, err := q.Stats(ctx, RegistryFilters{}, "corregimiento", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 || top[0].Name != "altavista" {
		t.Errorf("top-1 = %v, want altavista", top)
	}

	// Unknown grouping falls back to corregimiento instead of erroring.
	fallback, err := q.Stats(ctx, RegistryFilters{}, "nope", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(fallback) != 3 {
		t.Errorf("fallback buckets = %v", fallback)
	}
}

func TestRegistrySummary(t *testing.T) {
	_, q := publishTables(t, registryFixture())

	sum, err := q.RegistrySummary(context.Background(), RegistryFilters{Sexo: "f"})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 2 {
		t.Errorf("total = %d, want 2", sum.Total)
	}
	if len(sum.TopCorregimiento) == 0 || sum.TopCorregimiento[0].Name != "altavista" {
		t.Errorf("top corregimiento = %v", sum.TopCorregimiento)
	}
}

func TestRollups(t *testing.T) {
	tables := registryFixture()
	tables[ModuleComercializacion] = &Table{
		Columns: []string{"anio", "estrategia", "monto"},
		Rows: [][]string{
			{"2023", "mercados campesinos", "1200"},
			{"2023", "mercados campesinos", "800"},
			{"2024", "ruedas de negocio", "500"},
		},
	}
	_, q := publishTables(t, tables)
	ctx := context.Background()

	rows, err := q.Comercializacion(ctx, YearFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rollup rows = %d, want 2: %v", len(rows), rows)
	}

	year := 2023
	rows, err = q.Comercializacion(ctx, YearFilter{Anio: &year})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("2023 rows = %d, want 1: %v", len(rows), rows)
	}

	// The indicator module was never published: typed empty, not an error.
	ind, err := q.Indicadores(ctx, YearFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if ind == nil || len(ind) != 0 {
		t.Errorf("missing rollup must yield empty rows, got %v", ind)
	}
}

func TestQueries_EmptyCatalog(t *testing.T) {
	layout, err := NewLayout(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := NewStore(layout)
	defer store.Close()
	q := NewQueries(store)
	ctx := context.Background()

	page, err := q.Registry(ctx, RegistryFilters{}, PageParams{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Count != 0 || page.Items == nil || len(page.Items) != 0 {
		t.Errorf("empty catalog page = %+v", page)
	}

	facets, err := q.Facets(ctx, RegistryFilters{})
	if err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"corregimiento", "vereda", "linea_productiva", "escolaridad", "sexo"} {
		if v, ok := facets[field]; !ok || v == nil {
			t.Errorf("facet %q must be a typed empty list, got %v (present=%v)", field, v, ok)
		}
	}

	var buf bytes.Buffer
	if err := q.ExportCSV(ctx, &buf, RegistryFilters{}, nil); err != nil {
		t.Fatal(err)
	}
}

func TestExportCSV(t *testing.T) {
	_, q := publishTables(t, registryFixture())

	var buf bytes.Buffer
	err := q.ExportCSV(context.Background(), &buf,
		RegistryFilters{Corregimiento: "altavista"},
		[]string{"documento", "vereda"})
	if err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("csv rows = %d, want header + 2", len(records))
	}
	if records[0][0] != "documento" || records[0][1] != "vereda" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][0] != "1002" {
		t.Errorf("first data row = %v", records[1])
	}
}
