package plantilla

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ideclab/asistente-mga/internal/models"
)

// buildWorkbook writes cells given as column-letter+row pairs and returns the
// serialized workbook.
func buildWorkbook(t *testing.T, cells map[string]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for ref, v := range cells {
		if err := f.SetCellValue("Sheet1", ref, v); err != nil {
			t.Fatalf("SetCellValue(%s): %v", ref, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func causaFixture(t *testing.T) []byte {
	t.Helper()
	// Rows deliberately out of order: the indirect effect of C2CI1 appears
	// in a row before C2 and C2CI1 themselves.
	return buildWorkbook(t, map[string]string{
		"I3": "C2CI1", "J3": "C2CI1EI1", "K3": "Menor confianza ciudadana",
		"A4": "C1", "B4": "Sistemas sin interoperabilidad", "C4": "Reprocesos manuales",
		"E4": "C1", "F4": "C1CI1", "G4": "Ausencia de estándares de intercambio",
		"I4": "C1CI1", "J4": "C1CI1EI1", "K4": "Datos duplicados entre entidades",
		"A5": "C2", "B5": "Baja calidad de los datos", "C5": "Decisiones mal informadas",
		"E5": "C2", "F5": "C2CI1", "G5": "Sin reglas de validación",
		// Orphan leaf: the referenced C9CI9 never appears as a second-level row.
		"I6": "C9CI9", "J6": "C9CI9EI1", "K6": "Efecto huérfano",
	})
}

func objetivoFixture(t *testing.T) []byte {
	t.Helper()
	return buildWorkbook(t, map[string]string{
		"A3": "O1", "B3": "Mejorar la interoperabilidad", "C3": "Adoptar estándares", "D3": "Servicios más ágiles",
		"F3": "O1", "G3": "O1MI1", "H3": "Implementar X-Road",
		"J3": "O1MI1", "K3": "O1MI1FI1", "L3": "Menos trámites presenciales",
		"A4": "O2", "B4": "Elevar la calidad del dato", "C4": "Reglas de validación", "D4": "Mejores decisiones",
	})
}

func TestValidateNotXLSX(t *testing.T) {
	err := Validate([]byte("esto no es un workbook"), models.CategoryCausa, -1)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != models.UploadErrNotXLSX {
		t.Fatalf("expected not_xlsx, got %v", err)
	}
}

func TestValidateEmptyWorkbook(t *testing.T) {
	data := buildWorkbook(t, map[string]string{"A1": "Causas directas"})
	err := Validate(data, models.CategoryCausa, -1)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != models.UploadErrEmpty {
		t.Fatalf("expected empty, got %v", err)
	}
}

func TestValidateBadShape(t *testing.T) {
	// Content in data rows but no identifiers matching the template.
	data := buildWorkbook(t, map[string]string{
		"A3": "nombre", "B3": "juan", "A4": "edad", "B4": "40",
	})
	err := Validate(data, models.CategoryCausa, -1)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != models.UploadErrBadShape {
		t.Fatalf("expected bad_shape, got %v", err)
	}
}

func TestValidateIDsWithoutDescriptions(t *testing.T) {
	data := buildWorkbook(t, map[string]string{"A3": "C1", "A4": "C2"})
	err := Validate(data, models.CategoryCausa, -1)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != models.UploadErrEmpty {
		t.Fatalf("expected empty for ids without descriptions, got %v", err)
	}
}

func TestValidateAcceptsFilledTemplate(t *testing.T) {
	if err := Validate(causaFixture(t), models.CategoryCausa, -1); err != nil {
		t.Errorf("causa fixture should validate, got %v", err)
	}
	if err := Validate(objetivoFixture(t), models.CategoryObjetivo, -1); err != nil {
		t.Errorf("objetivo fixture should validate, got %v", err)
	}
}

func TestParseCausasAssemblesOutOfOrderRows(t *testing.T) {
	tree, err := ParseCausas(causaFixture(t), -1)
	if err != nil {
		t.Fatalf("ParseCausas: %v", err)
	}
	if tree.Tipo != TipoCausas {
		t.Errorf("tipo = %q", tree.Tipo)
	}
	// C1, C2 and the orphan placeholder.
	if len(tree.Items) != 3 {
		t.Fatalf("items = %d, want 3: %+v", len(tree.Items), tree.Items)
	}

	c1 := tree.Items[0]
	if c1.ID != "C1" || c1.EfectoDirecto.Descripcion != "Reprocesos manuales" {
		t.Errorf("C1 = %+v", c1)
	}
	if len(c1.CausasIndirectas) != 1 || len(c1.CausasIndirectas[0].EfectosIndirectos) != 1 {
		t.Fatalf("C1 children = %+v", c1.CausasIndirectas)
	}

	c2 := tree.Items[1]
	if c2.ID != "C2" {
		t.Fatalf("second root = %q, want C2", c2.ID)
	}
	// The leaf row that appeared before its parent must still attach.
	if len(c2.CausasIndirectas) != 1 || len(c2.CausasIndirectas[0].EfectosIndirectos) != 1 {
		t.Fatalf("C2 children = %+v", c2.CausasIndirectas)
	}
	if c2.CausasIndirectas[0].EfectosIndirectos[0].Descripcion != "Menor confianza ciudadana" {
		t.Errorf("C2 leaf = %+v", c2.CausasIndirectas[0].EfectosIndirectos[0])
	}

	orphans := tree.Items[2]
	if orphans.ID != OrphanID || len(orphans.CausasIndirectas) != 1 {
		t.Fatalf("orphan placeholder = %+v", orphans)
	}
	if orphans.CausasIndirectas[0].ID != "C9CI9" || len(orphans.CausasIndirectas[0].EfectosIndirectos) != 1 {
		t.Errorf("orphan child = %+v", orphans.CausasIndirectas[0])
	}
}

func TestParseCausasNumericOrdering(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"A3": "C10", "B3": "décima causa",
		"A4": "C2", "B4": "segunda causa",
		"A5": "C1", "B5": "primera causa",
	})
	tree, err := ParseCausas(data, -1)
	if err != nil {
		t.Fatalf("ParseCausas: %v", err)
	}
	got := []string{tree.Items[0].ID, tree.Items[1].ID, tree.Items[2].ID}
	want := []string{"C1", "C2", "C10"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestParseCausasPrunesContentlessRoots(t *testing.T) {
	data := buildWorkbook(t, map[string]string{
		"A3": "C1", "B3": "causa con contenido",
		"A4": "C2", // id alone, nothing anywhere under it
	})
	tree, err := ParseCausas(data, -1)
	if err != nil {
		t.Fatalf("ParseCausas: %v", err)
	}
	if len(tree.Items) != 1 || tree.Items[0].ID != "C1" {
		t.Errorf("contentless root should be pruned: %+v", tree.Items)
	}
}

func TestParseCausasStubRootFromParentReference(t *testing.T) {
	// C5 never has its own row, but a second-level row references it with
	// content, so a stub root must surface carrying that child.
	data := buildWorkbook(t, map[string]string{
		"E3": "C5", "F3": "C5CI1", "G3": "causa indirecta con contenido",
	})
	tree, err := ParseCausas(data, -1)
	if err != nil {
		t.Fatalf("ParseCausas: %v", err)
	}
	if len(tree.Items) != 1 || tree.Items[0].ID != "C5" {
		t.Fatalf("items = %+v", tree.Items)
	}
	if tree.Items[0].Descripcion != "" || len(tree.Items[0].CausasIndirectas) != 1 {
		t.Errorf("stub root = %+v", tree.Items[0])
	}
}

func TestParseObjetivos(t *testing.T) {
	tree, err := ParseObjetivos(objetivoFixture(t), -1)
	if err != nil {
		t.Fatalf("ParseObjetivos: %v", err)
	}
	if len(tree.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(tree.Items))
	}
	o1 := tree.Items[0]
	if o1.MedioDirecto.Descripcion != "Adoptar estándares" || o1.FinDirecto.Descripcion != "Servicios más ágiles" {
		t.Errorf("O1 = %+v", o1)
	}
	if len(o1.MediosIndirectos) != 1 || len(o1.MediosIndirectos[0].FinesIndirectos) != 1 {
		t.Errorf("O1 children = %+v", o1.MediosIndirectos)
	}
}

func TestParseCombined(t *testing.T) {
	cells := map[string]string{
		"A3": "C1", "B3": "causa combinada", "C3": "efecto directo",
		// Objectives block starts at column M.
		"M3": "O1", "N3": "objetivo combinado", "O3": "medio", "P3": "fin",
	}
	sheets, err := ParseCombined(buildWorkbook(t, cells), -1, -1)
	if err != nil {
		t.Fatalf("ParseCombined: %v", err)
	}
	if len(sheets) != 1 {
		t.Fatalf("sheets = %d", len(sheets))
	}
	pair := sheets[0].Trees
	if pair.Causas == nil || len(pair.Causas.Items) != 1 || pair.Causas.Items[0].ID != "C1" {
		t.Errorf("causas = %+v", pair.Causas)
	}
	if pair.Objetivos == nil || len(pair.Objetivos.Items) != 1 || pair.Objetivos.Items[0].Descripcion != "objetivo combinado" {
		t.Errorf("objetivos = %+v", pair.Objetivos)
	}
}

func TestCustomStartRow(t *testing.T) {
	// Data already in row 2: invisible under the default start row, but a
	// caller may declare where its template's data begins.
	data := buildWorkbook(t, map[string]string{
		"A2": "C1", "B2": "causa en la segunda fila",
	})

	err := Validate(data, models.CategoryCausa, -1)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != models.UploadErrEmpty {
		t.Fatalf("default start row should see no data, got %v", err)
	}
	if err := Validate(data, models.CategoryCausa, 2); err != nil {
		t.Fatalf("Validate with start row 2: %v", err)
	}

	tree, err := ParseCausas(data, 2)
	if err != nil {
		t.Fatalf("ParseCausas with start row 2: %v", err)
	}
	if len(tree.Items) != 1 || tree.Items[0].Descripcion != "causa en la segunda fila" {
		t.Errorf("items = %+v", tree.Items)
	}
}

func TestValidateCombined(t *testing.T) {
	good := buildWorkbook(t, map[string]string{
		"A3": "C1", "B3": "causa combinada",
		"M3": "O1", "N3": "objetivo combinado",
	})
	if err := ValidateCombined(good, -1, -1); err != nil {
		t.Errorf("combined fixture should validate, got %v", err)
	}

	// One matching block is enough.
	objetivosOnly := buildWorkbook(t, map[string]string{
		"M3": "O1", "N3": "objetivo sin causas",
	})
	if err := ValidateCombined(objetivosOnly, -1, -1); err != nil {
		t.Errorf("objectives-only combined workbook should validate, got %v", err)
	}

	// An unrelated workbook with content is the wrong template, not a
	// blank one.
	unrelated := buildWorkbook(t, map[string]string{
		"A3": "nombre", "B3": "juan", "A4": "edad", "B4": "40",
	})
	err := ValidateCombined(unrelated, -1, -1)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Code != models.UploadErrBadShape {
		t.Errorf("expected bad_shape for unrelated combined upload, got %v", err)
	}

	blank := buildWorkbook(t, map[string]string{"A1": "Causas directas"})
	err = ValidateCombined(blank, -1, -1)
	if !errors.As(err, &verr) || verr.Code != models.UploadErrEmpty {
		t.Errorf("expected empty for blank combined upload, got %v", err)
	}
}

func TestMarkdownAndOutline(t *testing.T) {
	tree, err := ParseCausas(causaFixture(t), -1)
	if err != nil {
		t.Fatalf("ParseCausas: %v", err)
	}
	md := CausaTreeMarkdown(tree)
	if !strings.Contains(md, "C1") || !strings.Contains(md, "Reprocesos manuales") {
		t.Errorf("preview missing content:\n%s", md)
	}
	outline := CausaOutline(tree)
	if strings.Contains(outline, "C1CI1") {
		t.Errorf("outline must not leak identifiers:\n%s", outline)
	}
	if !strings.Contains(outline, "Causa indirecta: Ausencia de estándares de intercambio") {
		t.Errorf("outline missing content:\n%s", outline)
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"arbol de causas (v2).xlsx": "arbol_de_causas_v2_xlsx",
		"___":                       "proyecto",
		"":                          "proyecto",
		"ya-valido_01":              "ya-valido_01",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSaveAndLoadTreeJSON(t *testing.T) {
	dir := t.TempDir()
	tree, err := ParseCausas(causaFixture(t), -1)
	if err != nil {
		t.Fatalf("ParseCausas: %v", err)
	}
	path, err := SaveTreeJSON(dir, "arbol_causas.xlsx", tree)
	if err != nil {
		t.Fatalf("SaveTreeJSON: %v", err)
	}
	if filepath.Base(path) != "arbol_causas.json" {
		t.Errorf("json path = %s", path)
	}
	loaded, err := LoadCausaTree(path)
	if err != nil {
		t.Fatalf("LoadCausaTree: %v", err)
	}
	if len(loaded.Items) != len(tree.Items) {
		t.Errorf("round trip lost items: %d != %d", len(loaded.Items), len(tree.Items))
	}
	if loaded.Items[0].EfectoDirecto.Descripcion != "Reprocesos manuales" {
		t.Errorf("round trip value = %+v", loaded.Items[0])
	}
}

func TestTemplateXLSXRoundTrip(t *testing.T) {
	for _, cat := range []models.TemplateCategory{models.CategoryCausa, models.CategoryObjetivo} {
		data, err := TemplateXLSX(cat)
		if err != nil {
			t.Fatalf("TemplateXLSX(%s): %v", cat, err)
		}
		// The blank template itself must be rejected as empty, not bad_shape.
		err = Validate(data, cat, -1)
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Code != models.UploadErrEmpty {
			t.Errorf("blank %s template: got %v, want empty", cat, err)
		}
	}
	if TemplateName(models.CategoryObjetivo) != "PlantillaObjetivo.xlsx" {
		t.Errorf("objetivo template name = %s", TemplateName(models.CategoryObjetivo))
	}
}
