// Package plantilla reads and validates the xlsx templates that carry the
// cause/effect and objective/means/ends trees of an MGA project.
package plantilla

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ideclab/asistente-mga/internal/models"
)

// DefaultStartRow is the first data row of the templates (1-based); the two
// rows above it hold titles and column headers.
const DefaultStartRow = 3

// Column layout (0-based). Causa template: A,B,C carry the direct cause and
// its direct effect; E,F,G a second-level row as (parent id, own id,
// description); I,J,K a leaf row as (second-level reference, own id,
// description). The objetivo template adds a fourth column to the main group
// (direct means and direct end) and shifts the satellite groups one column
// right.

// Identifier patterns for each row type.
var (
	causaIDRe = regexp.MustCompile(`(?i)^C(\d+)$`)
	ciIDRe    = regexp.MustCompile(`(?i)^(C\d+)CI(\d+)$`)
	eiIDRe    = regexp.MustCompile(`(?i)^(C\d+CI\d+)EI(\d+)$`)

	objetivoIDRe = regexp.MustCompile(`(?i)^O(\d+)$`)
	miIDRe       = regexp.MustCompile(`(?i)^(O\d+)MI(\d+)$`)
	fiIDRe       = regexp.MustCompile(`(?i)^(O\d+MI\d+)FI(\d+)$`)
)

// ValidationError reports why an uploaded workbook was rejected, with a
// machine code the API surfaces to the client.
type ValidationError struct {
	Code models.UploadErrorCode
	Msg  string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Msg) }

func validationErr(code models.UploadErrorCode, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// idCheck ties an identifier column to its pattern and to the columns that
// must carry content for the row to count as meaningful.
type idCheck struct {
	col      int
	re       *regexp.Regexp
	descCols []int
}

// columnSpec describes the shape of one template category.
type columnSpec struct {
	allCols []int
	checks  []idCheck
}

func specFor(cat models.TemplateCategory) (columnSpec, error) {
	switch cat {
	case models.CategoryCausa:
		return columnSpec{
			allCols: []int{0, 1, 2, 4, 5, 6, 8, 9, 10},
			checks: []idCheck{
				{col: 0, re: causaIDRe, descCols: []int{1, 2}},
				{col: 5, re: ciIDRe, descCols: []int{6}},
				{col: 9, re: eiIDRe, descCols: []int{10}},
			},
		}, nil
	case models.CategoryObjetivo:
		return columnSpec{
			allCols: []int{0, 1, 2, 3, 5, 6, 7, 9, 10, 11},
			checks: []idCheck{
				{col: 0, re: objetivoIDRe, descCols: []int{1, 2, 3}},
				{col: 6, re: miIDRe, descCols: []int{7}},
				{col: 10, re: fiIDRe, descCols: []int{11}},
			},
		}, nil
	default:
		return columnSpec{}, validationErr(models.UploadErrBadType, "categoría desconocida %q", cat)
	}
}

// shifted returns a copy with every column index moved right by offset,
// for the objectives block of a combined workbook.
func (s columnSpec) shifted(offset int) columnSpec {
	out := columnSpec{
		allCols: make([]int, len(s.allCols)),
		checks:  make([]idCheck, len(s.checks)),
	}
	for i, c := range s.allCols {
		out.allCols[i] = c + offset
	}
	for i, chk := range s.checks {
		descCols := make([]int, len(chk.descCols))
		for j, d := range chk.descCols {
			descCols[j] = d + offset
		}
		out.checks[i] = idCheck{col: chk.col + offset, re: chk.re, descCols: descCols}
	}
	return out
}

func mergeSpecs(a, b columnSpec) columnSpec {
	return columnSpec{
		allCols: append(append([]int(nil), a.allCols...), b.allCols...),
		checks:  append(append([]idCheck(nil), a.checks...), b.checks...),
	}
}

// Validate checks an uploaded workbook before parsing. It distinguishes
// workbooks that are not xlsx at all, workbooks with no content, and
// workbooks whose shape does not match the template. startRow is the 1-based
// first data row; pass a value below 1 for the default.
func Validate(data []byte, cat models.TemplateCategory, startRow int) error {
	spec, err := specFor(cat)
	if err != nil {
		return err
	}
	rows, err := sheetRows(data, 0, startRow)
	if err != nil {
		return err
	}
	return checkShape(rows, spec, string(cat))
}

// ValidateCombined checks a workbook that carries a causas block and an
// objetivos block side by side on the first sheet. objetivoOffset is the
// 0-based column of the objectives block; pass a negative value for the
// default. A row is meaningful when it matches either block's shape.
func ValidateCombined(data []byte, startRow, objetivoOffset int) error {
	if objetivoOffset < 0 {
		objetivoOffset = DefaultObjetivoOffset
	}
	causa, err := specFor(models.CategoryCausa)
	if err != nil {
		return err
	}
	objetivo, err := specFor(models.CategoryObjetivo)
	if err != nil {
		return err
	}
	rows, err := sheetRows(data, 0, startRow)
	if err != nil {
		return err
	}
	return checkShape(rows, mergeSpecs(causa, objetivo.shifted(objetivoOffset)), "causas y objetivos")
}

// checkShape runs the shared rejection taxonomy over already-extracted data
// rows: empty when nothing is filled in or identifiers carry no
// descriptions, bad shape when there is content but none of it matches the
// template's identifier columns.
func checkShape(rows [][]string, spec columnSpec, label string) error {
	var totalAny, meaningful, expectedCells, idHits int
	for _, row := range rows {
		if rowHasAnyContent(row) {
			totalAny++
		}
		for _, c := range spec.allCols {
			if cell(row, c) != "" {
				expectedCells++
			}
		}
		for _, chk := range spec.checks {
			id := cell(row, chk.col)
			if id == "" || !chk.re.MatchString(id) {
				continue
			}
			idHits++
			for _, d := range chk.descCols {
				if cell(row, d) != "" {
					meaningful++
					break
				}
			}
		}
	}

	switch {
	case totalAny == 0:
		return validationErr(models.UploadErrEmpty, "la plantilla no contiene filas diligenciadas")
	case meaningful > 0:
		return nil
	case expectedCells == 0 || idHits == 0:
		return validationErr(models.UploadErrBadShape, "el archivo no corresponde a la plantilla de %s", label)
	default:
		return validationErr(models.UploadErrEmpty, "la plantilla tiene identificadores pero sin descripciones")
	}
}

// sheetRows opens the workbook and returns the data rows of one sheet,
// skipping the header rows above startRow (1-based; values below 1 select
// DefaultStartRow).
func sheetRows(data []byte, sheetIdx, startRow int) ([][]string, error) {
	if startRow < 1 {
		startRow = DefaultStartRow
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, validationErr(models.UploadErrNotXLSX, "no se pudo abrir como xlsx: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if sheetIdx >= len(sheets) {
		return nil, validationErr(models.UploadErrEmpty, "el libro no tiene hojas")
	}
	rows, err := f.GetRows(sheets[sheetIdx])
	if err != nil {
		return nil, validationErr(models.UploadErrParse, "no se pudieron leer las filas: %v", err)
	}
	if len(rows) < startRow {
		return nil, validationErr(models.UploadErrEmpty, "la plantilla no contiene filas diligenciadas")
	}
	return rows[startRow-1:], nil
}

// cell returns the trimmed value at a column index, tolerating the short rows
// excelize produces when trailing cells are blank.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func rowHasAnyContent(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
