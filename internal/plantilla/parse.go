package plantilla

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ideclab/asistente-mga/internal/models"
)

// OrphanID labels the synthetic root that adopts leaf rows whose parent
// reference never appears in the workbook. It is surfaced only when it ends
// up with descriptive content.
const OrphanID = "*"

// DefaultObjetivoOffset is the 0-based column where the objectives block
// starts in a combined template (column M).
const DefaultObjetivoOffset = 12

// Tree type tags of the persisted JSON.
const (
	TipoCausas    = "causas"
	TipoObjetivos = "objetivos"
)

// ParseCausas parses a causa workbook into a tree. Rows may appear in any
// order: the first pass collects typed records, the second assembles the
// hierarchy by id lookup. startRow is the 1-based first data row; pass a
// value below 1 for the default.
func ParseCausas(data []byte, startRow int) (*models.CausaTree, error) {
	rows, err := sheetRows(data, 0, startRow)
	if err != nil {
		return nil, err
	}
	return parseCausaRows(rows, 0), nil
}

// ParseObjetivos parses an objetivo workbook into a tree.
func ParseObjetivos(data []byte, startRow int) (*models.ObjetivoTree, error) {
	rows, err := sheetRows(data, 0, startRow)
	if err != nil {
		return nil, err
	}
	return parseObjetivoRows(rows, 0), nil
}

// CombinedSheet is one sheet of a combined template parsed into both trees.
type CombinedSheet struct {
	Sheet string
	Trees models.TreePair
}

// ParseCombined parses a workbook whose sheets each carry a causas block and
// an objetivos block side by side. startRow is the 1-based first data row and
// objetivoOffset the 0-based column of the objectives block; pass negative
// values for the defaults.
func ParseCombined(data []byte, startRow, objetivoOffset int) ([]CombinedSheet, error) {
	if startRow < 1 {
		startRow = DefaultStartRow
	}
	if objetivoOffset < 0 {
		objetivoOffset = DefaultObjetivoOffset
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, validationErr(models.UploadErrNotXLSX, "no se pudo abrir como xlsx: %v", err)
	}
	defer f.Close()

	var out []CombinedSheet
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, validationErr(models.UploadErrParse, "hoja %q: %v", sheet, err)
		}
		if len(rows) < startRow {
			continue
		}
		data := rows[startRow-1:]
		out = append(out, CombinedSheet{
			Sheet: sheet,
			Trees: models.TreePair{
				Causas:    parseCausaRows(data, 0),
				Objetivos: parseObjetivoRows(data, objetivoOffset),
			},
		})
	}
	if len(out) == 0 {
		return nil, validationErr(models.UploadErrEmpty, "el libro no contiene hojas con datos")
	}
	return out, nil
}

// rootRecord, childRecord and leafRecord are the flat typed rows of the
// first pass. Children and leaves carry an explicit parent reference read
// from their own column group.
type rootRecord struct {
	id     string
	desc   string
	extras []string
}

type childRecord struct {
	parent string
	id     string
	desc   string
}

type leafRecord struct {
	parentRef string
	id        string
	desc      string
}

func upperCell(row []string, idx int) string {
	return strings.ToUpper(cell(row, idx))
}

// collectRecords runs the first pass over one column block. rootExtras names
// the root columns beyond id and description (direct effect, or direct
// means/ends); childBase and leafBase are the first columns of the
// second-level and leaf groups.
func collectRecords(rows [][]string, base int, rootExtras []int, childBase, leafBase int) (roots []rootRecord, children []childRecord, leaves []leafRecord) {
	seenRoot := make(map[string]int)
	seenChild := make(map[string]int)
	for _, row := range rows {
		if id := upperCell(row, base); id != "" {
			extras := make([]string, 0, len(rootExtras))
			for _, c := range rootExtras {
				extras = append(extras, cell(row, base+c))
			}
			r := rootRecord{id: id, desc: cell(row, base+1), extras: extras}
			if i, ok := seenRoot[id]; ok {
				mergeRoot(&roots[i], r)
			} else {
				seenRoot[id] = len(roots)
				roots = append(roots, r)
			}
		}
		if parent, id := upperCell(row, base+childBase), upperCell(row, base+childBase+1); parent != "" && id != "" {
			c := childRecord{parent: parent, id: id, desc: cell(row, base+childBase+2)}
			if i, ok := seenChild[id]; ok {
				if children[i].desc == "" {
					children[i].desc = c.desc
				}
			} else {
				seenChild[id] = len(children)
				children = append(children, c)
			}
		}
		if ref, id := upperCell(row, base+leafBase), upperCell(row, base+leafBase+1); ref != "" && id != "" {
			leaves = append(leaves, leafRecord{parentRef: ref, id: id, desc: cell(row, base+leafBase+2)})
		}
	}
	return roots, children, leaves
}

func mergeRoot(dst *rootRecord, src rootRecord) {
	if dst.desc == "" {
		dst.desc = src.desc
	}
	for i := range dst.extras {
		if dst.extras[i] == "" && i < len(src.extras) {
			dst.extras[i] = src.extras[i]
		}
	}
}

func parseCausaRows(rows [][]string, base int) *models.CausaTree {
	roots, children, leaves := collectRecords(rows, base, []int{2}, 4, 8)

	byRoot := make(map[string]*models.Causa)
	var order []string
	addRoot := func(id string) *models.Causa {
		if c, ok := byRoot[id]; ok {
			return c
		}
		c := &models.Causa{ID: id}
		byRoot[id] = c
		order = append(order, id)
		return c
	}

	for _, r := range roots {
		c := addRoot(r.id)
		if c.Descripcion == "" {
			c.Descripcion = r.desc
		}
		if c.EfectoDirecto.Descripcion == "" && len(r.extras) > 0 {
			c.EfectoDirecto.Descripcion = r.extras[0]
		}
	}

	// Second-level rows name their parent explicitly; a parent the sheet
	// only references in passing becomes a stub root, pruned later unless
	// its subtree carries content.
	ciIndex := make(map[string]*models.CausaIndirecta)
	childIDs := make(map[string][]string)
	for _, ch := range children {
		addRoot(ch.parent)
		ciIndex[ch.id] = &models.CausaIndirecta{ID: ch.id, Descripcion: ch.desc}
		childIDs[ch.parent] = append(childIDs[ch.parent], ch.id)
	}

	for _, lf := range leaves {
		ci, ok := ciIndex[lf.parentRef]
		if !ok {
			addRoot(OrphanID)
			ci = &models.CausaIndirecta{ID: lf.parentRef}
			ciIndex[lf.parentRef] = ci
			childIDs[OrphanID] = append(childIDs[OrphanID], lf.parentRef)
		}
		ci.EfectosIndirectos = append(ci.EfectosIndirectos, models.Nodo{ID: lf.id, Descripcion: lf.desc})
	}

	tree := &models.CausaTree{Tipo: TipoCausas}
	for _, id := range sortedIDs(order) {
		root := byRoot[id]
		for _, cid := range childIDs[id] {
			root.CausasIndirectas = append(root.CausasIndirectas, *ciIndex[cid])
		}
		if !causaHasContent(root) {
			continue
		}
		tree.Items = append(tree.Items, *root)
	}
	return tree
}

func parseObjetivoRows(rows [][]string, base int) *models.ObjetivoTree {
	roots, children, leaves := collectRecords(rows, base, []int{2, 3}, 5, 9)

	byRoot := make(map[string]*models.Objetivo)
	var order []string
	addRoot := func(id string) *models.Objetivo {
		if o, ok := byRoot[id]; ok {
			return o
		}
		o := &models.Objetivo{ID: id}
		byRoot[id] = o
		order = append(order, id)
		return o
	}

	for _, r := range roots {
		o := addRoot(r.id)
		if o.Descripcion == "" {
			o.Descripcion = r.desc
		}
		if o.MedioDirecto.Descripcion == "" && len(r.extras) > 0 {
			o.MedioDirecto.Descripcion = r.extras[0]
		}
		if o.FinDirecto.Descripcion == "" && len(r.extras) > 1 {
			o.FinDirecto.Descripcion = r.extras[1]
		}
	}

	miIndex := make(map[string]*models.MedioIndirecto)
	childIDs := make(map[string][]string)
	for _, ch := range children {
		addRoot(ch.parent)
		miIndex[ch.id] = &models.MedioIndirecto{ID: ch.id, Descripcion: ch.desc}
		childIDs[ch.parent] = append(childIDs[ch.parent], ch.id)
	}

	for _, lf := range leaves {
		mi, ok := miIndex[lf.parentRef]
		if !ok {
			addRoot(OrphanID)
			mi = &models.MedioIndirecto{ID: lf.parentRef}
			miIndex[lf.parentRef] = mi
			childIDs[OrphanID] = append(childIDs[OrphanID], lf.parentRef)
		}
		mi.FinesIndirectos = append(mi.FinesIndirectos, models.Nodo{ID: lf.id, Descripcion: lf.desc})
	}

	tree := &models.ObjetivoTree{Tipo: TipoObjetivos}
	for _, id := range sortedIDs(order) {
		root := byRoot[id]
		for _, mid := range childIDs[id] {
			root.MediosIndirectos = append(root.MediosIndirectos, *miIndex[mid])
		}
		if !objetivoHasContent(root) {
			continue
		}
		tree.Items = append(tree.Items, *root)
	}
	return tree
}

func causaHasContent(c *models.Causa) bool {
	if c.Descripcion != "" || c.EfectoDirecto.Descripcion != "" {
		return true
	}
	for _, ci := range c.CausasIndirectas {
		if ci.Descripcion != "" {
			return true
		}
		for _, ei := range ci.EfectosIndirectos {
			if ei.Descripcion != "" {
				return true
			}
		}
	}
	return false
}

func objetivoHasContent(o *models.Objetivo) bool {
	if o.Descripcion != "" || o.MedioDirecto.Descripcion != "" || o.FinDirecto.Descripcion != "" {
		return true
	}
	for _, mi := range o.MediosIndirectos {
		if mi.Descripcion != "" {
			return true
		}
		for _, fi := range mi.FinesIndirectos {
			if fi.Descripcion != "" {
				return true
			}
		}
	}
	return false
}

// sortedIDs orders root identifiers numerically with the orphan placeholder
// last.
func sortedIDs(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i] == OrphanID {
			return false
		}
		if out[j] == OrphanID {
			return true
		}
		return idLess(out[i], out[j])
	})
	return out
}

// idLess compares identifiers by their embedded numbers, falling back to a
// lexical comparison so C2 sorts before C10.
func idLess(a, b string) bool {
	na, nb := idNumbers(a), idNumbers(b)
	for i := 0; i < len(na) && i < len(nb); i++ {
		if na[i] != nb[i] {
			return na[i] < nb[i]
		}
	}
	if len(na) != len(nb) {
		return len(na) < len(nb)
	}
	return a < b
}

func idNumbers(s string) []int {
	var nums []int
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, _ := strconv.Atoi(s[start:i])
			nums = append(nums, n)
			start = -1
		}
	}
	if start >= 0 {
		n, _ := strconv.Atoi(s[start:])
		nums = append(nums, n)
	}
	return nums
}
