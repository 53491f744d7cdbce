package plantilla

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ideclab/asistente-mga/internal/models"
)

// TemplateName returns the download filename for a template category.
func TemplateName(cat models.TemplateCategory) string {
	if cat == models.CategoryObjetivo {
		return "PlantillaObjetivo.xlsx"
	}
	return "PlantillaCausa.xlsx"
}

// TemplateXLSX generates the blank workbook users fill in and upload. Data
// starts at DefaultStartRow; the two header rows name the cell groups and
// their identifier conventions.
func TemplateXLSX(cat models.TemplateCategory) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"

	type header struct {
		cell  string
		value string
	}
	var headers []header
	switch cat {
	case models.CategoryCausa:
		headers = []header{
			{"A1", "Causas directas"},
			{"E1", "Causas indirectas"},
			{"I1", "Efectos indirectos"},
			{"A2", "ID (C1, C2, …)"},
			{"B2", "Descripción de la causa"},
			{"C2", "Efecto directo"},
			{"E2", "ID de la causa padre (C1, …)"},
			{"F2", "ID (C1CI1, C1CI2, …)"},
			{"G2", "Descripción de la causa indirecta"},
			{"I2", "ID de la causa indirecta (C1CI1, …)"},
			{"J2", "ID (C1CI1EI1, …)"},
			{"K2", "Descripción del efecto indirecto"},
		}
	case models.CategoryObjetivo:
		headers = []header{
			{"A1", "Objetivos"},
			{"F1", "Medios indirectos"},
			{"J1", "Fines indirectos"},
			{"A2", "ID (O1, O2, …)"},
			{"B2", "Descripción del objetivo"},
			{"C2", "Medio directo"},
			{"D2", "Fin directo"},
			{"F2", "ID del objetivo padre (O1, …)"},
			{"G2", "ID (O1MI1, O1MI2, …)"},
			{"H2", "Descripción del medio indirecto"},
			{"J2", "ID del medio indirecto (O1MI1, …)"},
			{"K2", "ID (O1MI1FI1, …)"},
			{"L2", "Descripción del fin indirecto"},
		}
	default:
		return nil, fmt.Errorf("no template for category %q", cat)
	}

	for _, h := range headers {
		if err := f.SetCellValue(sheet, h.cell, h.value); err != nil {
			return nil, fmt.Errorf("write template header %s: %w", h.cell, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize template: %w", err)
	}
	return buf.Bytes(), nil
}
