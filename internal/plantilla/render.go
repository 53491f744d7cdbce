package plantilla

import (
	"fmt"
	"strings"

	"github.com/ideclab/asistente-mga/internal/models"
)

// CausaTreeMarkdown renders a parsed causes tree as the preview shown back
// to the user right after the upload.
func CausaTreeMarkdown(t *models.CausaTree) string {
	var b strings.Builder
	b.WriteString("### 🌳 Árbol de causas y efectos\n\n")
	if len(t.Items) == 0 {
		b.WriteString("_No se encontraron causas diligenciadas._\n")
		return b.String()
	}
	for _, c := range t.Items {
		fmt.Fprintf(&b, "- **%s** %s\n", labelOr(c.ID, "Sin código"), c.Descripcion)
		if c.EfectoDirecto.Descripcion != "" {
			fmt.Fprintf(&b, "  - Efecto directo: %s\n", c.EfectoDirecto.Descripcion)
		}
		for _, ci := range c.CausasIndirectas {
			fmt.Fprintf(&b, "  - *%s* %s\n", labelOr(ci.ID, "Sin código"), ci.Descripcion)
			for _, ei := range ci.EfectosIndirectos {
				fmt.Fprintf(&b, "    - Efecto indirecto %s: %s\n", ei.ID, ei.Descripcion)
			}
		}
	}
	return b.String()
}

// ObjetivoTreeMarkdown renders a parsed objectives tree as an upload preview.
func ObjetivoTreeMarkdown(t *models.ObjetivoTree) string {
	var b strings.Builder
	b.WriteString("### 🎯 Árbol de objetivos, medios y fines\n\n")
	if len(t.Items) == 0 {
		b.WriteString("_No se encontraron objetivos diligenciados._\n")
		return b.String()
	}
	for _, o := range t.Items {
		fmt.Fprintf(&b, "- **%s** %s\n", labelOr(o.ID, "Sin código"), o.Descripcion)
		if o.MedioDirecto.Descripcion != "" {
			fmt.Fprintf(&b, "  - Medio directo: %s\n", o.MedioDirecto.Descripcion)
		}
		if o.FinDirecto.Descripcion != "" {
			fmt.Fprintf(&b, "  - Fin directo: %s\n", o.FinDirecto.Descripcion)
		}
		for _, mi := range o.MediosIndirectos {
			fmt.Fprintf(&b, "  - *%s* %s\n", labelOr(mi.ID, "Sin código"), mi.Descripcion)
			for _, fi := range mi.FinesIndirectos {
				fmt.Fprintf(&b, "    - Fin indirecto %s: %s\n", fi.ID, fi.Descripcion)
			}
		}
	}
	return b.String()
}

// CausaOutline flattens the causes tree for the language model prompt. The
// internal identifiers stay out so the generated document never echoes them.
func CausaOutline(t *models.CausaTree) string {
	var b strings.Builder
	for _, c := range t.Items {
		if c.Descripcion != "" {
			fmt.Fprintf(&b, "- Causa directa: %s\n", c.Descripcion)
		}
		if c.EfectoDirecto.Descripcion != "" {
			fmt.Fprintf(&b, "  - Efecto directo: %s\n", c.EfectoDirecto.Descripcion)
		}
		for _, ci := range c.CausasIndirectas {
			if ci.Descripcion != "" {
				fmt.Fprintf(&b, "  - Causa indirecta: %s\n", ci.Descripcion)
			}
			for _, ei := range ci.EfectosIndirectos {
				if ei.Descripcion != "" {
					fmt.Fprintf(&b, "    - Efecto indirecto: %s\n", ei.Descripcion)
				}
			}
		}
	}
	return b.String()
}

// ObjetivoOutline flattens the objectives tree for the language model prompt.
func ObjetivoOutline(t *models.ObjetivoTree) string {
	var b strings.Builder
	for _, o := range t.Items {
		if o.Descripcion != "" {
			fmt.Fprintf(&b, "- Objetivo: %s\n", o.Descripcion)
		}
		if o.MedioDirecto.Descripcion != "" {
			fmt.Fprintf(&b, "  - Medio directo: %s\n", o.MedioDirecto.Descripcion)
		}
		if o.FinDirecto.Descripcion != "" {
			fmt.Fprintf(&b, "  - Fin directo: %s\n", o.FinDirecto.Descripcion)
		}
		for _, mi := range o.MediosIndirectos {
			if mi.Descripcion != "" {
				fmt.Fprintf(&b, "  - Medio indirecto: %s\n", mi.Descripcion)
			}
			for _, fi := range mi.FinesIndirectos {
				if fi.Descripcion != "" {
					fmt.Fprintf(&b, "    - Fin indirecto: %s\n", fi.Descripcion)
				}
			}
		}
	}
	return b.String()
}

func labelOr(id, fallback string) string {
	if id == "" || id == OrphanID {
		return fallback
	}
	return id
}
