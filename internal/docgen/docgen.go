// Package docgen assembles the final MGA project draft from the recorded
// answers and the parsed template trees.
package docgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/ideclab/asistente-mga/internal/genai"
	"github.com/ideclab/asistente-mga/internal/models"
	"github.com/ideclab/asistente-mga/internal/plantilla"
)

// DefaultTitle names the document when the project name was never recorded.
const DefaultTitle = "Proyecto de Inversión - IDEC/IA"

// Asker is the completion surface the generator needs; satisfied by
// *genai.Client and by test fakes.
type Asker interface {
	AskMarkdown(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// Generator writes the draft document for a finished session.
type Generator struct {
	llm          Asker
	documentsDir string
	treesDir     string
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// withClock fixes the timestamp used in generated filenames, for tests.
func withClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator builds a Generator that writes documents under documentsDir
// and reads persisted trees from treesDir.
func NewGenerator(llm Asker, documentsDir, treesDir string, opts ...Option) *Generator {
	g := &Generator{
		llm:          llm,
		documentsDir: documentsDir,
		treesDir:     treesDir,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds the prompt from the response map and both trees, asks the
// model once (continuation handled by the client) and writes the markdown
// artifact. It returns the path of the written file.
func (g *Generator) Generate(ctx context.Context, responses map[string]models.Answer) (string, error) {
	causas := g.loadCausaTree(responses)
	objetivos := g.loadObjetivoTree(responses)

	prompt, err := buildPrompt(responses, causas, objetivos)
	if err != nil {
		return "", err
	}
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(genai.SystemPrimer + "\nResponde exclusivamente en Markdown válido."),
		openai.UserMessage(prompt),
	}
	md, err := g.llm.AskMarkdown(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("document completion: %w", err)
	}

	title := DefaultTitle
	if t := responses["nombre_proyecto"].Text; t != "" {
		title = t
	}
	content := RenderDocument(title, md)

	if err := os.MkdirAll(g.documentsDir, 0o755); err != nil {
		return "", fmt.Errorf("create documents dir: %w", err)
	}
	name := fmt.Sprintf("proyecto_inversion_%d.md", g.now().Unix())
	path := filepath.Join(g.documentsDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	g.logger.Info("Docgen.Generate: document written", "path", path)
	return path, nil
}

func (g *Generator) loadCausaTree(responses map[string]models.Answer) *models.CausaTree {
	name := responses["upload_causa"].Text
	if name == "" || g.treesDir == "" {
		return nil
	}
	path := filepath.Join(g.treesDir, plantilla.TreeJSONName(name))
	tree, err := plantilla.LoadCausaTree(path)
	if err != nil {
		g.logger.Warn("Docgen.Generate: causa tree unavailable", "path", path, "error", err)
		return nil
	}
	return tree
}

func (g *Generator) loadObjetivoTree(responses map[string]models.Answer) *models.ObjetivoTree {
	name := responses["upload_objetivo"].Text
	if name == "" || g.treesDir == "" {
		return nil
	}
	path := filepath.Join(g.treesDir, plantilla.TreeJSONName(name))
	tree, err := plantilla.LoadObjetivoTree(path)
	if err != nil {
		g.logger.Warn("Docgen.Generate: objetivo tree unavailable", "path", path, "error", err)
		return nil
	}
	return tree
}

// buildPrompt enforces the fixed section order and keeps internal tree codes
// out of the generated text.
func buildPrompt(responses map[string]models.Answer, causas *models.CausaTree, objetivos *models.ObjetivoTree) (string, error) {
	clean := make(map[string]interface{}, len(responses))
	for k, v := range responses {
		if strings.HasPrefix(k, "upload_") {
			continue
		}
		if len(v.Items) > 0 {
			clean[k] = v.Items
		} else {
			clean[k] = v.Text
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(clean); err != nil {
		return "", fmt.Errorf("encode responses: %w", err)
	}

	causasOutline := "(sin causas)"
	if causas != nil && len(causas.Items) > 0 {
		causasOutline = plantilla.CausaOutline(causas)
	}
	objetivosOutline := "(sin objetivos)"
	if objetivos != nil && len(objetivos.Items) > 0 {
		objetivosOutline = plantilla.ObjetivoOutline(objetivos)
	}

	var b strings.Builder
	b.WriteString("Eres un experto en formulación de proyectos bajo la Metodología General Ajustada (MGA) del Departamento Nacional de Planeación en Colombia (DNP). ")
	b.WriteString("Redacta en ESPAÑOL y devuelve contenido en Markdown estructurado con #, ##, ### y #### (sin códigos C1/O1 visibles; no uses paréntesis con IDs).\n\n")
	b.WriteString("ORDEN OBLIGATORIO DE SECCIONES:\n")
	for _, s := range SectionOrder {
		b.WriteString("## " + s + "\n")
	}
	b.WriteString("\nINSTRUCCIONES:\n")
	b.WriteString("- Integra los datos del usuario y los árboles provistos a continuación.\n")
	b.WriteString("- En 'Marco del problema: Causas y efectos': para cada causa, usa '### Causa' y un párrafo explicativo que conecte con la razón del proyecto; luego '#### Efecto directo' con explicación; después '#### Causas indirectas' listadas y bajo cada una viñetas con 'Efecto indirecto: ...'. No muestres códigos de IDs.\n")
	b.WriteString("- En 'Marco de objetivos: Medios y fines': para cada objetivo, usa '### Objetivo' con explicación; '#### Medio directo' y '#### Fin directo'; luego '#### Medios indirectos' listados y bajo cada uno viñetas con 'Fin indirecto: ...'. Sin códigos.\n")
	b.WriteString("- En 'Componentes del proyecto' incluye los componentes seleccionados por el usuario si existen; enuméralos con viñetas y explica brevemente su papel.\n")
	b.WriteString("- Mantén coherencia narrativa entre problema y objetivos, y cierra con una conclusión que justifique por qué el proyecto es sólido para recibir inversión.\n\n")
	b.WriteString("Datos del usuario (JSON):\n")
	b.Write(buf.Bytes())
	b.WriteString("\nÁrbol de causas/efectos (outline):\n" + causasOutline + "\n\n")
	b.WriteString("Árbol de objetivos/medios/fines (outline):\n" + objetivosOutline + "\n\n")
	b.WriteString("RECUERDA: No incluyas códigos como C1, CI1, O1, MI1 en los títulos ni en el texto. ")
	b.WriteString("Verifica consistencia numérica, define términos confusos y resume hallazgos clave al final de cada sección.")
	return b.String(), nil
}

// SectionOrder is the mandatory section sequence of the generated draft.
var SectionOrder = []string{
	"Introducción",
	"Planteamiento del problema u oportunidad",
	"Población afectada y objetivo",
	"Localización",
	"Marco del problema: Causas y efectos",
	"Marco de objetivos: Medios y fines",
	"Componentes del proyecto",
	"Cadena de valor",
	"Conclusión y justificación final",
}
