// Package flow implements the conversation flow engine for the Asistente MGA.
package flow

import "github.com/ideclab/asistente-mga/internal/models"

// StartStep is the designated welcome step of the conversation.
const StartStep = "intro_bienvenida"

// Names of the steps that receive non-linear treatment. Kept as constants so
// tests and handlers never spell a step id twice.
const (
	StepGateCiclo       = "gate_1_ciclo"
	StepGateHerramienta = "gate_2_herramienta"
	StepEntidad         = "pregunta_3_entidad"
	StepRol             = "rol_abierto"
	StepVertical        = "elige_vertical"
	StepComponentes     = "idec_componentes"
	StepNombreProyecto  = "nombre_proyecto"
	StepUploadCausas    = "upload_causas"
	StepUploadObjetivos = "upload_objetivos"
	StepCadenaValor     = "cadena_valor"
)

// IDECComponents are the selectable components of the IDEC multi-select step.
var IDECComponents = []string{
	"Gobernanza de datos",
	"Interoperabilidad",
	"Herramientas técnicas y tecnológicas",
	"Seguridad y privacidad de datos",
	"Datos",
	"Aprovechamiento de datos",
}

// DefaultSteps returns the step table of the MGA/IDEC wizard. Branching
// behavior lives in each step's tagged variant, not in the dispatcher.
func DefaultSteps() []models.Step {
	return []models.Step{
		{
			ID:   StartStep,
			Kind: models.StepKindGate,
			Prompt: "👋 ¡Hola! Soy tu asistente virtual para ayudarte en la formulación de proyectos de inversión relacionados con Infraestructura de Datos (IDEC) o Inteligencia Artificial (IA). Vamos a empezar paso a paso.\n\n" +
				"Te acompañaré paso a paso para estructurar tu proyecto conforme a la Metodología General Ajustada (MGA) del Departamento Nacional de Planeación.\n\n" +
				"🧰 Te haré preguntas clave para estructurar el proyecto.\n\n" +
				"❓ Antes de continuar, ¿todo está claro? o ¿tienes algunas preguntas?",
			Options: []string{
				"Sí, entiendo el proceso y deseo continuar",
				"Tengo dudas respecto al proceso, me gustaría resolverlas antes de empezar",
			},
			YesNext: StepEntidad,
			NoNext:  StepGateCiclo,
		},
		{
			ID:           StepGateCiclo,
			Kind:         models.StepKindGate,
			Prompt:       "🔎 ¿Conoces el ciclo de inversión pública y las fases que lo componen?",
			Options:      []string{"Sí, lo conozco", "No, no lo conozco"},
			YesNext:      StepGateHerramienta,
			DivertTopic:  "Explica el ciclo de inversión pública y sus fases principales.",
			DivertResume: StepGateHerramienta,
		},
		{
			ID:           StepGateHerramienta,
			Kind:         models.StepKindGate,
			Prompt:       "🧭 ¿Comprende que esta herramienta es de orientación y que el borrador resultante puede emplearse como insumo o apoyo en la etapa de formulación?",
			Options:      []string{"Sí, lo comprendo", "No, no lo tengo claro"},
			YesNext:      StepEntidad,
			DivertTopic:  "Explica por qué esta herramienta es de orientación y cómo el borrador sirve como insumo en formulación (MGA).",
			DivertResume: StepEntidad,
		},
		{
			ID:     StepEntidad,
			Kind:   models.StepKindLinear,
			Prompt: "🏢 ¿Cuál es el nombre de tu entidad?",
			Next:   StepRol,
		},
		{
			ID:     StepRol,
			Kind:   models.StepKindLinear,
			Prompt: "👤 ¿Cuál es su rol dentro de la entidad (por ejemplo: Director de área, Coordinador, Profesional especializado, Analista, Asesor, Técnico operativo, Contratista de apoyo)?",
			Next:   StepVertical,
		},
		{
			ID:        StepVertical,
			Kind:      models.StepKindSelect,
			Prompt:    "💡 ¿Deseas construir un proyecto de inversión asociando componentes de tecnologías de la información y las comunicaciones en temas de Infraestructura de datos (IDEC) o Inteligencia Artificial (IA)?",
			Options:   []string{"Sí, en IDEC", "Sí, en IA", "No (Cierre de la conversación)"},
			RecordKey: "vertical",
			Routes: []models.SelectRoute{
				{Match: "idec", Next: StepComponentes, Record: "IDEC"},
				{Match: "ia", Next: StepNombreProyecto, Record: "IA"},
			},
			CloseMessage: "❌ Este asistente solo atiende proyectos **IDEC/IA**. Se cierra la conversación. Usa *Reiniciar* para empezar de nuevo.",
		},
		{
			ID:               StepComponentes,
			Kind:             models.StepKindMultiSelect,
			Prompt:           "📚 La siguiente es la lista de los componentes que integran la IDEC, por favor selecciona los componentes que deseas incluir en tu proyecto de inversión. Selección múltiple :\n",
			Next:             StepNombreProyecto,
			MultiSelectItems: IDECComponents,
			SubmitText:       "Confirmar",
		},
		{
			ID:     StepNombreProyecto,
			Kind:   models.StepKindLinear,
			Prompt: "📝 ¿Cuál es el nombre del proyecto de inversión?",
			Next:   "poblacion_afectada",
		},
		{
			ID:     "poblacion_afectada",
			Kind:   models.StepKindLinear,
			Prompt: "👥 ¿Cuál es la población afectada por el proyecto de inversión? Descríbela y asocia un número",
			Next:   "poblacion_objetivo",
		},
		{
			ID:     "poblacion_objetivo",
			Kind:   models.StepKindLinear,
			Prompt: "🎯 ¿Cuál es la población objetivo que pretende ser beneficiada de la intervención que realiza el proyecto de inversión? Descríbela y asocia un número",
			Next:   "localizacion",
		},
		{
			ID:     "localizacion",
			Kind:   models.StepKindLinear,
			Prompt: "📍 ¿Cuál es la localización en la que se enmarca el proyecto (Ejemplo: Territorial-Territorio Norte, nacional-Colombia, departamental-Cundinamarca)?",
			Next:   "problema_oportunidad",
		},
		{
			ID:     "problema_oportunidad",
			Kind:   models.StepKindLinear,
			Prompt: "🧩 ¿Cuál es la problemática o la oportunidad que tu proyecto de inversión busca atender o resolver?",
			Next:   StepUploadCausas,
		},
		{
			ID:       StepUploadCausas,
			Kind:     models.StepKindUpload,
			Prompt:   "📄 Cargue la plantilla diligenciada con las causas estructuradas. Recuerde que cada causa debe incluir dos causas indirectas, un efecto directo y un efecto indirecto.",
			Next:     StepUploadObjetivos,
			Category: models.CategoryCausa,
		},
		{
			ID:       StepUploadObjetivos,
			Kind:     models.StepKindUpload,
			Prompt:   "🎯 Cargue la plantilla diligenciada con los objetivos estructurados. Recuerde que cada objetivo debe incluir un medio directo, al menos un medio indirecto, un fin directo y un fin indirecto.",
			Next:     StepCadenaValor,
			Category: models.CategoryObjetivo,
		},
		{
			ID:     StepCadenaValor,
			Kind:   models.StepKindLinear,
			Prompt: "🔗 ¿Cómo se constituye tu cadena de valor?",
			Next:   models.StepTerminal,
		},
	}
}
