package flow

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ideclab/asistente-mga/internal/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(DefaultSteps(), slog.Default())
	if err != nil {
		t.Fatalf("NewEngine returned error: %v", err)
	}
	return eng
}

func TestNewEngineValidatesTable(t *testing.T) {
	if _, err := NewEngine(DefaultSteps(), nil); err != nil {
		t.Fatalf("default table should validate, got %v", err)
	}

	bad := []models.Step{{ID: StartStep, Kind: models.StepKindLinear, Next: "nowhere"}}
	if _, err := NewEngine(bad, nil); !errors.Is(err, models.ErrDanglingSuccessor) {
		t.Errorf("expected ErrDanglingSuccessor, got %v", err)
	}

	dup := []models.Step{
		{ID: StartStep, Kind: models.StepKindLinear, Next: models.StepTerminal},
		{ID: StartStep, Kind: models.StepKindLinear, Next: models.StepTerminal},
	}
	if _, err := NewEngine(dup, nil); !errors.Is(err, models.ErrDuplicateStepID) {
		t.Errorf("expected ErrDuplicateStepID, got %v", err)
	}

	if _, err := NewEngine([]models.Step{{ID: "x", Kind: models.StepKindLinear, Next: models.StepTerminal}}, nil); !errors.Is(err, models.ErrNoStartStep) {
		t.Errorf("expected ErrNoStartStep, got %v", err)
	}
}

func TestRenderUnknownStep(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.Render("no_such_step"); !errors.Is(err, models.ErrUnknownStep) {
		t.Errorf("expected ErrUnknownStep, got %v", err)
	}
}

func TestRenderMultiSelectStep(t *testing.T) {
	eng := newTestEngine(t)
	p, err := eng.Render(StepComponentes)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if p.Format != "markdown" {
		t.Errorf("format = %q, want markdown", p.Format)
	}
	if p.MultiSelect == nil || len(p.MultiSelect.Items) != len(IDECComponents) {
		t.Fatalf("multiselect spec missing or wrong item count: %+v", p.MultiSelect)
	}
	if p.MultiSelect.SubmitText != "Confirmar" {
		t.Errorf("submit text = %q", p.MultiSelect.SubmitText)
	}
}

func TestRenderUploadStepCarriesDownloadURL(t *testing.T) {
	eng := newTestEngine(t)
	p, err := eng.Render(StepUploadCausas)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if p.Upload == nil || !p.Upload.ExpectUpload {
		t.Fatalf("upload spec missing: %+v", p.Upload)
	}
	if p.Upload.Tipo != "causa" || p.Upload.DownloadURL != "/plantilla/causa" {
		t.Errorf("upload spec = %+v", p.Upload)
	}
	if !strings.Contains(p.Response, "/plantilla/causa") {
		t.Errorf("prompt should embed the download link, got %q", p.Response)
	}
}

func TestLinearStepEmptyInputReprompts(t *testing.T) {
	eng := newTestEngine(t)
	s := models.NewSession("s1", StepEntidad)
	p, eff, err := eng.Advance(&s, "   ")
	if err != nil {
		t.Fatalf("Advance returned error: %v", err)
	}
	if eff.Kind != EffectNone {
		t.Errorf("effect = %v, want none", eff.Kind)
	}
	if s.CurrentStep != StepEntidad {
		t.Errorf("empty input must not move the session, now at %q", s.CurrentStep)
	}
	if _, ok := s.Responses[StepEntidad]; ok {
		t.Error("empty input must not be recorded")
	}
	if !strings.Contains(p.Response, "escribe una respuesta") {
		t.Errorf("expected re-prompt hint, got %q", p.Response)
	}
}

func TestLinearStepRecordsAndMoves(t *testing.T) {
	eng := newTestEngine(t)
	s := models.NewSession("s1", StepEntidad)
	p, _, err := eng.Advance(&s, "Ministerio TIC")
	if err != nil {
		t.Fatalf("Advance returned error: %v", err)
	}
	if got := s.Responses[StepEntidad].Text; got != "Ministerio TIC" {
		t.Errorf("recorded %q", got)
	}
	if s.CurrentStep != StepRol || p.CurrentStep != StepRol {
		t.Errorf("expected move to %q, session at %q payload %q", StepRol, s.CurrentStep, p.CurrentStep)
	}
}

func TestIntroGateQuickStart(t *testing.T) {
	eng := newTestEngine(t)
	welcome, err := eng.Render(StartStep)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	for _, msg := range []string{"iniciar", "Start", "quiero INICIAR ya"} {
		s := models.NewSession("s1", StartStep)
		p, eff, err := eng.Advance(&s, msg)
		if err != nil {
			t.Fatalf("Advance(%q) error: %v", msg, err)
		}
		if eff.Kind != EffectNone || s.CurrentStep != StartStep {
			t.Errorf("Advance(%q): effect %v, at %q, want clean welcome replay", msg, eff.Kind, s.CurrentStep)
		}
		if p.Response != welcome.Response {
			t.Errorf("Advance(%q) should replay the welcome prompt unchanged", msg)
		}
	}
}

func TestGateAccentedYes(t *testing.T) {
	eng := newTestEngine(t)
	s := models.NewSession("s1", StartStep)
	if _, _, err := eng.Advance(&s, "sí"); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if s.CurrentStep != StepEntidad {
		t.Errorf("accented sí should advance, at %q", s.CurrentStep)
	}
}

func TestGateExactOptionLabels(t *testing.T) {
	eng := newTestEngine(t)
	s := models.NewSession("s1", StartStep)
	// The second option is the negative route even though it contains no "no".
	if _, _, err := eng.Advance(&s, "Tengo dudas respecto al proceso, me gustaría resolverlas antes de empezar"); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if s.CurrentStep != StepGateCiclo {
		t.Errorf("negative option should route to %q, at %q", StepGateCiclo, s.CurrentStep)
	}
}

func TestGateUnmatchedInputReprompts(t *testing.T) {
	eng := newTestEngine(t)
	s := models.NewSession("s1", StartStep)
	p, eff, err := eng.Advance(&s, "tal vez")
	if err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if eff.Kind != EffectNone || s.CurrentStep != StartStep {
		t.Errorf("unmatched gate input must re-prompt in place, at %q", s.CurrentStep)
	}
	if !strings.Contains(p.Response, "Sí") {
		t.Errorf("re-prompt should repeat the question, got %q", p.Response)
	}
}

func TestGateDivertsToFreeChat(t *testing.T) {
	eng := newTestEngine(t)
	s := models.NewSession("s1", StepGateCiclo)
	_, eff, err := eng.Advance(&s, "No, no lo conozco")
	if err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if eff.Kind != EffectDivert || eff.Topic == "" {
		t.Fatalf("expected divert effect with topic, got %+v", eff)
	}
	if s.Mode != models.ModeAlt {
		t.Errorf("mode = %q, want alt", s.Mode)
	}
	if s.ResumeStep != StepGateHerramienta {
		t.Errorf("resume step = %q, want %q", s.ResumeStep, StepGateHerramienta)
	}
}

func TestResumePayloadConsumesMarker(t *testing.T) {
	eng := newTestEngine(t)
	s := models.NewSession("s1", StepGateCiclo)
	s.Mode = models.ModeAlt
	s.ResumeStep = StepGateHerramienta
	eng.ExitChat(&s)
	if !s.ResumeFromChat {
		t.Fatal("ExitChat should arm the one-shot resume marker")
	}
	p, err := eng.ResumePayload(&s)
	if err != nil {
		t.Fatalf("ResumePayload error: %v", err)
	}
	if p.CurrentStep != StepGateHerramienta || s.CurrentStep != StepGateHerramienta {
		t.Errorf("resume landed at %q / %q", p.CurrentStep, s.CurrentStep)
	}
	if s.Mode != models.ModeFlow {
		t.Errorf("mode = %q, want flow", s.Mode)
	}
	if s.ResumeStep != "" {
		t.Errorf("resume marker should be consumed, still %q", s.ResumeStep)
	}
	if s.ResumeFromChat {
		t.Error("one-shot marker should be consumed")
	}
}

func TestSelectRoutesAndRecords(t *testing.T) {
	eng := newTestEngine(t)

	s := models.NewSession("s1", StepVertical)
	if _, _, err := eng.Advance(&s, "Sí, en IDEC"); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if s.CurrentStep != StepComponentes {
		t.Errorf("IDEC should route to %q, at %q", StepComponentes, s.CurrentStep)
	}
	if got := s.Responses["vertical"].Text; got != "IDEC" {
		t.Errorf("vertical = %q", got)
	}

	s2 := models.NewSession("s2", StepVertical)
	if _, _, err := eng.Advance(&s2, "Sí, en IA"); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if s2.CurrentStep != StepNombreProyecto {
		t.Errorf("IA should skip components, at %q", s2.CurrentStep)
	}
	if got := s2.Responses["vertical"].Text; got != "IA" {
		t.Errorf("vertical = %q", got)
	}
}

func TestSelectCloseOnDecline(t *testing.T) {
	eng := newTestEngine(t)
	for _, msg := range []string{"No (Cierre de la conversación)", "no", "no gracias"} {
		s := models.NewSession("s1", StepVertical)
		p, eff, err := eng.Advance(&s, msg)
		if err != nil {
			t.Fatalf("Advance(%q) error: %v", msg, err)
		}
		if eff.Kind != EffectClose {
			t.Errorf("Advance(%q): effect %v, want close", msg, eff.Kind)
		}
		if !strings.Contains(p.Response, "Reiniciar") {
			t.Errorf("close message should mention Reiniciar, got %q", p.Response)
		}
	}
}

func TestMultiSelectParsing(t *testing.T) {
	items, ok := ParseMultiSelect("__msel__:Datos| Interoperabilidad |Datos||")
	if !ok {
		t.Fatal("prefix not recognized")
	}
	want := []string{"Datos", "Interoperabilidad"}
	if len(items) != len(want) {
		t.Fatalf("items = %v, want %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("items[%d] = %q, want %q", i, items[i], want[i])
		}
	}
	if _, ok := ParseMultiSelect("Datos|Interoperabilidad"); ok {
		t.Error("plain text must not parse as multi-select")
	}
}

func TestMultiSelectStepRequiresSelection(t *testing.T) {
	eng := newTestEngine(t)
	s := models.NewSession("s1", StepComponentes)
	_, _, err := eng.Advance(&s, "__msel__:")
	if err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if s.CurrentStep != StepComponentes {
		t.Errorf("empty selection must re-prompt, at %q", s.CurrentStep)
	}

	if _, _, err := eng.Advance(&s, "__msel__:Datos|Gobernanza de datos"); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if s.CurrentStep != StepNombreProyecto {
		t.Errorf("selection should advance, at %q", s.CurrentStep)
	}
	if got := s.Responses[StepComponentes].Items; len(got) != 2 {
		t.Errorf("recorded items = %v", got)
	}
}

func TestUploadStepGating(t *testing.T) {
	eng := newTestEngine(t)
	s := models.NewSession("s1", StepUploadCausas)

	// Continue without an upload: warned, stays put.
	p, _, err := eng.Advance(&s, "continuar")
	if err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if s.CurrentStep != StepUploadCausas || !strings.Contains(p.Response, "Aún no has subido") {
		t.Errorf("missing upload should warn in place, at %q: %q", s.CurrentStep, p.Response)
	}

	// Non-continue chatter also stays put.
	if _, _, err := eng.Advance(&s, "ya casi"); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if s.CurrentStep != StepUploadCausas {
		t.Errorf("chatter must not advance upload step, at %q", s.CurrentStep)
	}

	// With the flag set, both keywords advance.
	s.Responses["upload_causa"] = models.TextAnswer("arbol_causas.xlsx")
	if _, _, err := eng.Advance(&s, "Siguiente"); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if s.CurrentStep != StepUploadObjetivos {
		t.Errorf("upload done + keyword should advance, at %q", s.CurrentStep)
	}
}

func TestTerminalFinalizeEffect(t *testing.T) {
	eng := newTestEngine(t)
	s := models.NewSession("s1", StepCadenaValor)
	_, eff, err := eng.Advance(&s, "Insumos, actividades, productos y resultados")
	if err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if eff.Kind != EffectFinalize {
		t.Fatalf("effect = %v, want finalize", eff.Kind)
	}
	// The engine must not mark the session terminal itself.
	if s.CurrentStep == models.StepTerminal {
		t.Error("CurrentStep set to terminal before document generation")
	}
	if got := s.Responses[StepCadenaValor].Text; got == "" {
		t.Error("final answer not recorded")
	}
}

func TestAdvanceAtTerminalStepRepeatsNotice(t *testing.T) {
	eng := newTestEngine(t)
	s := models.NewSession("s1", StartStep)
	s.CurrentStep = models.StepTerminal

	p, eff, err := eng.Advance(&s, "¿y ahora qué?")
	if err != nil {
		t.Fatalf("Advance after completion error: %v", err)
	}
	if eff.Kind != EffectNone {
		t.Errorf("effect = %v, want none", eff.Kind)
	}
	if p.CurrentStep != models.StepTerminal || s.CurrentStep != models.StepTerminal {
		t.Errorf("terminal session moved: payload %q, session %q", p.CurrentStep, s.CurrentStep)
	}
	if !strings.Contains(p.Response, "Reiniciar") {
		t.Errorf("terminal notice should point at Reiniciar, got %q", p.Response)
	}
}

func TestChatKeywords(t *testing.T) {
	if !IsExitKeyword("  Finalizar ") {
		t.Error("finalizar should exit free chat")
	}
	if IsExitKeyword("finalizar ya") {
		t.Error("exit keyword must match the whole message")
	}
	if !IsResumeRequest("quiero continuar flujo") || !IsResumeRequest("Volver al flujo por favor") {
		t.Error("resume keywords not recognized")
	}
	if IsResumeRequest("continuar") {
		t.Error("bare continuar is not a resume request")
	}
}

func TestFullGuidedScenario(t *testing.T) {
	eng := newTestEngine(t)
	s := models.NewSession("e2e", StartStep)

	advance := func(input, wantStep string) {
		t.Helper()
		if _, _, err := eng.Advance(&s, input); err != nil {
			t.Fatalf("Advance(%q) error: %v", input, err)
		}
		if s.CurrentStep != wantStep {
			t.Fatalf("after %q at %q, want %q", input, s.CurrentStep, wantStep)
		}
	}

	advance("Sí, entiendo el proceso y deseo continuar", StepEntidad)
	advance("Gobernación de Antioquia", StepRol)
	advance("Profesional especializado", StepVertical)
	advance("Sí, en IDEC", StepComponentes)
	advance("__msel__:Datos|Seguridad y privacidad de datos", StepNombreProyecto)
	advance("Fortalecimiento de la infraestructura de datos", "poblacion_afectada")
	advance("1.2 millones de habitantes del departamento", "poblacion_objetivo")
	advance("800 mil habitantes de zonas urbanas", "localizacion")
	advance("Departamental - Antioquia", "problema_oportunidad")
	advance("Baja interoperabilidad entre sistemas de información", StepUploadCausas)

	s.Responses["upload_causa"] = models.TextAnswer("causas.xlsx")
	advance("continuar", StepUploadObjetivos)
	s.Responses["upload_objetivo"] = models.TextAnswer("objetivos.xlsx")
	advance("continuar", StepCadenaValor)

	_, eff, err := eng.Advance(&s, "Insumos y actividades hacia productos")
	if err != nil {
		t.Fatalf("final Advance error: %v", err)
	}
	if eff.Kind != EffectFinalize {
		t.Fatalf("expected finalize at end of flow, got %v", eff.Kind)
	}

	ordered := eng.OrderedResponses(&s, DefaultSteps())
	if len(ordered) == 0 || ordered[0].Key != StepEntidad {
		t.Errorf("ordered responses should start with the entity answer: %+v", ordered)
	}
}
