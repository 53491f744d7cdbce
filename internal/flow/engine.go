package flow

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/ideclab/asistente-mga/internal/models"
)

// EffectKind tells the caller which side effect, if any, an Advance produced.
// The engine itself never performs I/O.
type EffectKind int

const (
	// EffectNone means the session simply moved (or stayed) within the flow.
	EffectNone EffectKind = iota
	// EffectDivert means the session entered free-form chat; Topic carries
	// the seed question for the assistant.
	EffectDivert
	// EffectFinalize means the flow is complete and the caller should
	// assemble the project document before marking the session terminal.
	EffectFinalize
	// EffectClose means the conversation was closed by an explicit decline.
	EffectClose
)

// Effect is the side-effect request returned alongside a payload.
type Effect struct {
	Kind  EffectKind
	Topic string
}

// Word matchers. Go's \b is ASCII-only, so accented words like "sí" need an
// explicit non-letter boundary.
var (
	yesRe      = regexp.MustCompile(`(?i)(^|[^\pL])(sí|si)($|[^\pL])`)
	noRe       = regexp.MustCompile(`(?i)(^|[^\pL])no($|[^\pL])`)
	continueRe = regexp.MustCompile(`(?i)(^|[^\pL])(continuar|siguiente)($|[^\pL])`)
	resumeRe   = regexp.MustCompile(`(?i)(continuar flujo|volver al flujo)`)
	startRe    = regexp.MustCompile(`(?i)(^|[^\pL])(iniciar|start)($|[^\pL])`)
)

const uploadPendingWarning = "\n\n> ⚠️ Aún no has subido el archivo. Por favor súbelo y luego escribe **Continuar**."

const multiSelectHint = "\n\nSelecciona una o más tarjetas y pulsa **Confirmar**."

// Engine evaluates user input against a validated step table. It is a pure
// state machine: Advance mutates only the session passed to it and reports
// requested side effects through an Effect value.
type Engine struct {
	steps  map[string]models.Step
	start  string
	logger *slog.Logger
}

// NewEngine validates the step table and builds an engine over it. Every
// successor named by a step must exist in the table or be the terminal step.
func NewEngine(steps []models.Step, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	byID := make(map[string]models.Step, len(steps))
	for _, st := range steps {
		if st.ID == "" {
			return nil, models.ErrEmptyStepID
		}
		if _, dup := byID[st.ID]; dup {
			return nil, fmt.Errorf("step %q: %w", st.ID, models.ErrDuplicateStepID)
		}
		byID[st.ID] = st
	}
	if _, ok := byID[StartStep]; !ok {
		return nil, models.ErrNoStartStep
	}
	for _, st := range steps {
		for _, next := range successors(st) {
			if next == "" || next == models.StepTerminal {
				continue
			}
			if _, ok := byID[next]; !ok {
				return nil, fmt.Errorf("step %q references %q: %w", st.ID, next, models.ErrDanglingSuccessor)
			}
		}
	}
	return &Engine{steps: byID, start: StartStep, logger: logger}, nil
}

func successors(st models.Step) []string {
	out := []string{st.Next, st.YesNext, st.NoNext, st.DivertResume}
	for _, r := range st.Routes {
		out = append(out, r.Next)
	}
	return out
}

// StartStepID returns the id of the welcome step.
func (e *Engine) StartStepID() string { return e.start }

// Step looks up a step by id.
func (e *Engine) Step(id string) (models.Step, bool) {
	st, ok := e.steps[id]
	return st, ok
}

// Render builds the full payload for a step: prompt text, option buttons and
// the multi-select or upload specification when the step carries one.
func (e *Engine) Render(stepID string) (models.StepPayload, error) {
	if stepID == models.StepTerminal {
		return models.StepPayload{
			Response:    "✅ El flujo ha finalizado. Usa *Reiniciar* para comenzar un nuevo proyecto.",
			CurrentStep: models.StepTerminal,
			Format:      "markdown",
		}, nil
	}
	st, ok := e.steps[stepID]
	if !ok {
		return models.StepPayload{}, fmt.Errorf("render step %q: %w", stepID, models.ErrUnknownStep)
	}
	return e.payloadFor(st, ""), nil
}

func (e *Engine) payloadFor(st models.Step, suffix string) models.StepPayload {
	p := models.StepPayload{
		Response:    st.Prompt + suffix,
		CurrentStep: st.ID,
		Options:     append([]string(nil), st.Options...),
		Format:      "markdown",
	}
	switch st.Kind {
	case models.StepKindMultiSelect:
		p.Response = st.Prompt + multiSelectHint + suffix
		p.MultiSelect = &models.MultiSelectSpec{
			Items:      append([]string(nil), st.MultiSelectItems...),
			SubmitText: st.SubmitText,
		}
	case models.StepKindUpload:
		tipo := string(st.Category)
		p.Response = st.Prompt +
			fmt.Sprintf("\n\n**Descargar plantilla:** [Plantilla%s.xlsx](/plantilla/%s)\n\nCuando la hayas subido, escribe **Continuar**.",
				templateSuffix(st.Category), tipo) + suffix
		p.Upload = &models.UploadSpec{
			ExpectUpload: true,
			Tipo:         tipo,
			DownloadURL:  "/plantilla/" + tipo,
		}
	}
	return p
}

func templateSuffix(c models.TemplateCategory) string {
	if c == models.CategoryObjetivo {
		return "Objetivo"
	}
	return "Causa"
}

// Advance applies one user input to the session and returns the next payload
// plus any side effect the caller must perform. The engine never touches
// storage, the network or the language model.
func (e *Engine) Advance(s *models.Session, input string) (models.StepPayload, Effect, error) {
	if s.CurrentStep == models.StepTerminal {
		// A finished session keeps answering with the terminal notice.
		p, err := e.Render(models.StepTerminal)
		return p, Effect{}, err
	}
	st, ok := e.steps[s.CurrentStep]
	if !ok {
		return models.StepPayload{}, Effect{}, fmt.Errorf("advance from %q: %w", s.CurrentStep, models.ErrUnknownStep)
	}
	trimmed := strings.TrimSpace(input)
	e.logger.Debug("Engine.Advance: applying input", "session", s.ID, "step", st.ID, "kind", st.Kind)

	switch st.Kind {
	case models.StepKindGate:
		return e.advanceGate(s, st, trimmed)
	case models.StepKindSelect:
		return e.advanceSelect(s, st, trimmed)
	case models.StepKindMultiSelect:
		return e.advanceMultiSelect(s, st, trimmed)
	case models.StepKindUpload:
		return e.advanceUpload(s, st, trimmed)
	default:
		return e.advanceLinear(s, st, trimmed)
	}
}

func (e *Engine) advanceLinear(s *models.Session, st models.Step, input string) (models.StepPayload, Effect, error) {
	if input == "" {
		p := e.payloadFor(st, "\n\nPor favor escribe una respuesta para continuar.")
		return p, Effect{}, nil
	}
	s.Responses[st.ID] = models.TextAnswer(input)
	return e.moveTo(s, st.Next)
}

func (e *Engine) advanceGate(s *models.Session, st models.Step, input string) (models.StepPayload, Effect, error) {
	yes, no := e.classifyGate(st, input)
	if st.ID == StartStep && !yes && !no && startRe.MatchString(input) {
		// "iniciar"/"start" restarts the welcome step without the
		// unmatched-input nudge.
		return e.payloadFor(st, ""), Effect{}, nil
	}
	switch {
	case yes:
		return e.moveTo(s, st.YesNext)
	case no && st.NoNext != "":
		return e.moveTo(s, st.NoNext)
	case no && st.DivertTopic != "":
		s.Mode = models.ModeAlt
		s.ResumeStep = st.DivertResume
		e.logger.Info("Engine.Advance: diverting to free chat", "session", s.ID, "step", st.ID, "resume", st.DivertResume)
		return models.StepPayload{CurrentStep: st.ID}, Effect{Kind: EffectDivert, Topic: st.DivertTopic}, nil
	default:
		p := e.payloadFor(st, "\n\nPor favor responde **Sí** o **No**, o usa las opciones.")
		return p, Effect{}, nil
	}
}

// classifyGate matches exact option labels first (first option is the
// affirmative route), then falls back to word matching.
func (e *Engine) classifyGate(st models.Step, input string) (yes, no bool) {
	lower := strings.ToLower(input)
	for i, opt := range st.Options {
		if lower == strings.ToLower(opt) {
			if i == 0 {
				return true, false
			}
			return false, true
		}
	}
	if yesRe.MatchString(input) && !noRe.MatchString(input) {
		return true, false
	}
	if noRe.MatchString(input) {
		return false, true
	}
	return false, false
}

func (e *Engine) advanceSelect(s *models.Session, st models.Step, input string) (models.StepPayload, Effect, error) {
	lower := strings.ToLower(input)
	if lower == "no" || strings.HasPrefix(lower, "no ") || strings.Contains(lower, "cerrar la conversación") {
		e.logger.Info("Engine.Advance: conversation closed at select step", "session", s.ID, "step", st.ID)
		return models.StepPayload{
			Response:    st.CloseMessage,
			CurrentStep: st.ID,
		}, Effect{Kind: EffectClose}, nil
	}
	for _, r := range st.Routes {
		if strings.Contains(lower, r.Match) {
			if st.RecordKey != "" {
				s.Responses[st.RecordKey] = models.TextAnswer(r.Record)
			}
			return e.moveTo(s, r.Next)
		}
	}
	p := e.payloadFor(st, "\n\nPor favor elige una de las opciones disponibles.")
	return p, Effect{}, nil
}

func (e *Engine) advanceMultiSelect(s *models.Session, st models.Step, input string) (models.StepPayload, Effect, error) {
	items, ok := ParseMultiSelect(input)
	if !ok || len(items) == 0 {
		p := e.payloadFor(st, "\n\nSelecciona al menos un componente antes de confirmar.")
		return p, Effect{}, nil
	}
	s.Responses[st.ID] = models.ListAnswer(items)
	return e.moveTo(s, st.Next)
}

func (e *Engine) advanceUpload(s *models.Session, st models.Step, input string) (models.StepPayload, Effect, error) {
	if !continueRe.MatchString(input) {
		return e.payloadFor(st, ""), Effect{}, nil
	}
	flag := "upload_" + string(st.Category)
	if ans, ok := s.Responses[flag]; !ok || ans.IsZero() {
		// The keyword came before the file did.
		return e.payloadFor(st, uploadPendingWarning), Effect{}, nil
	}
	return e.moveTo(s, st.Next)
}

func (e *Engine) moveTo(s *models.Session, next string) (models.StepPayload, Effect, error) {
	if next == models.StepTerminal {
		// The caller sets CurrentStep to the terminal value only after the
		// project document is assembled, so a failed generation can retry.
		e.logger.Info("Engine.Advance: flow reached terminal step", "session", s.ID)
		return models.StepPayload{CurrentStep: s.CurrentStep}, Effect{Kind: EffectFinalize}, nil
	}
	s.CurrentStep = next
	p, err := e.Render(next)
	if err != nil {
		return models.StepPayload{}, Effect{}, err
	}
	return p, Effect{}, nil
}

// IsResumeRequest reports whether a free-chat message asks to return to the
// guided flow.
func IsResumeRequest(input string) bool { return resumeRe.MatchString(input) }

// IsExitKeyword reports whether a free-chat message ends the free chat.
func IsExitKeyword(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), "finalizar")
}

// ExitChat leaves the free-chat sub-mode: the session returns to flow mode at
// its recorded resume step and a one-shot marker is set so the next flow
// message replays the step's full payload.
func (e *Engine) ExitChat(s *models.Session) {
	s.Mode = models.ModeFlow
	if target := s.PopResumeStep(); target != "" {
		s.CurrentStep = target
	}
	s.ResumeFromChat = true
}

// ResumePayload re-renders the session's current step with its full payload
// (options, multi-select and upload specs), consuming the one-shot marker
// left by ExitChat.
func (e *Engine) ResumePayload(s *models.Session) (models.StepPayload, error) {
	s.ResumeFromChat = false
	s.Mode = models.ModeFlow
	return e.Render(s.CurrentStep)
}

// ParseMultiSelect decodes the multi-select wire format
// "__msel__:item|item|…". Blank entries are dropped and duplicates are kept
// once, preserving first-seen order.
func ParseMultiSelect(input string) ([]string, bool) {
	if !strings.HasPrefix(input, models.MultiSelectPrefix) {
		return nil, false
	}
	raw := strings.TrimPrefix(input, models.MultiSelectPrefix)
	seen := make(map[string]struct{})
	var items []string
	for _, part := range strings.Split(raw, models.MultiSelectDelimiter) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		items = append(items, part)
	}
	return items, true
}

// OrderedResponses returns the recorded answers keyed and sorted by the order
// steps appear in the table, with unknown keys (upload flags, select record
// keys) appended alphabetically at the end.
func (e *Engine) OrderedResponses(s *models.Session, order []models.Step) []RecordedAnswer {
	var out []RecordedAnswer
	used := make(map[string]struct{})
	for _, st := range order {
		if ans, ok := s.Responses[st.ID]; ok {
			out = append(out, RecordedAnswer{Key: st.ID, Answer: ans})
			used[st.ID] = struct{}{}
		}
	}
	var rest []string
	for k := range s.Responses {
		if _, ok := used[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out = append(out, RecordedAnswer{Key: k, Answer: s.Responses[k]})
	}
	return out
}

// RecordedAnswer pairs a response key with its answer for ordered traversal.
type RecordedAnswer struct {
	Key    string
	Answer models.Answer
}
