package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ideclab/asistente-mga/internal/flow"
	"github.com/ideclab/asistente-mga/internal/models"
	"github.com/ideclab/asistente-mga/internal/plantilla"
)

const (
	chatLibreBootstrap = "💬 Has activado el **Chat Libre** para resolver esta duda.\n\n"
	chatLibreExit      = "✅ Has finalizado el chat libre. Volvemos al flujo normal."
	chatLibreFarewell  = "Termina tu respuesta indicando: \"Cuando estés listo, escribe **Finalizar** para volver al flujo.\""
)

// indexHandler starts the conversation over: like the original landing page,
// opening the root reinitializes the session at the welcome step and returns
// its payload.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeJSONResponse(w, http.StatusNotFound, models.Error("not found"))
		return
	}
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	sess, err := s.sessionFromRequest(w, r)
	if err != nil {
		s.logger.Error("Server.indexHandler: failed to resolve session", "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to resolve session"))
		return
	}
	sess.Reset(s.engine.StartStepID())
	if err := s.store.SaveSession(*sess); err != nil {
		s.logger.Error("Server.indexHandler: failed to save session", "session", sess.ID, "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to save session"))
		return
	}
	payload, err := s.engine.Render(sess.CurrentStep)
	if err != nil {
		s.logger.Error("Server.indexHandler: failed to render welcome step", "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to render step"))
		return
	}
	s.writeJSONResponse(w, http.StatusOK, payload)
}

// chatHandler drives the guided flow. While the session is in the chat libre
// sub-mode it delegates to the free-chat path, so the client can keep posting
// to the same endpoint.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid request body"))
		return
	}
	sess, err := s.sessionFromRequest(w, r)
	if err != nil {
		s.logger.Error("Server.chatHandler: failed to resolve session", "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to resolve session"))
		return
	}

	if sess.Mode == models.ModeAlt {
		s.answerChatLibre(r.Context(), w, sess, req.Message)
		return
	}

	msg := strings.TrimSpace(req.Message)
	if msg == "" || sess.ResumeFromChat || flow.IsResumeRequest(msg) {
		// Empty first message bootstraps the current step; after chat libre
		// the step is replayed with its full payload.
		payload, err := s.engine.ResumePayload(sess)
		if err != nil {
			s.logger.Error("Server.chatHandler: failed to render step", "session", sess.ID, "step", sess.CurrentStep, "error", err)
			s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to render step"))
			return
		}
		if err := s.store.SaveSession(*sess); err != nil {
			s.logger.Error("Server.chatHandler: failed to save session", "session", sess.ID, "error", err)
			s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to save session"))
			return
		}
		s.writeJSONResponse(w, http.StatusOK, payload)
		return
	}

	payload, eff, err := s.engine.Advance(sess, req.Message)
	if err != nil {
		s.logger.Error("Server.chatHandler: advance failed", "session", sess.ID, "step", sess.CurrentStep, "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("no se pudo procesar el mensaje"))
		return
	}

	switch eff.Kind {
	case flow.EffectDivert:
		s.handleDivert(r.Context(), w, sess, eff.Topic)
		return
	case flow.EffectFinalize:
		s.handleFinalize(r.Context(), w, sess)
		return
	case flow.EffectClose:
		sess.CurrentStep = models.StepTerminal
		payload.CurrentStep = models.StepTerminal
	}

	if err := s.store.SaveSession(*sess); err != nil {
		s.logger.Error("Server.chatHandler: failed to save session", "session", sess.ID, "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to save session"))
		return
	}
	s.writeJSONResponse(w, http.StatusOK, payload)
}

// handleDivert opens the chat libre sub-mode with an assistant answer seeded
// by the step's topic. On LLM failure the session is not saved, so the flow
// stays where it was.
func (s *Server) handleDivert(ctx context.Context, w http.ResponseWriter, sess *models.Session, topic string) {
	question := topic + "\n\n" + chatLibreFarewell
	answer, err := s.llm.Answer(ctx, question)
	if err != nil {
		s.logger.Error("Server.handleDivert: assistant answer failed", "session", sess.ID, "error", err)
		s.writeJSONResponse(w, http.StatusBadGateway, models.Error("el asistente no está disponible en este momento"))
		return
	}
	if err := s.store.SaveSession(*sess); err != nil {
		s.logger.Error("Server.handleDivert: failed to save session", "session", sess.ID, "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to save session"))
		return
	}
	s.writeJSONResponse(w, http.StatusOK, models.StepPayload{
		Response:    chatLibreBootstrap + answer,
		CurrentStep: sess.CurrentStep,
		Format:      "markdown",
	})
}

// handleFinalize assembles the project document and only then marks the
// session terminal, so a failed generation can be retried with the same
// closing message.
func (s *Server) handleFinalize(ctx context.Context, w http.ResponseWriter, sess *models.Session) {
	path, err := s.docgen.Generate(ctx, sess.Responses)
	if err != nil {
		s.logger.Error("Server.handleFinalize: document generation failed", "session", sess.ID, "error", err)
		s.writeJSONResponse(w, http.StatusBadGateway, models.Error("no se pudo generar el documento, inténtalo de nuevo"))
		return
	}
	filename := filepath.Base(path)
	sess.CurrentStep = models.StepTerminal
	if err := s.store.SaveSession(*sess); err != nil {
		s.logger.Error("Server.handleFinalize: failed to save session", "session", sess.ID, "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to save session"))
		return
	}
	if err := s.store.AddDocument(models.DocumentRecord{SessionID: sess.ID, Filename: filename, CreatedAt: time.Now()}); err != nil {
		s.logger.Warn("Server.handleFinalize: failed to record document", "session", sess.ID, "filename", filename, "error", err)
	}
	s.logger.Info("Server.handleFinalize: document generated", "session", sess.ID, "filename", filename)
	s.writeJSONResponse(w, http.StatusOK, models.StepPayload{
		Response:    fmt.Sprintf("✅ Flujo completado. Documento generado. [Descargar documento](/download/%s)", filename),
		CurrentStep: models.StepTerminal,
		Format:      "markdown",
	})
}

// chatAltHandler is the direct entry to the chat libre sub-mode.
func (s *Server) chatAltHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid request body"))
		return
	}
	sess, err := s.sessionFromRequest(w, r)
	if err != nil {
		s.logger.Error("Server.chatAltHandler: failed to resolve session", "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to resolve session"))
		return
	}
	s.answerChatLibre(r.Context(), w, sess, req.Message)
}

// answerChatLibre handles one free-chat message: the exit keyword hands the
// session back to the flow, anything else goes to the assistant.
func (s *Server) answerChatLibre(ctx context.Context, w http.ResponseWriter, sess *models.Session, message string) {
	if flow.IsExitKeyword(message) {
		s.engine.ExitChat(sess)
		if err := s.store.SaveSession(*sess); err != nil {
			s.logger.Error("Server.answerChatLibre: failed to save session", "session", sess.ID, "error", err)
			s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to save session"))
			return
		}
		s.writeJSONResponse(w, http.StatusOK, models.StepPayload{
			Response:    chatLibreExit,
			CurrentStep: sess.CurrentStep,
			Options:     []string{"Continuar flujo"},
			Format:      "markdown",
		})
		return
	}

	answer, err := s.llm.Answer(ctx, message)
	if err != nil {
		s.logger.Error("Server.answerChatLibre: assistant answer failed", "session", sess.ID, "error", err)
		s.writeJSONResponse(w, http.StatusBadGateway, models.Error("el asistente no está disponible en este momento"))
		return
	}
	if sess.Mode != models.ModeAlt {
		sess.Mode = models.ModeAlt
		if err := s.store.SaveSession(*sess); err != nil {
			s.logger.Error("Server.answerChatLibre: failed to save session", "session", sess.ID, "error", err)
			s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to save session"))
			return
		}
	}
	s.writeJSONResponse(w, http.StatusOK, models.StepPayload{
		Response:    answer,
		CurrentStep: sess.CurrentStep,
		Format:      "markdown",
	})
}

// resetHandler restarts the conversation at the welcome step.
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	sess, err := s.sessionFromRequest(w, r)
	if err != nil {
		s.logger.Error("Server.resetHandler: failed to resolve session", "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to resolve session"))
		return
	}
	sess.Reset(s.engine.StartStepID())
	if err := s.store.SaveSession(*sess); err != nil {
		s.logger.Error("Server.resetHandler: failed to save session", "session", sess.ID, "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to save session"))
		return
	}
	s.logger.Info("Server.resetHandler: conversation restarted", "session", sess.ID)
	s.writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversación reiniciada", nil))
}

// plantillaHandler serves a generated blank template workbook.
func (s *Server) plantillaHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	tipo := models.TemplateCategory(strings.TrimPrefix(r.URL.Path, "/plantilla/"))
	if tipo != models.CategoryCausa && tipo != models.CategoryObjetivo {
		s.writeJSONResponse(w, http.StatusNotFound, models.Error("plantilla desconocida"))
		return
	}
	data, err := plantilla.TemplateXLSX(tipo)
	if err != nil {
		s.logger.Error("Server.plantillaHandler: failed to build template", "tipo", tipo, "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to build template"))
		return
	}
	name := plantilla.TemplateName(tipo)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := w.Write(data); err != nil {
		s.logger.Error("Server.plantillaHandler: failed to write template", "error", err)
	}
}

// downloadHandler serves a generated document from the documents directory.
func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/download/")
	if name == "" || name != filepath.Base(name) {
		s.writeJSONResponse(w, http.StatusBadRequest, models.Error("nombre de archivo no válido"))
		return
	}
	path := filepath.Join(s.documentsDir, name)
	if _, err := os.Stat(path); err != nil {
		s.writeJSONResponse(w, http.StatusNotFound, models.Error("documento no encontrado"))
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

// healthHandler reports service liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Asistente MGA activo", nil))
}
