package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ideclab/asistente-mga/internal/flow"
	"github.com/ideclab/asistente-mga/internal/models"
	"github.com/ideclab/asistente-mga/internal/plantilla"
)

// maxUploadBytes caps the size of an uploaded workbook.
const maxUploadBytes = 10 << 20

// uploadHandler accepts a filled template workbook, validates and parses it
// into a tree, persists both the workbook and its JSON, and marks the upload
// flag the flow's upload steps gate on.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	sess, err := s.sessionFromRequest(w, r)
	if err != nil {
		s.logger.Error("Server.uploadHandler: failed to resolve session", "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to resolve session"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.uploadError(w, models.UploadErrParse, "no se pudo leer el formulario enviado")
		return
	}
	cat := models.TemplateCategory(strings.ToLower(strings.TrimSpace(r.FormValue("tipo"))))
	if !models.IsValidTemplateCategory(cat) {
		s.uploadError(w, models.UploadErrBadType, "tipo de plantilla no válido")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.uploadError(w, models.UploadErrParse, "no se envió ningún archivo")
		return
	}
	defer file.Close()
	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		s.uploadError(w, models.UploadErrNotXLSX, "el archivo debe tener extensión .xlsx")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		s.uploadError(w, models.UploadErrParse, "no se pudo leer el archivo")
		return
	}
	if len(data) > maxUploadBytes {
		s.uploadError(w, models.UploadErrParse, "el archivo supera el tamaño permitido")
		return
	}

	if cat == models.CategoryCombinado {
		err = plantilla.ValidateCombined(data, -1, -1)
	} else {
		err = plantilla.Validate(data, cat, -1)
	}
	if err != nil {
		var verr *plantilla.ValidationError
		if errors.As(err, &verr) {
			s.logger.Warn("Server.uploadHandler: workbook rejected", "session", sess.ID, "tipo", cat, "code", verr.Code)
			s.uploadError(w, verr.Code, verr.Msg)
			return
		}
		s.uploadError(w, models.UploadErrParse, err.Error())
		return
	}

	slug := plantilla.Slug(sess.Responses[flow.StepNombreProyecto].Text)
	stored := fmt.Sprintf("%s-%s.xlsx", cat, slug)
	if err := os.WriteFile(filepath.Join(s.uploadsDir, stored), data, 0644); err != nil {
		s.logger.Error("Server.uploadHandler: failed to store workbook", "session", sess.ID, "filename", stored, "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.UploadResult{OK: false, Error: "no se pudo guardar el archivo"})
		return
	}

	var jsonFile, preview string
	switch cat {
	case models.CategoryCausa:
		jsonFile, preview, err = s.storeCausaUpload(sess, stored, data)
	case models.CategoryObjetivo:
		jsonFile, preview, err = s.storeObjetivoUpload(sess, stored, data)
	default:
		jsonFile, preview, err = s.storeCombinedUpload(sess, slug, data)
	}
	if err != nil {
		var verr *plantilla.ValidationError
		if errors.As(err, &verr) {
			s.uploadError(w, verr.Code, verr.Msg)
			return
		}
		s.logger.Error("Server.uploadHandler: failed to process workbook", "session", sess.ID, "tipo", cat, "error", err)
		s.uploadError(w, models.UploadErrParse, "no se pudo interpretar la plantilla")
		return
	}

	if err := s.store.SaveSession(*sess); err != nil {
		s.logger.Error("Server.uploadHandler: failed to save session", "session", sess.ID, "error", err)
		s.writeJSONResponse(w, http.StatusInternalServerError, models.UploadResult{OK: false, Error: "no se pudo guardar la sesión"})
		return
	}
	rec := models.UploadRecord{
		SessionID:  sess.ID,
		Category:   cat,
		Filename:   stored,
		JSONPath:   jsonFile,
		UploadedAt: time.Now(),
	}
	if err := s.store.AddUpload(rec); err != nil {
		s.logger.Warn("Server.uploadHandler: failed to record upload", "session", sess.ID, "filename", stored, "error", err)
	}
	s.logger.Info("Server.uploadHandler: template accepted", "session", sess.ID, "tipo", cat, "filename", stored)
	s.writeJSONResponse(w, http.StatusOK, models.UploadResult{
		OK:        true,
		Filename:  stored,
		JSONFile:  jsonFile,
		PreviewMD: preview,
	})
}

func (s *Server) storeCausaUpload(sess *models.Session, stored string, data []byte) (jsonFile, preview string, err error) {
	tree, err := plantilla.ParseCausas(data, -1)
	if err != nil {
		return "", "", err
	}
	path, err := plantilla.SaveTreeJSON(s.jsonDir, stored, tree)
	if err != nil {
		return "", "", err
	}
	sess.Responses["upload_causa"] = models.TextAnswer(stored)
	return filepath.Base(path), plantilla.CausaTreeMarkdown(tree), nil
}

func (s *Server) storeObjetivoUpload(sess *models.Session, stored string, data []byte) (jsonFile, preview string, err error) {
	tree, err := plantilla.ParseObjetivos(data, -1)
	if err != nil {
		return "", "", err
	}
	path, err := plantilla.SaveTreeJSON(s.jsonDir, stored, tree)
	if err != nil {
		return "", "", err
	}
	sess.Responses["upload_objetivo"] = models.TextAnswer(stored)
	return filepath.Base(path), plantilla.ObjetivoTreeMarkdown(tree), nil
}

// storeCombinedUpload splits a combined workbook into both trees. The JSON
// files are named after the per-category filenames so the document pipeline
// resolves them through the same upload flags as separate uploads.
func (s *Server) storeCombinedUpload(sess *models.Session, slug string, data []byte) (jsonFile, preview string, err error) {
	sheets, err := plantilla.ParseCombined(data, -1, -1)
	if err != nil {
		return "", "", err
	}
	trees := sheets[0].Trees
	if len(trees.Causas.Items) == 0 && len(trees.Objetivos.Items) == 0 {
		return "", "", &plantilla.ValidationError{Code: models.UploadErrEmpty, Msg: "el libro no contiene causas ni objetivos"}
	}
	causaName := fmt.Sprintf("%s-%s.xlsx", models.CategoryCausa, slug)
	objetivoName := fmt.Sprintf("%s-%s.xlsx", models.CategoryObjetivo, slug)
	causaJSON, err := plantilla.SaveTreeJSON(s.jsonDir, causaName, trees.Causas)
	if err != nil {
		return "", "", err
	}
	objetivoJSON, err := plantilla.SaveTreeJSON(s.jsonDir, objetivoName, trees.Objetivos)
	if err != nil {
		return "", "", err
	}
	sess.Responses["upload_causa"] = models.TextAnswer(causaName)
	sess.Responses["upload_objetivo"] = models.TextAnswer(objetivoName)
	preview = plantilla.CausaTreeMarkdown(trees.Causas) + "\n" + plantilla.ObjetivoTreeMarkdown(trees.Objetivos)
	return filepath.Base(causaJSON) + ", " + filepath.Base(objetivoJSON), preview, nil
}

func (s *Server) uploadError(w http.ResponseWriter, code models.UploadErrorCode, msg string) {
	s.writeJSONResponse(w, http.StatusBadRequest, models.UploadResult{
		OK:        false,
		ErrorCode: code,
		Error:     msg,
	})
}
