package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mohitkumar/carepath/logger"
	"github.com/mohitkumar/carepath/model"
)

func (s *Server) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var template model.WorkflowTemplate
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&template); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid template json")
		return
	}
	if err := s.metadataService.SaveTemplate(r.Context(), template); err != nil {
		logger.Error("error creating template", zap.String("template", template.Id), zap.Error(err))
		respondWithServiceError(w, err)
		return
	}
	respondOK(w, map[string]any{"created": true})
}

func (s *Server) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	template, err := s.metadataService.GetTemplate(r.Context(), id)
	if err != nil {
		logger.Info("template does not exist", zap.String("template", id))
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, template)
}
