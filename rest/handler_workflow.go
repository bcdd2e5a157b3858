package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/carepath/action"
	"github.com/mohitkumar/carepath/catalogue"
	"github.com/mohitkumar/carepath/flow"
	"github.com/mohitkumar/carepath/logger"
	"github.com/mohitkumar/carepath/model"
	"go.uber.org/zap"
)

type evaluateBranchRequest struct {
	PatientId string `json:"patientId"`
}

func (s *Server) HandleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req model.CreateInstanceRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request json")
		return
	}
	instance, err := s.executorService.CreateInstance(r.Context(), req.TemplateId, req.PatientId)
	if err != nil {
		logger.Error("error creating workflow instance", zap.String("template", req.TemplateId), zap.Error(err))
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, instance)
}

func (s *Server) HandleGetInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	instance, err := s.executorService.GetInstance(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, instance)
}

func (s *Server) HandleAvailableActions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	actions, err := s.executorService.AvailableActions(r.Context(), id)
	if err != nil {
		logger.Error("error listing available actions", zap.String("instance", id), zap.Error(err))
		respondWithServiceError(w, err)
		return
	}
	respondOK(w, map[string]any{"actions": action.ToRequests(actions)})
}

func (s *Server) HandlePreview(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	act, ok := decodeAction(w, r)
	if !ok {
		return
	}
	ops, err := s.executorService.Preview(r.Context(), id, act)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondOK(w, map[string]any{"operations": flow.ToRecords(ops)})
}

func (s *Server) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	act, ok := decodeAction(w, r)
	if !ok {
		return
	}
	instance, ops, err := s.executorService.Advance(r.Context(), id, act)
	if err != nil {
		logger.Info("advance rejected", zap.String("instance", id), zap.String("action", act.String()), zap.Error(err))
		respondWithServiceError(w, err)
		return
	}
	respondOK(w, map[string]any{"instance": instance, "operations": flow.ToRecords(ops)})
}

func (s *Server) HandleNextStep(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sel, err := s.executorService.NextStep(r.Context(), vars["id"], vars["stepId"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sel)
}

func (s *Server) HandleEvaluateBranch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid branch index")
		return
	}
	var req evaluateBranchRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request json")
		return
	}
	ev, err := s.executorService.EvaluateBranch(r.Context(), vars["id"], vars["stepId"], index, req.PatientId)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ev)
}

func (s *Server) HandleSaveRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var record catalogue.Record
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid record json")
		return
	}
	if err := s.executorService.SaveRecord(r.Context(), vars["object"], vars["patientId"], record); err != nil {
		logger.Error("error saving record", zap.String("object", vars["object"]), zap.Error(err))
		respondWithServiceError(w, err)
		return
	}
	respondOK(w, map[string]any{"saved": true})
}

func decodeAction(w http.ResponseWriter, r *http.Request) (action.Action, bool) {
	defer r.Body.Close()
	var req action.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid action json")
		return nil, false
	}
	act, err := action.FromRequest(req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return act, true
}
