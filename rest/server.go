package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/carepath/action"
	"github.com/mohitkumar/carepath/flow"
	"github.com/mohitkumar/carepath/logger"
	"github.com/mohitkumar/carepath/metadata"
	"github.com/mohitkumar/carepath/persistence"
	"github.com/mohitkumar/carepath/rule"
	"github.com/mohitkumar/carepath/service"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port            int
	metadataService metadata.MetadataService
	executorService *service.WorkflowExecutionService
}

func NewServer(httpPort int, metadataService metadata.MetadataService, executorService *service.WorkflowExecutionService) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		metadataService: metadataService,
		executorService: executorService,
		Port:            httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/templates", s.HandleCreateTemplate).Methods(http.MethodPost)
	router.HandleFunc("/templates/{id}", s.HandleGetTemplate).Methods(http.MethodGet)
	router.HandleFunc("/templates/{id}/steps/{stepId}/branches/{index:[0-9]+}/evaluate", s.HandleEvaluateBranch).Methods(http.MethodPost)

	router.HandleFunc("/instances", s.HandleCreateInstance).Methods(http.MethodPost)
	router.HandleFunc("/instances/{id}", s.HandleGetInstance).Methods(http.MethodGet)
	router.HandleFunc("/instances/{id}/actions", s.HandleAvailableActions).Methods(http.MethodGet)
	router.HandleFunc("/instances/{id}/preview", s.HandlePreview).Methods(http.MethodPost)
	router.HandleFunc("/instances/{id}/advance", s.HandleAdvance).Methods(http.MethodPost)
	router.HandleFunc("/instances/{id}/steps/{stepId}/next", s.HandleNextStep).Methods(http.MethodGet)

	router.HandleFunc("/records/{object}/{patientId}", s.HandleSaveRecord).Methods(http.MethodPut)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI, zap.String("method", r.Method))
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	respondWithJSON(w, http.StatusOK, message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps domain errors to status codes. Anything not
// recognised is a 500.
func respondWithServiceError(w http.ResponseWriter, err error) {
	var invalidAction *flow.InvalidActionError
	var invalidTemplate *metadata.ValidationError
	switch {
	case errors.As(err, &invalidAction):
		respondWithJSON(w, http.StatusConflict, map[string]any{
			"error":            err.Error(),
			"availableActions": action.ToRequests(invalidAction.Available),
		})
	case errors.As(err, &invalidTemplate):
		respondWithJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    err.Error(),
			"problems": invalidTemplate.Problems,
		})
	case errors.Is(err, persistence.ErrVersionConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, flow.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, rule.ErrRuleParse):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrInvalidRequest):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
