package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tgdispatch/internal/database"
	"tgdispatch/internal/models"
	"tgdispatch/internal/service"
	"tgdispatch/pkg/telegram/types"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	cfg        models.ServerConfig
	db         *database.Database
	client     types.Client
	dispatcher *service.Dispatcher
	ledger     *service.Ledger
	directory  *service.Directory
	templates  *service.Templates
	server     *http.Server
}

func NewServer(cfg models.ServerConfig, db *database.Database, client types.Client, dispatcher *service.Dispatcher, ledger *service.Ledger, directory *service.Directory, templates *service.Templates, logger *logrus.Logger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		cfg:        cfg,
		db:         db,
		client:     client,
		dispatcher: dispatcher,
		ledger:     ledger,
		directory:  directory,
		templates:  templates,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/connectivity", s.handleConnectivity()).Methods(http.MethodGet)

	api.HandleFunc("/groups", s.handleCreateGroup()).Methods(http.MethodPost)
	api.HandleFunc("/groups", s.handleListGroups()).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id:[0-9]+}", s.handleGetGroup()).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id:[0-9]+}", s.handleDeleteGroup()).Methods(http.MethodDelete)
	api.HandleFunc("/groups/{id:[0-9]+}/members", s.handleListMembers()).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id:[0-9]+}/members", s.handleAddMember()).Methods(http.MethodPost)
	api.HandleFunc("/groups/{id:[0-9]+}/members/{recipientId:[0-9]+}", s.handleRemoveMember()).Methods(http.MethodDelete)

	api.HandleFunc("/recipients", s.handleListRecipients()).Methods(http.MethodGet)
	api.HandleFunc("/recipients", s.handleAddRecipient()).Methods(http.MethodPost)
	api.HandleFunc("/recipients/{id:[0-9]+}", s.handleDeactivateRecipient()).Methods(http.MethodDelete)
	api.HandleFunc("/recipients/import", s.handleImportRecipients()).Methods(http.MethodPost)

	api.HandleFunc("/groups/{id:[0-9]+}/dispatch", s.handleDispatch()).Methods(http.MethodPost)

	api.HandleFunc("/groups/{id:[0-9]+}/templates", s.handleCreateTemplate()).Methods(http.MethodPost)
	api.HandleFunc("/groups/{id:[0-9]+}/templates", s.handleListTemplates()).Methods(http.MethodGet)
	api.HandleFunc("/templates/{id:[0-9]+}", s.handleGetTemplate()).Methods(http.MethodGet)
	api.HandleFunc("/templates/{id:[0-9]+}", s.handleUpdateTemplate()).Methods(http.MethodPut)
	api.HandleFunc("/templates/{id:[0-9]+}", s.handleDeleteTemplate()).Methods(http.MethodDelete)
	api.HandleFunc("/templates/{id:[0-9]+}/dispatch", s.handleDispatchTemplate()).Methods(http.MethodPost)

	api.HandleFunc("/groups/{id:[0-9]+}/ledger", s.handleQueryLedger()).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id:[0-9]+}/ledger/stats", s.handleLedgerStats()).Methods(http.MethodGet)
	api.HandleFunc("/ledger/{id:[0-9]+}", s.handleGetLedgerEntry()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrGroupNotFound),
		errors.Is(err, models.ErrRecipientNotFound),
		errors.Is(err, models.ErrTemplateNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrGroupNameTaken),
		errors.Is(err, models.ErrRecipientExists),
		errors.Is(err, models.ErrTemplateNameTaken):
		status = http.StatusConflict
	case errors.Is(err, models.ErrGroupHasNoMembers),
		errors.Is(err, models.ErrTemplateNameRequired),
		errors.Is(err, models.ErrTemplateNoBodies),
		errors.Is(err, models.ErrNotPrivateChat):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleConnectivity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bot, err := s.client.CheckConnectivity(r.Context())
		if err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		s.writeJSON(w, http.StatusOK, bot)
	}
}

func (s *Server) handleCreateGroup() http.HandlerFunc {
	type request struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		group, err := s.db.CreateGroup(r.Context(), req.Name, req.Description)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, group)
	}
}

func (s *Server) handleListGroups() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := s.db.ListGroups(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, groups)
	}
}

func (s *Server) handleGetGroup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		group, err := s.db.GetGroup(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, group)
	}
}

func (s *Server) handleDeleteGroup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		if err := s.db.DeleteGroup(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListMembers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		if _, err := s.db.GetGroup(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		members, err := s.db.GetGroupMembers(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, members)
	}
}

func (s *Server) handleAddMember() http.HandlerFunc {
	type request struct {
		RecipientID int64 `json:"recipient_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		// AddGroupMember validates both sides itself.
		if err := s.db.AddGroupMember(r.Context(), id, req.RecipientID); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleRemoveMember() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		recipientID, _ := pathID(r, "recipientId")
		if err := s.db.RemoveGroupMember(r.Context(), id, recipientID); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListRecipients() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recipients, err := s.db.ListActiveRecipients(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, recipients)
	}
}

func (s *Server) handleAddRecipient() http.HandlerFunc {
	type request struct {
		ChatID string `json:"chat_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == "" {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chat_id is required"})
			return
		}

		recipient, err := s.directory.AddByChatID(r.Context(), req.ChatID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, recipient)
	}
}

func (s *Server) handleDeactivateRecipient() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		if err := s.db.DeactivateRecipient(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleImportRecipients() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.directory.ImportRecent(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleDispatch() http.HandlerFunc {
	type request struct {
		Messages []models.RecipientMessage `json:"messages"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		report, err := s.dispatcher.Dispatch(r.Context(), id, req.Messages)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleDispatchTemplate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		report, err := s.dispatcher.DispatchTemplate(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleCreateTemplate() http.HandlerFunc {
	type request struct {
		Name        string                   `json:"name"`
		Description string                   `json:"description"`
		Messages    []models.TemplateMessage `json:"messages"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		template, err := s.templates.Create(r.Context(), id, req.Name, req.Description, req.Messages)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, template)
	}
}

func (s *Server) handleListTemplates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		templates, err := s.templates.ListByGroup(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, templates)
	}
}

func (s *Server) handleGetTemplate() http.HandlerFunc {
	type response struct {
		Template *models.MessageTemplate  `json:"template"`
		Messages []models.TemplateMessage `json:"messages"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		template, err := s.templates.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		messages, err := s.templates.Messages(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, response{Template: template, Messages: messages})
	}
}

func (s *Server) handleUpdateTemplate() http.HandlerFunc {
	type request struct {
		Messages []models.TemplateMessage `json:"messages"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		if err := s.templates.Update(r.Context(), id, req.Messages); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleDeleteTemplate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		if err := s.templates.Delete(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleQueryLedger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		filter := models.LedgerFilter{GroupID: id}

		if status := r.URL.Query().Get("status"); status != "" {
			filter.Status = models.DeliveryStatus(status)
		}
		if rid := r.URL.Query().Get("recipientId"); rid != "" {
			v, err := strconv.ParseInt(rid, 10, 64)
			if err != nil {
				s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid recipientId"})
				return
			}
			filter.RecipientID = v
		}

		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			v, err := strconv.Atoi(p)
			if err != nil || v < 1 {
				s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page"})
				return
			}
			page = v
		}

		result, err := s.ledger.Query(r.Context(), filter, page)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleLedgerStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		stats, err := s.ledger.Stats(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) handleGetLedgerEntry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := pathID(r, "id")
		entry, err := s.ledger.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if entry == nil {
			s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "ledger entry not found"})
			return
		}
		s.writeJSON(w, http.StatusOK, entry)
	}
}
