package handler

import (
	"net/http"

	"go.uber.org/zap"

	"Mansoor88-6/team-time-tracker/internal/models"
	"Mansoor88-6/team-time-tracker/internal/service"
)

type TaskHandler struct {
	service *service.TaskService
	logger  *zap.Logger
}

func NewTaskHandler(service *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  logger,
	}
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	profile, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	var req models.CreateTaskRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	task, err := h.service.CreateTask(r.Context(), profile.ID, req.Title, req.Description)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	status := models.TaskStatus(r.URL.Query().Get("status"))

	tasks, err := h.service.ListTasks(r.Context(), status)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) TaskReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.service.TaskReport(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *TaskHandler) ClockIn(w http.ResponseWriter, r *http.Request) {
	profile, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	entry, err := h.service.ClockIn(r.Context(), profile.ID, r.PathValue("id"))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *TaskHandler) ClockOut(w http.ResponseWriter, r *http.Request) {
	profile, ok := actor(w, r, h.logger)
	if !ok {
		return
	}

	var req models.ClockOutRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	result, err := h.service.ClockOut(r.Context(), profile.ID, r.PathValue("id"), req.Mode)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *TaskHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListEntries(r.Context(), r.URL.Query().Get("task_id"))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *TaskHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.ListProfiles(r.Context())
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *TaskHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Snapshot(r.Context())
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
