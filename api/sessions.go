package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tbxark/intakeagent/agent"
	"github.com/tbxark/intakeagent/types"
)

type startRequest struct {
	FormType types.FormType `json:"form_type"`
}

type turnRequest struct {
	Text string `json:"text"`
}

type actionResponse struct {
	Message   string            `json:"message"`
	Decision  *agent.Decision   `json:"decision,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Session   *agent.View       `json:"session"`
}

// RegisterRoutes registers session and form routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/forms/{type}/schema", h.FormSchema)
		r.Post("/sessions", h.Start)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.View)
			r.Delete("/", h.Remove)
			r.Post("/turns", h.SubmitTurn)
			r.Post("/undo", h.action((*agent.Sessions).Undo))
			r.Post("/details", h.action((*agent.Sessions).AddMoreDetails))
			r.Post("/submit", h.action((*agent.Sessions).SubmitRecord))
			r.Post("/reset", h.action((*agent.Sessions).Reset))
			r.Put("/form", h.SwitchFormType)
		})
	})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, resp *agent.Response) {
	view, err := h.sessions.Flow().View(resp.State)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, status, &actionResponse{
		Message:   resp.Message,
		Decision:  resp.Decision,
		Retryable: resp.Retryable,
		Metadata:  resp.Metadata,
		Session:   view,
	})
}

// Start creates a session. The form type defaults to complaint.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	req := startRequest{FormType: types.FormComplaint}
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if !req.FormType.Valid() {
		Error(w, http.StatusBadRequest, "unknown form type")
		return
	}
	resp, err := h.sessions.Start(r.Context(), "", req.FormType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, resp)
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := h.sessions.SubmitTurn(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, resp)
}

func (h *Handler) SwitchFormType(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil || !req.FormType.Valid() {
		Error(w, http.StatusBadRequest, "unknown form type")
		return
	}
	resp, err := h.sessions.SwitchFormType(r.Context(), chi.URLParam(r, "id"), req.FormType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, resp)
}

func (h *Handler) action(fn func(s *agent.Sessions, ctx context.Context, id string) (*agent.Response, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(h.sessions, r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.respond(w, r, http.StatusOK, resp)
	}
}

// FormSchema returns the JSON Schema of a form's user-supplied fields.
func (h *Handler) FormSchema(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Flow().Schema(types.FormType(chi.URLParam(r, "type")))
	if err != nil {
		Error(w, http.StatusNotFound, err.Error())
		return
	}
	JSON(w, http.StatusOK, s.JSONSchema())
}
