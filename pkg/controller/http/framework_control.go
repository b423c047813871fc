package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/secmon-lab/grcops/pkg/usecase"
)

type frameworkControlHandler struct {
	uc *usecase.FrameworkControlUseCase
}

func (h *frameworkControlHandler) routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *frameworkControlHandler) list(w http.ResponseWriter, r *http.Request) {
	controls, err := h.uc.ListControls(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toFrameworkControlResponses(controls))
}

func (h *frameworkControlHandler) create(w http.ResponseWriter, r *http.Request) {
	var req frameworkControlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	control, err := h.uc.CreateControl(r.Context(), req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, toFrameworkControlResponse(control))
}

func (h *frameworkControlHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	control, err := h.uc.GetControl(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toFrameworkControlResponse(control))
}

func (h *frameworkControlHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req frameworkControlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	control, err := h.uc.UpdateControl(r.Context(), id, req.toUpdate())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toFrameworkControlResponse(control))
}

func (h *frameworkControlHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.uc.DeleteControl(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
