package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"github.com/secmon-lab/grcops/pkg/usecase"
)

type riskHandler struct {
	uc *usecase.RiskUseCase
}

func (h *riskHandler) routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *riskHandler) create(w http.ResponseWriter, r *http.Request) {
	var req riskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	risk, err := h.uc.CreateRisk(r.Context(), req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, toRiskResponse(risk))
}

func (h *riskHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.RiskFilter{
		Search:       q.Get("search"),
		Treatment:    types.Treatment(q.Get("treatment")),
		BusinessUnit: q.Get("businessUnit"),
		RiskOwner:    q.Get("riskOwner"),
	}

	risks, err := h.uc.ListRisks(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toRiskResponses(risks))
}

func (h *riskHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	risk, err := h.uc.GetRisk(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toRiskResponse(risk))
}

func (h *riskHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req riskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	risk, err := h.uc.UpdateRisk(r.Context(), id, req.toUpdate())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toRiskResponse(risk))
}

func (h *riskHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.uc.DeleteRisk(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
