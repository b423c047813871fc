package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/usecase"
)

type catalogHandler struct {
	catalog *usecase.CatalogUseCase
	risk    *usecase.RiskUseCase
}

func (h *catalogHandler) routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/stats/summary", h.summary)
	r.Get("/code/{controlId}", h.getByCode)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Get("/{id}/risks", h.risks)
}

func (h *catalogHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.ControlFilter{
		Domain: q.Get("domain"),
		Source: q.Get("source"),
		Search: q.Get("search"),
	}

	controls, err := h.catalog.ListControls(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toControlResponses(controls))
}

func (h *catalogHandler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.catalog.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, catalogSummaryResponse{
		Total:    summary.Total,
		BySource: summary.BySource,
		ByDomain: summary.ByDomain,
	})
}

func (h *catalogHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathControlID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	control, err := h.catalog.GetControl(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toControlResponse(control))
}

func (h *catalogHandler) getByCode(w http.ResponseWriter, r *http.Request) {
	control, err := h.catalog.GetControlByCode(r.Context(), chi.URLParam(r, "controlId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toControlResponse(control))
}

func (h *catalogHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathControlID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req controlUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	control, err := h.catalog.UpdateControl(r.Context(), id, req.toUpdate())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toControlResponse(control))
}

func (h *catalogHandler) risks(w http.ResponseWriter, r *http.Request) {
	id, err := pathControlID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	risks, err := h.risk.ListRisksByControl(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toRiskResponses(risks))
}
