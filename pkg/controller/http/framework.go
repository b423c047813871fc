package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"github.com/secmon-lab/grcops/pkg/usecase"
)

type frameworkHandler struct {
	uc *usecase.FrameworkUseCase
}

func (h *frameworkHandler) routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/code/{code}", h.getByCode)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Get("/controls", h.listControls)
		r.Post("/controls/add-bulk", h.addControls)
		r.Post("/controls/remove-bulk", h.removeControls)
		r.Post("/progress/update", h.recalculate)
		r.Get("/risk-report", h.riskReport)
	})
}

func (h *frameworkHandler) create(w http.ResponseWriter, r *http.Request) {
	var req frameworkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(w, r, err)
		return
	}

	framework, err := h.uc.CreateFramework(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, toFrameworkResponse(framework))
}

func parseFrameworkQuery(r *http.Request) (model.FrameworkQuery, error) {
	q := r.URL.Query()
	query := model.FrameworkQuery{
		Search:    q.Get("search"),
		Type:      types.FrameworkType(q.Get("type")),
		Status:    types.FrameworkStatus(q.Get("status")),
		Owner:     q.Get("owner"),
		Industry:  q.Get("industry"),
		Tag:       q.Get("tag"),
		SortBy:    model.FrameworkSortKey(q.Get("sortBy")),
		SortOrder: model.SortOrder(q.Get("sortOrder")),
	}

	for name, dst := range map[string]*int{"page": &query.Page, "limit": &query.Limit} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return query, goerr.Wrap(errBadRequest, name+" must be an integer", goerr.V(name, raw))
		}
		*dst = v
	}
	return query, nil
}

func (h *frameworkHandler) list(w http.ResponseWriter, r *http.Request) {
	query, err := parseFrameworkQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.uc.ListFrameworks(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, r, toFrameworkResponses(page.Items), page)
}

func (h *frameworkHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	framework, err := h.uc.GetFramework(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toFrameworkResponse(framework))
}

func (h *frameworkHandler) getByCode(w http.ResponseWriter, r *http.Request) {
	framework, err := h.uc.GetFrameworkByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toFrameworkResponse(framework))
}

func (h *frameworkHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req frameworkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	update, err := req.toUpdate()
	if err != nil {
		writeError(w, r, err)
		return
	}

	framework, err := h.uc.UpdateFramework(r.Context(), id, update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toFrameworkResponse(framework))
}

func (h *frameworkHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.uc.DeleteFramework(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *frameworkHandler) listControls(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	controls, err := h.uc.ListControls(r.Context(), id, r.URL.Query().Get("domain"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toFrameworkControlResponses(controls))
}

func (h *frameworkHandler) bulk(w http.ResponseWriter, r *http.Request, apply func(id int64, controlIDs []int64) (*model.Framework, error)) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req bulkControlsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.ControlIDs) == 0 {
		var errs model.ValidationErrors
		errs.Add("controlIds", "controlIds must not be empty")
		writeError(w, r, errs)
		return
	}

	framework, err := apply(id, req.ControlIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toFrameworkResponse(framework))
}

func (h *frameworkHandler) addControls(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, func(id int64, controlIDs []int64) (*model.Framework, error) {
		return h.uc.AddControls(r.Context(), id, controlIDs)
	})
}

func (h *frameworkHandler) removeControls(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, func(id int64, controlIDs []int64) (*model.Framework, error) {
		return h.uc.RemoveControls(r.Context(), id, controlIDs)
	})
}

func (h *frameworkHandler) recalculate(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	framework, err := h.uc.RecalculateProgress(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toFrameworkResponse(framework))
}

func (h *frameworkHandler) riskReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.uc.RiskReport(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toRiskReportResponse(report))
}
