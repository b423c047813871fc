package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	httpctrl "github.com/secmon-lab/grcops/pkg/controller/http"
	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"github.com/secmon-lab/grcops/pkg/repository/memory"
	"github.com/secmon-lab/grcops/pkg/usecase"
)

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta *struct {
		Total      int `json:"total"`
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		TotalPages int `json:"totalPages"`
	} `json:"meta"`
	Timestamp string `json:"timestamp"`
}

type errorEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Errors     []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
	Path string `json:"path"`
}

type testServer struct {
	t    *testing.T
	repo *memory.Memory
	srv  *httpctrl.Server
}

func newTestServer(t *testing.T, opts ...httpctrl.Options) *testServer {
	t.Helper()
	repo := memory.New()
	return newTestServerWith(t, repo, usecase.New(repo), opts...)
}

func newTestServerWith(t *testing.T, repo *memory.Memory, uc *usecase.UseCases, opts ...httpctrl.Options) *testServer {
	t.Helper()
	srv, err := httpctrl.New(uc, opts...)
	gt.NoError(t, err).Required()
	return &testServer{t: t, repo: repo, srv: srv}
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			gt.NoError(s.t, json.NewEncoder(&buf).Encode(v)).Required()
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.srv.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env envelope
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &env)).Required()
	var v T
	gt.NoError(t, json.Unmarshal(env.Data, &v)).Required()
	return v
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &env)).Required()
	return env
}

func (s *testServer) seedControl(code string) *model.Control {
	s.t.Helper()
	c, err := s.repo.Control().Create(context.Background(), &model.Control{
		Code:   code,
		Source: "SCF",
		Name:   code + " control",
		Domain: "IAC",
	})
	gt.NoError(s.t, err).Required()
	return c
}

type frameworkJSON struct {
	ID                           int64   `json:"id"`
	Code                         string  `json:"code"`
	Status                       string  `json:"status"`
	TotalControls                int     `json:"totalControls"`
	ImplementedControls          int     `json:"implementedControls"`
	PartiallyImplementedControls int     `json:"partiallyImplementedControls"`
	CompletionPercentage         float64 `json:"completionPercentage"`
	Tags                         []string
}

type controlJSON struct {
	ID          int64  `json:"id"`
	FrameworkID *int64 `json:"frameworkId"`
	Title       string `json:"title"`
}

type riskJSON struct {
	ID             int64    `json:"id"`
	RiskID         string   `json:"riskId"`
	Title          string   `json:"title"`
	Creator        string   `json:"creator"`
	Treatment      string   `json:"treatment"`
	InherentScore  int      `json:"inherentScore"`
	LinkedControls []string `json:"linkedControls"`
}

type unreachableRepository struct {
	*memory.Memory
}

func (unreachableRepository) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)

	t.Run("backend down", func(t *testing.T) {
		repo := unreachableRepository{Memory: memory.New()}
		srv, err := httpctrl.New(usecase.New(repo))
		gt.NoError(t, err).Required()

		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		gt.Value(t, w.Code).Equal(http.StatusServiceUnavailable)

		var resp errorEnvelope
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp.StatusCode).Equal(http.StatusServiceUnavailable)
	})
}

func TestFrameworkLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/frameworks", map[string]any{
		"code": "SOC2",
		"name": "SOC 2",
		"type": "compliance",
		"tags": []string{"audit"},
	})
	gt.Value(t, w.Code).Equal(http.StatusCreated)
	fw := decodeData[frameworkJSON](t, w)
	gt.Value(t, fw.Code).Equal("SOC2")
	gt.Value(t, fw.Status).Equal("draft")

	t.Run("duplicate code is a conflict", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/frameworks", map[string]any{
			"code": "SOC2", "name": "again", "type": "compliance",
		})
		gt.Value(t, w.Code).Equal(http.StatusConflict)
		gt.Value(t, decodeError(t, w).StatusCode).Equal(http.StatusConflict)
	})

	t.Run("progress follows control status", func(t *testing.T) {
		statuses := []string{"implemented", "implemented", "partially_implemented", "not_implemented"}
		for i, st := range statuses {
			w := s.do(http.MethodPost, "/api/controls", map[string]any{
				"frameworkId":          fw.ID,
				"requirementId":        "CC" + string(rune('1'+i)),
				"title":                "control",
				"implementationStatus": st,
			})
			gt.Value(t, w.Code).Equal(http.StatusCreated)
		}

		w := s.do(http.MethodGet, "/api/frameworks/code/SOC2", nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		got := decodeData[frameworkJSON](t, w)
		gt.Value(t, got.TotalControls).Equal(4)
		gt.Value(t, got.ImplementedControls).Equal(2)
		gt.Value(t, got.PartiallyImplementedControls).Equal(1)
		gt.Value(t, got.CompletionPercentage).Equal(62.5)
	})

	t.Run("list returns page meta", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/frameworks?limit=1&tag=audit", nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		var env envelope
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &env)).Required()
		gt.Value(t, env.Meta).NotNil()
		gt.Value(t, env.Meta.Total).Equal(1)
		gt.Value(t, env.Meta.Limit).Equal(1)
		gt.Value(t, env.Meta.TotalPages).Equal(1)
	})

	t.Run("invalid sort key is rejected", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/frameworks?sortBy=bogus", nil)
		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
	})

	t.Run("largest page number returns an empty page", func(t *testing.T) {
		w := s.do(http.MethodGet, "/api/frameworks?page=9223372036854775807&limit=100", nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		var env envelope
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &env)).Required()
		gt.Value(t, env.Meta.Total).Equal(1)
		gt.Value(t, env.Meta.Page).Equal(9223372036854775807)
		gt.Array(t, decodeData[[]frameworkJSON](t, w)).Length(0)
	})

	t.Run("null clears a date", func(t *testing.T) {
		type datesJSON struct {
			EffectiveDate *string `json:"effectiveDate"`
			ReviewDate    *string `json:"reviewDate"`
		}

		w := s.do(http.MethodPut, "/api/frameworks/"+itoa(fw.ID), map[string]any{
			"effectiveDate": "2025-01-01",
			"reviewDate":    "2026-01-01",
		})
		gt.Value(t, w.Code).Equal(http.StatusOK)
		got := decodeData[datesJSON](t, w)
		gt.Value(t, got.EffectiveDate).NotNil()
		gt.Value(t, got.ReviewDate).NotNil()

		w = s.do(http.MethodPut, "/api/frameworks/"+itoa(fw.ID), map[string]any{"effectiveDate": nil})
		gt.Value(t, w.Code).Equal(http.StatusOK)
		got = decodeData[datesJSON](t, w)
		gt.Value(t, got.EffectiveDate).Nil()
		gt.Value(t, got.ReviewDate).NotNil()

		w = s.do(http.MethodPut, "/api/frameworks/"+itoa(fw.ID), map[string]any{"reviewDate": "soon"})
		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
	})

	t.Run("delete unassigns controls", func(t *testing.T) {
		w := s.do(http.MethodDelete, "/api/frameworks/"+itoa(fw.ID), nil)
		gt.Value(t, w.Code).Equal(http.StatusNoContent)

		w = s.do(http.MethodGet, "/api/controls", nil)
		controls := decodeData[[]controlJSON](t, w)
		gt.Array(t, controls).Length(4)
		for _, c := range controls {
			gt.Value(t, c.FrameworkID).Nil()
		}

		w = s.do(http.MethodGet, "/api/frameworks/"+itoa(fw.ID), nil)
		gt.Value(t, w.Code).Equal(http.StatusNotFound)
	})
}

func TestRequestBodyLimit(t *testing.T) {
	s := newTestServer(t)

	body := `{"code":"BIG","type":"security","name":"` + strings.Repeat("x", 2<<20) + `"}`
	w := s.do(http.MethodPost, "/api/frameworks", body)
	gt.Value(t, w.Code).Equal(http.StatusRequestEntityTooLarge)
	gt.Value(t, decodeError(t, w).StatusCode).Equal(http.StatusRequestEntityTooLarge)

	w = s.do(http.MethodGet, "/api/frameworks/code/BIG", nil)
	gt.Value(t, w.Code).Equal(http.StatusNotFound)

	w = s.do(http.MethodPost, "/api/frameworks", `{"code":"SMALL","type":"security","name":"small"}`)
	gt.Value(t, w.Code).Equal(http.StatusCreated)
}

func TestFrameworkControlReassignment(t *testing.T) {
	s := newTestServer(t)

	create := func(code string) frameworkJSON {
		w := s.do(http.MethodPost, "/api/frameworks", map[string]any{"code": code, "name": code, "type": "security"})
		gt.Value(t, w.Code).Equal(http.StatusCreated)
		return decodeData[frameworkJSON](t, w)
	}
	a := create("A")
	b := create("B")

	w := s.do(http.MethodPost, "/api/controls", map[string]any{
		"frameworkId": a.ID, "requirementId": "R1", "title": "t", "implementationStatus": "implemented",
	})
	gt.Value(t, w.Code).Equal(http.StatusCreated)
	ctrl := decodeData[controlJSON](t, w)

	w = s.do(http.MethodPut, "/api/controls/"+itoa(ctrl.ID), map[string]any{"frameworkId": b.ID})
	gt.Value(t, w.Code).Equal(http.StatusOK)

	getFramework := func(id int64) frameworkJSON {
		w := s.do(http.MethodGet, "/api/frameworks/"+itoa(id), nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		return decodeData[frameworkJSON](t, w)
	}
	gt.Value(t, getFramework(a.ID).TotalControls).Equal(0)
	gt.Value(t, getFramework(b.ID).TotalControls).Equal(1)
	gt.Value(t, getFramework(b.ID).CompletionPercentage).Equal(100.0)

	t.Run("title-only update keeps assignment", func(t *testing.T) {
		w := s.do(http.MethodPut, "/api/controls/"+itoa(ctrl.ID), map[string]any{"title": "renamed"})
		gt.Value(t, w.Code).Equal(http.StatusOK)
		got := decodeData[controlJSON](t, w)
		gt.Value(t, got.FrameworkID).NotNil()
		gt.Value(t, *got.FrameworkID).Equal(b.ID)
	})

	t.Run("explicit null unassigns", func(t *testing.T) {
		w := s.do(http.MethodPut, "/api/controls/"+itoa(ctrl.ID), `{"frameworkId": null}`)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		got := decodeData[controlJSON](t, w)
		gt.Value(t, got.FrameworkID).Nil()
		gt.Value(t, getFramework(b.ID).TotalControls).Equal(0)
	})

	t.Run("unknown framework is not found", func(t *testing.T) {
		w := s.do(http.MethodPut, "/api/controls/"+itoa(ctrl.ID), map[string]any{"frameworkId": 999})
		gt.Value(t, w.Code).Equal(http.StatusNotFound)
	})

	t.Run("bulk add moves controls", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/frameworks/"+itoa(a.ID)+"/controls/add-bulk", map[string]any{
			"controlIds": []int64{ctrl.ID},
		})
		gt.Value(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, decodeData[frameworkJSON](t, w).TotalControls).Equal(1)

		w = s.do(http.MethodGet, "/api/frameworks/"+itoa(a.ID)+"/controls", nil)
		gt.Array(t, decodeData[[]controlJSON](t, w)).Length(1)
	})
}

func TestRiskEndpoints(t *testing.T) {
	s := newTestServer(t)
	c1 := s.seedControl("IAC-01")
	c2 := s.seedControl("IAC-02")

	w := s.do(http.MethodPost, "/api/risks", map[string]any{
		"riskId":             "R-001",
		"title":              "Credential theft",
		"inherentLikelihood": "high",
		"inherentImpact":     "critical",
		"linkedControls":     []string{string(c2.ID), string(c1.ID), string(c2.ID)},
	}, httpctrl.ActorHeader, "alice")
	gt.Value(t, w.Code).Equal(http.StatusCreated)
	risk := decodeData[riskJSON](t, w)
	gt.Array(t, risk.LinkedControls).Length(2)
	gt.Value(t, risk.Creator).Equal("alice")
	gt.Value(t, risk.Treatment).Equal(string(types.TreatmentMitigate))
	gt.Value(t, risk.InherentScore).Equal(20)

	t.Run("update without linkedControls keeps links", func(t *testing.T) {
		w := s.do(http.MethodPut, "/api/risks/"+itoa(risk.ID), map[string]any{"title": "renamed"})
		gt.Value(t, w.Code).Equal(http.StatusOK)
		got := decodeData[riskJSON](t, w)
		gt.Value(t, got.Title).Equal("renamed")
		gt.Array(t, got.LinkedControls).Length(2)

		w = s.do(http.MethodPut, "/api/risks/"+itoa(risk.ID), `{"linkedControls": null}`)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		gt.Array(t, decodeData[riskJSON](t, w).LinkedControls).Length(2)
	})

	t.Run("empty linkedControls clears links", func(t *testing.T) {
		w := s.do(http.MethodPut, "/api/risks/"+itoa(risk.ID), map[string]any{"linkedControls": []string{}})
		gt.Value(t, w.Code).Equal(http.StatusOK)
		gt.Array(t, decodeData[riskJSON](t, w).LinkedControls).Length(0)
	})

	t.Run("unknown control is not found", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/risks", map[string]any{
			"riskId":         "R-002",
			"title":          "t",
			"linkedControls": []string{"0d9b8c1e-4a55-4c1a-9d3c-8f0f6f3c2a11"},
		})
		gt.Value(t, w.Code).Equal(http.StatusNotFound)

		w = s.do(http.MethodGet, "/api/risks", nil)
		gt.Array(t, decodeData[[]riskJSON](t, w)).Length(1)
	})

	t.Run("validation errors carry fields", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/risks", map[string]any{
			"title":          "t",
			"inherentImpact": "extreme",
		})
		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
		env := decodeError(t, w)
		fields := map[string]bool{}
		for _, e := range env.Errors {
			fields[e.Field] = true
		}
		gt.Bool(t, fields["riskId"]).True()
		gt.Bool(t, fields["inherentImpact"]).True()
	})

	t.Run("malformed body is bad request", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/risks", `{"riskId":`)
		gt.Value(t, w.Code).Equal(http.StatusBadRequest)
		gt.Value(t, decodeError(t, w).Path).Equal("/api/risks")
	})

	t.Run("risks by catalog control", func(t *testing.T) {
		w := s.do(http.MethodPut, "/api/risks/"+itoa(risk.ID), map[string]any{"linkedControls": []string{string(c1.ID)}})
		gt.Value(t, w.Code).Equal(http.StatusOK)

		w = s.do(http.MethodGet, "/api/catalog/controls/"+string(c1.ID)+"/risks", nil)
		gt.Value(t, w.Code).Equal(http.StatusOK)
		gt.Array(t, decodeData[[]riskJSON](t, w)).Length(1)

		w = s.do(http.MethodGet, "/api/catalog/controls/"+string(c2.ID)+"/risks", nil)
		gt.Array(t, decodeData[[]riskJSON](t, w)).Length(0)
	})

	t.Run("delete cascades", func(t *testing.T) {
		w := s.do(http.MethodDelete, "/api/risks/"+itoa(risk.ID), nil)
		gt.Value(t, w.Code).Equal(http.StatusNoContent)

		links, err := s.repo.RiskControl().ListByRisk(context.Background(), risk.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, links).Length(0)

		w = s.do(http.MethodGet, "/api/risks/"+itoa(risk.ID), nil)
		gt.Value(t, w.Code).Equal(http.StatusNotFound)
	})
}

func TestCatalogEndpoints(t *testing.T) {
	s := newTestServer(t)
	c := s.seedControl("IAC-01")
	s.seedControl("IAC-02")

	w := s.do(http.MethodGet, "/api/catalog/controls/stats/summary", nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	summary := decodeData[struct {
		Total    int            `json:"total"`
		BySource map[string]int `json:"bySource"`
	}](t, w)
	gt.Value(t, summary.Total).Equal(2)
	gt.Value(t, summary.BySource["SCF"]).Equal(2)

	w = s.do(http.MethodGet, "/api/catalog/controls/code/IAC-01", nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)

	w = s.do(http.MethodPut, "/api/catalog/controls/"+string(c.ID), map[string]any{"controlId": "IAC-02"})
	gt.Value(t, w.Code).Equal(http.StatusConflict)

	w = s.do(http.MethodGet, "/api/catalog/controls/"+strings.ToUpper(string(c.ID)), nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)
	gt.Value(t, decodeData[struct {
		ID string `json:"id"`
	}](t, w).ID).Equal(string(c.ID))

	w = s.do(http.MethodGet, "/api/catalog/controls/not-a-uuid", nil)
	gt.Value(t, w.Code).Equal(http.StatusBadRequest)

	w = s.do(http.MethodGet, "/api/catalog/controls?search=iac-01", nil)
	gt.Array(t, decodeData[[]struct {
		ControlID string `json:"controlId"`
	}](t, w)).Length(1)
}

func TestReadOnlyAuthorizer(t *testing.T) {
	repo := memory.New()
	uc := usecase.New(repo, usecase.WithAuthorizer(&usecase.ReadOnlyAuthorizer{}))
	s := newTestServerWith(t, repo, uc)

	w := s.do(http.MethodGet, "/api/frameworks", nil)
	gt.Value(t, w.Code).Equal(http.StatusOK)

	w = s.do(http.MethodPost, "/api/frameworks", map[string]any{"code": "X", "name": "X", "type": "custom"})
	gt.Value(t, w.Code).Equal(http.StatusForbidden)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, httpctrl.WithRateLimit(0.001, 2))

	gt.Value(t, s.do(http.MethodGet, "/api/risks", nil).Code).Equal(http.StatusOK)
	gt.Value(t, s.do(http.MethodGet, "/api/risks", nil).Code).Equal(http.StatusOK)

	w := s.do(http.MethodGet, "/api/risks", nil)
	gt.Value(t, w.Code).Equal(http.StatusTooManyRequests)
	gt.Value(t, w.Header().Get("Retry-After")).Equal("1")

	// health is outside the limited surface
	gt.Value(t, s.do(http.MethodGet, "/health", nil).Code).Equal(http.StatusOK)
}
