package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"github.com/secmon-lab/grcops/pkg/usecase"
)

const maxBodySize = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return goerr.Wrap(errTooLarge, "request body too large", goerr.V("limit", tooLarge.Limit))
		}
		return goerr.Wrap(errBadRequest, "failed to read request body", goerr.V("cause", err.Error()))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return goerr.Wrap(errBadRequest, "request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return goerr.Wrap(errBadRequest, "malformed JSON body", goerr.V("cause", err.Error()))
	}
	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, goerr.Wrap(errBadRequest, "invalid "+name, goerr.V(name, raw))
	}
	return id, nil
}

func pathControlID(r *http.Request, name string) (types.ControlID, error) {
	id := types.ControlID(chi.URLParam(r, name))
	if err := id.Validate(); err != nil {
		return "", goerr.Wrap(errBadRequest, "invalid "+name, goerr.V(name, string(id)))
	}
	return id.Canonical(), nil
}

// parseDate accepts RFC3339 timestamps and plain YYYY-MM-DD dates
func parseDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, *raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, *raw)
	if err != nil {
		var errs model.ValidationErrors
		errs.Add(field, field+" must be a date (YYYY-MM-DD) or RFC3339 timestamp")
		return nil, goerr.Wrap(errs, "invalid date", goerr.V("value", *raw))
	}
	return &t, nil
}

// optionalID distinguishes an absent field from an explicit null
type optionalID struct {
	Set   bool
	Value *int64
}

func (o *optionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// optionalDate distinguishes an absent date from an explicit null
type optionalDate struct {
	Set   bool
	Value *string
}

func (o *optionalDate) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o optionalDate) toUpdate(field string) (*usecase.DateUpdate, error) {
	if !o.Set {
		return nil, nil
	}
	t, err := parseDate(field, o.Value)
	if err != nil {
		return nil, err
	}
	return &usecase.DateUpdate{Value: t}, nil
}

// Frameworks

type frameworkRequest struct {
	Code          *string                `json:"code"`
	Name          *string                `json:"name"`
	Description   *string                `json:"description"`
	Type          *types.FrameworkType   `json:"type"`
	Status        *types.FrameworkStatus `json:"status"`
	Version       *string                `json:"version"`
	Publisher     *string                `json:"publisher"`
	EffectiveDate optionalDate           `json:"effectiveDate"`
	ReviewDate    optionalDate           `json:"reviewDate"`
	Owner         *string                `json:"owner"`
	Industry      *string                `json:"industry"`
	Tags          *[]string              `json:"tags"`
	CustomFields  *map[string]any        `json:"customFields"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (req *frameworkRequest) toInput() (usecase.FrameworkInput, error) {
	effective, err := parseDate("effectiveDate", req.EffectiveDate.Value)
	if err != nil {
		return usecase.FrameworkInput{}, err
	}
	review, err := parseDate("reviewDate", req.ReviewDate.Value)
	if err != nil {
		return usecase.FrameworkInput{}, err
	}

	return usecase.FrameworkInput{
		Code:          deref(req.Code),
		Name:          deref(req.Name),
		Description:   deref(req.Description),
		Type:          deref(req.Type),
		Status:        deref(req.Status),
		Version:       deref(req.Version),
		Publisher:     deref(req.Publisher),
		EffectiveDate: effective,
		ReviewDate:    review,
		Owner:         deref(req.Owner),
		Industry:      deref(req.Industry),
		Tags:          deref(req.Tags),
		CustomFields:  deref(req.CustomFields),
	}, nil
}

func (req *frameworkRequest) toUpdate() (usecase.FrameworkUpdate, error) {
	effective, err := req.EffectiveDate.toUpdate("effectiveDate")
	if err != nil {
		return usecase.FrameworkUpdate{}, err
	}
	review, err := req.ReviewDate.toUpdate("reviewDate")
	if err != nil {
		return usecase.FrameworkUpdate{}, err
	}

	return usecase.FrameworkUpdate{
		Code:          req.Code,
		Name:          req.Name,
		Description:   req.Description,
		Type:          req.Type,
		Status:        req.Status,
		Version:       req.Version,
		Publisher:     req.Publisher,
		EffectiveDate: effective,
		ReviewDate:    review,
		Owner:         req.Owner,
		Industry:      req.Industry,
		Tags:          req.Tags,
		CustomFields:  req.CustomFields,
	}, nil
}

type frameworkResponse struct {
	ID                           int64                 `json:"id"`
	Code                         string                `json:"code"`
	Name                         string                `json:"name"`
	Description                  string                `json:"description"`
	Type                         types.FrameworkType   `json:"type"`
	Status                       types.FrameworkStatus `json:"status"`
	Version                      string                `json:"version,omitempty"`
	Publisher                    string                `json:"publisher,omitempty"`
	EffectiveDate                *time.Time            `json:"effectiveDate,omitempty"`
	ReviewDate                   *time.Time            `json:"reviewDate,omitempty"`
	Owner                        string                `json:"owner,omitempty"`
	Industry                     string                `json:"industry,omitempty"`
	Tags                         []string              `json:"tags"`
	CustomFields                 map[string]any        `json:"customFields"`
	TotalControls                int                   `json:"totalControls"`
	ImplementedControls          int                   `json:"implementedControls"`
	PartiallyImplementedControls int                   `json:"partiallyImplementedControls"`
	NotImplementedControls       int                   `json:"notImplementedControls"`
	CompletionPercentage         float64               `json:"completionPercentage"`
	CriticalControls             int                   `json:"criticalControls"`
	HighControls                 int                   `json:"highControls"`
	MediumControls               int                   `json:"mediumControls"`
	LowControls                  int                   `json:"lowControls"`
	CreatedAt                    time.Time             `json:"createdAt"`
	UpdatedAt                    time.Time             `json:"updatedAt"`
}

func toFrameworkResponse(f *model.Framework) *frameworkResponse {
	resp := &frameworkResponse{
		ID:                           f.ID,
		Code:                         f.Code,
		Name:                         f.Name,
		Description:                  f.Description,
		Type:                         f.Type,
		Status:                       f.Status,
		Version:                      f.Version,
		Publisher:                    f.Publisher,
		EffectiveDate:                f.EffectiveDate,
		ReviewDate:                   f.ReviewDate,
		Owner:                        f.Owner,
		Industry:                     f.Industry,
		Tags:                         f.Tags,
		CustomFields:                 f.CustomFields,
		TotalControls:                f.Progress.TotalControls,
		ImplementedControls:          f.Progress.ImplementedControls,
		PartiallyImplementedControls: f.Progress.PartiallyImplementedControls,
		NotImplementedControls:       f.Progress.NotImplementedControls,
		CompletionPercentage:         f.Progress.CompletionPercentage,
		CriticalControls:             f.Progress.RiskDistribution.Critical,
		HighControls:                 f.Progress.RiskDistribution.High,
		MediumControls:               f.Progress.RiskDistribution.Medium,
		LowControls:                  f.Progress.RiskDistribution.Low,
		CreatedAt:                    f.CreatedAt,
		UpdatedAt:                    f.UpdatedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if resp.CustomFields == nil {
		resp.CustomFields = map[string]any{}
	}
	return resp
}

func toFrameworkResponses(fs []*model.Framework) []*frameworkResponse {
	resp := make([]*frameworkResponse, len(fs))
	for i, f := range fs {
		resp[i] = toFrameworkResponse(f)
	}
	return resp
}

type bulkControlsRequest struct {
	ControlIDs []int64 `json:"controlIds"`
}

type progressResponse struct {
	TotalControls                int     `json:"totalControls"`
	ImplementedControls          int     `json:"implementedControls"`
	PartiallyImplementedControls int     `json:"partiallyImplementedControls"`
	NotImplementedControls       int     `json:"notImplementedControls"`
	CompletionPercentage         float64 `json:"completionPercentage"`
}

func toProgressResponse(p model.Progress) progressResponse {
	return progressResponse{
		TotalControls:                p.TotalControls,
		ImplementedControls:          p.ImplementedControls,
		PartiallyImplementedControls: p.PartiallyImplementedControls,
		NotImplementedControls:       p.NotImplementedControls,
		CompletionPercentage:         p.CompletionPercentage,
	}
}

type domainBreakdownResponse struct {
	Domain string `json:"domain"`
	progressResponse
}

type riskReportResponse struct {
	Framework  *frameworkResponse                 `json:"framework"`
	ByStatus   map[types.ImplementationStatus]int `json:"byStatus"`
	ByPriority map[types.Priority]int             `json:"byPriority"`
	ByDomain   []domainBreakdownResponse          `json:"byDomain"`
	Gaps       []*frameworkControlResponse        `json:"gaps"`
}

func toRiskReportResponse(report *model.FrameworkRiskReport) *riskReportResponse {
	resp := &riskReportResponse{
		Framework:  toFrameworkResponse(report.Framework),
		ByStatus:   report.ByStatus,
		ByPriority: report.ByPriority,
		ByDomain:   make([]domainBreakdownResponse, len(report.ByDomain)),
		Gaps:       toFrameworkControlResponses(report.Gaps),
	}
	for i, d := range report.ByDomain {
		resp.ByDomain[i] = domainBreakdownResponse{
			Domain:           d.Domain,
			progressResponse: toProgressResponse(d.Progress),
		}
	}
	return resp
}

// Framework controls

type frameworkControlRequest struct {
	FrameworkID            optionalID                  `json:"frameworkId"`
	RequirementID          *string                     `json:"requirementId"`
	Title                  *string                     `json:"title"`
	Description            *string                     `json:"description"`
	ImplementationStatus   *types.ImplementationStatus `json:"implementationStatus"`
	Priority               *types.Priority             `json:"priority"`
	Domain                 *string                     `json:"domain"`
	Category               *string                     `json:"category"`
	Evidence               *string                     `json:"evidence"`
	TestingProcedure       *string                     `json:"testingProcedure"`
	ImplementationGuidance *string                     `json:"implementationGuidance"`
}

func (req *frameworkControlRequest) toInput() usecase.FrameworkControlInput {
	return usecase.FrameworkControlInput{
		FrameworkID:            req.FrameworkID.Value,
		RequirementID:          deref(req.RequirementID),
		Title:                  deref(req.Title),
		Description:            deref(req.Description),
		ImplementationStatus:   deref(req.ImplementationStatus),
		Priority:               deref(req.Priority),
		Domain:                 deref(req.Domain),
		Category:               deref(req.Category),
		Evidence:               deref(req.Evidence),
		TestingProcedure:       deref(req.TestingProcedure),
		ImplementationGuidance: deref(req.ImplementationGuidance),
	}
}

func (req *frameworkControlRequest) toUpdate() usecase.FrameworkControlUpdate {
	update := usecase.FrameworkControlUpdate{
		RequirementID:          req.RequirementID,
		Title:                  req.Title,
		Description:            req.Description,
		ImplementationStatus:   req.ImplementationStatus,
		Priority:               req.Priority,
		Domain:                 req.Domain,
		Category:               req.Category,
		Evidence:               req.Evidence,
		TestingProcedure:       req.TestingProcedure,
		ImplementationGuidance: req.ImplementationGuidance,
	}
	if req.FrameworkID.Set {
		update.Assignment = &usecase.FrameworkAssignment{FrameworkID: req.FrameworkID.Value}
	}
	return update
}

type frameworkControlResponse struct {
	ID                     int64                      `json:"id"`
	FrameworkID            *int64                     `json:"frameworkId"`
	RequirementID          string                     `json:"requirementId"`
	Title                  string                     `json:"title"`
	Description            string                     `json:"description"`
	ImplementationStatus   types.ImplementationStatus `json:"implementationStatus"`
	Priority               types.Priority             `json:"priority"`
	Domain                 string                     `json:"domain"`
	Category               string                     `json:"category"`
	Evidence               string                     `json:"evidence"`
	TestingProcedure       string                     `json:"testingProcedure"`
	ImplementationGuidance string                     `json:"implementationGuidance"`
	CreatedAt              time.Time                  `json:"createdAt"`
	UpdatedAt              time.Time                  `json:"updatedAt"`
}

func toFrameworkControlResponse(c *model.FrameworkControl) *frameworkControlResponse {
	return &frameworkControlResponse{
		ID:                     c.ID,
		FrameworkID:            c.FrameworkID,
		RequirementID:          c.RequirementID,
		Title:                  c.Title,
		Description:            c.Description,
		ImplementationStatus:   c.ImplementationStatus,
		Priority:               c.Priority,
		Domain:                 c.Domain,
		Category:               c.Category,
		Evidence:               c.Evidence,
		TestingProcedure:       c.TestingProcedure,
		ImplementationGuidance: c.ImplementationGuidance,
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
	}
}

func toFrameworkControlResponses(cs []*model.FrameworkControl) []*frameworkControlResponse {
	resp := make([]*frameworkControlResponse, len(cs))
	for i, c := range cs {
		resp[i] = toFrameworkControlResponse(c)
	}
	return resp
}

// Catalog

type controlMappingJSON struct {
	Standard  string `json:"standard"`
	Reference string `json:"reference"`
}

type controlUpdateRequest struct {
	ControlID   *string               `json:"controlId"`
	Source      *string               `json:"source"`
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	Domain      *string               `json:"domain"`
	Mappings    *[]controlMappingJSON `json:"mappings"`
}

func (req *controlUpdateRequest) toUpdate() usecase.ControlUpdate {
	update := usecase.ControlUpdate{
		Code:        req.ControlID,
		Source:      req.Source,
		Name:        req.Name,
		Description: req.Description,
		Domain:      req.Domain,
	}
	if req.Mappings != nil {
		mappings := make([]model.ControlMapping, len(*req.Mappings))
		for i, m := range *req.Mappings {
			mappings[i] = model.ControlMapping{Standard: m.Standard, Reference: m.Reference}
		}
		update.Mappings = &mappings
	}
	return update
}

type controlResponse struct {
	ID          types.ControlID      `json:"id"`
	ControlID   string               `json:"controlId"`
	Source      string               `json:"source"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Domain      string               `json:"domain"`
	Mappings    []controlMappingJSON `json:"mappings"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

func toControlResponse(c *model.Control) *controlResponse {
	resp := &controlResponse{
		ID:          c.ID,
		ControlID:   c.Code,
		Source:      c.Source,
		Name:        c.Name,
		Description: c.Description,
		Domain:      c.Domain,
		Mappings:    make([]controlMappingJSON, len(c.Mappings)),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	for i, m := range c.Mappings {
		resp.Mappings[i] = controlMappingJSON{Standard: m.Standard, Reference: m.Reference}
	}
	return resp
}

func toControlResponses(cs []*model.Control) []*controlResponse {
	resp := make([]*controlResponse, len(cs))
	for i, c := range cs {
		resp[i] = toControlResponse(c)
	}
	return resp
}

type catalogSummaryResponse struct {
	Total    int            `json:"total"`
	BySource map[string]int `json:"bySource"`
	ByDomain map[string]int `json:"byDomain"`
}

// Risks

type riskRequest struct {
	RiskID             *string            `json:"riskId"`
	Title              *string            `json:"title"`
	Description        *string            `json:"description"`
	InherentLikelihood *types.RiskLevel   `json:"inherentLikelihood"`
	InherentImpact     *types.RiskLevel   `json:"inherentImpact"`
	ResidualLikelihood *types.RiskLevel   `json:"residualLikelihood"`
	ResidualImpact     *types.RiskLevel   `json:"residualImpact"`
	Treatment          *types.Treatment   `json:"treatment"`
	Threats            *string            `json:"threats"`
	Assets             *string            `json:"assets"`
	BusinessUnit       *string            `json:"businessUnit"`
	RiskOwner          *string            `json:"riskOwner"`
	Creator            *string            `json:"creator"`
	LinkedControls     *[]types.ControlID `json:"linkedControls"`
}

func (req *riskRequest) toInput() usecase.RiskInput {
	return usecase.RiskInput{
		RiskID:             deref(req.RiskID),
		Title:              deref(req.Title),
		Description:        deref(req.Description),
		InherentLikelihood: deref(req.InherentLikelihood),
		InherentImpact:     deref(req.InherentImpact),
		ResidualLikelihood: deref(req.ResidualLikelihood),
		ResidualImpact:     deref(req.ResidualImpact),
		Treatment:          deref(req.Treatment),
		Threats:            deref(req.Threats),
		Assets:             deref(req.Assets),
		BusinessUnit:       deref(req.BusinessUnit),
		RiskOwner:          deref(req.RiskOwner),
		Creator:            deref(req.Creator),
		LinkedControls:     deref(req.LinkedControls),
	}
}

// toUpdate ignores creator; it is fixed at creation
func (req *riskRequest) toUpdate() usecase.RiskUpdate {
	return usecase.RiskUpdate{
		RiskID:             req.RiskID,
		Title:              req.Title,
		Description:        req.Description,
		InherentLikelihood: req.InherentLikelihood,
		InherentImpact:     req.InherentImpact,
		ResidualLikelihood: req.ResidualLikelihood,
		ResidualImpact:     req.ResidualImpact,
		Treatment:          req.Treatment,
		Threats:            req.Threats,
		Assets:             req.Assets,
		BusinessUnit:       req.BusinessUnit,
		RiskOwner:          req.RiskOwner,
		LinkedControls:     req.LinkedControls,
	}
}

type riskResponse struct {
	ID                 int64             `json:"id"`
	RiskID             string            `json:"riskId"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	InherentLikelihood types.RiskLevel   `json:"inherentLikelihood"`
	InherentImpact     types.RiskLevel   `json:"inherentImpact"`
	ResidualLikelihood types.RiskLevel   `json:"residualLikelihood"`
	ResidualImpact     types.RiskLevel   `json:"residualImpact"`
	InherentScore      int               `json:"inherentScore"`
	ResidualScore      int               `json:"residualScore"`
	Treatment          types.Treatment   `json:"treatment"`
	Threats            string            `json:"threats"`
	Assets             string            `json:"assets"`
	BusinessUnit       string            `json:"businessUnit"`
	RiskOwner          string            `json:"riskOwner"`
	Creator            string            `json:"creator"`
	LinkedControls     []types.ControlID `json:"linkedControls"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

func toRiskResponse(r *model.Risk) *riskResponse {
	resp := &riskResponse{
		ID:                 r.ID,
		RiskID:             r.RiskID,
		Title:              r.Title,
		Description:        r.Description,
		InherentLikelihood: r.InherentLikelihood,
		InherentImpact:     r.InherentImpact,
		ResidualLikelihood: r.ResidualLikelihood,
		ResidualImpact:     r.ResidualImpact,
		InherentScore:      r.InherentScore(),
		ResidualScore:      r.ResidualScore(),
		Treatment:          r.Treatment,
		Threats:            r.Threats,
		Assets:             r.Assets,
		BusinessUnit:       r.BusinessUnit,
		RiskOwner:          r.RiskOwner,
		Creator:            r.Creator,
		LinkedControls:     r.LinkedControls,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if resp.LinkedControls == nil {
		resp.LinkedControls = []types.ControlID{}
	}
	return resp
}

func toRiskResponses(rs []*model.Risk) []*riskResponse {
	resp := make([]*riskResponse, len(rs))
	for i, r := range rs {
		resp[i] = toRiskResponse(r)
	}
	return resp
}
