package postgres

import (
	"time"

	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/domain/types"
	"gorm.io/datatypes"
)

type frameworkRecord struct {
	ID            int64                       `gorm:"primaryKey;autoIncrement"`
	Code          string                      `gorm:"size:100;not null;uniqueIndex"`
	Name          string                      `gorm:"size:255;not null"`
	Description   string                      `gorm:"type:text"`
	Type          string                      `gorm:"size:32;not null;index"`
	Status        string                      `gorm:"size:32;not null;index"`
	Version       string                      `gorm:"size:64"`
	Publisher     string                      `gorm:"size:255"`
	EffectiveDate *time.Time                  `gorm:"type:date"`
	ReviewDate    *time.Time                  `gorm:"type:date"`
	Owner         string                      `gorm:"size:255;index"`
	Industry      string                      `gorm:"size:255;index"`
	Tags          datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	CustomFields  datatypes.JSONMap           `gorm:"type:jsonb"`

	TotalControls                int     `gorm:"not null;default:0"`
	ImplementedControls          int     `gorm:"not null;default:0"`
	PartiallyImplementedControls int     `gorm:"not null;default:0"`
	NotImplementedControls       int     `gorm:"not null;default:0"`
	CompletionPercentage         float64 `gorm:"type:numeric(5,2);not null;default:0"`
	CriticalControls             int     `gorm:"not null;default:0"`
	HighControls                 int     `gorm:"not null;default:0"`
	MediumControls               int     `gorm:"not null;default:0"`
	LowControls                  int     `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (frameworkRecord) TableName() string { return "frameworks" }

// progressColumns are written only through UpdateProgress
var progressColumns = []string{
	"total_controls",
	"implemented_controls",
	"partially_implemented_controls",
	"not_implemented_controls",
	"completion_percentage",
	"critical_controls",
	"high_controls",
	"medium_controls",
	"low_controls",
}

func progressValues(p model.Progress) map[string]any {
	return map[string]any{
		"total_controls":                 p.TotalControls,
		"implemented_controls":           p.ImplementedControls,
		"partially_implemented_controls": p.PartiallyImplementedControls,
		"not_implemented_controls":       p.NotImplementedControls,
		"completion_percentage":          p.CompletionPercentage,
		"critical_controls":              p.RiskDistribution.Critical,
		"high_controls":                  p.RiskDistribution.High,
		"medium_controls":                p.RiskDistribution.Medium,
		"low_controls":                   p.RiskDistribution.Low,
	}
}

func newFrameworkRecord(f *model.Framework) *frameworkRecord {
	rec := &frameworkRecord{
		ID:            f.ID,
		Code:          f.Code,
		Name:          f.Name,
		Description:   f.Description,
		Type:          string(f.Type),
		Status:        string(f.Status),
		Version:       f.Version,
		Publisher:     f.Publisher,
		EffectiveDate: f.EffectiveDate,
		ReviewDate:    f.ReviewDate,
		Owner:         f.Owner,
		Industry:      f.Industry,
		Tags:          datatypes.JSONSlice[string](f.Tags),
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
	if rec.Tags == nil {
		rec.Tags = datatypes.JSONSlice[string]{}
	}
	if f.CustomFields != nil {
		rec.CustomFields = datatypes.JSONMap(f.CustomFields)
	}
	return rec
}

func (r *frameworkRecord) toModel() *model.Framework {
	f := &model.Framework{
		ID:            r.ID,
		Code:          r.Code,
		Name:          r.Name,
		Description:   r.Description,
		Type:          types.FrameworkType(r.Type),
		Status:        types.FrameworkStatus(r.Status),
		Version:       r.Version,
		Publisher:     r.Publisher,
		EffectiveDate: r.EffectiveDate,
		ReviewDate:    r.ReviewDate,
		Owner:         r.Owner,
		Industry:      r.Industry,
		Tags:          []string(r.Tags),
		Progress: model.Progress{
			TotalControls:                r.TotalControls,
			ImplementedControls:          r.ImplementedControls,
			PartiallyImplementedControls: r.PartiallyImplementedControls,
			NotImplementedControls:       r.NotImplementedControls,
			CompletionPercentage:         r.CompletionPercentage,
			RiskDistribution: model.RiskDistribution{
				Critical: r.CriticalControls,
				High:     r.HighControls,
				Medium:   r.MediumControls,
				Low:      r.LowControls,
			},
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.CustomFields != nil {
		f.CustomFields = map[string]any(r.CustomFields)
	}
	return f
}

type frameworkControlRecord struct {
	ID                     int64            `gorm:"primaryKey;autoIncrement"`
	FrameworkID            *int64           `gorm:"index"`
	Framework              *frameworkRecord `gorm:"foreignKey:FrameworkID;constraint:OnDelete:SET NULL"`
	RequirementID          string           `gorm:"size:100;not null"`
	Title                  string           `gorm:"size:500;not null"`
	Description            string           `gorm:"type:text"`
	ImplementationStatus   string           `gorm:"size:32;not null;index"`
	Priority               string           `gorm:"size:16;not null"`
	Domain                 string           `gorm:"size:255;index"`
	Category               string           `gorm:"size:255"`
	Evidence               string           `gorm:"type:text"`
	TestingProcedure       string           `gorm:"type:text"`
	ImplementationGuidance string           `gorm:"type:text"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (frameworkControlRecord) TableName() string { return "framework_controls" }

func newFrameworkControlRecord(c *model.FrameworkControl) *frameworkControlRecord {
	return &frameworkControlRecord{
		ID:                     c.ID,
		FrameworkID:            c.FrameworkID,
		RequirementID:          c.RequirementID,
		Title:                  c.Title,
		Description:            c.Description,
		ImplementationStatus:   string(c.ImplementationStatus),
		Priority:               string(c.Priority),
		Domain:                 c.Domain,
		Category:               c.Category,
		Evidence:               c.Evidence,
		TestingProcedure:       c.TestingProcedure,
		ImplementationGuidance: c.ImplementationGuidance,
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
	}
}

func (r *frameworkControlRecord) toModel() *model.FrameworkControl {
	return &model.FrameworkControl{
		ID:                     r.ID,
		FrameworkID:            r.FrameworkID,
		RequirementID:          r.RequirementID,
		Title:                  r.Title,
		Description:            r.Description,
		ImplementationStatus:   types.ImplementationStatus(r.ImplementationStatus),
		Priority:               types.Priority(r.Priority),
		Domain:                 r.Domain,
		Category:               r.Category,
		Evidence:               r.Evidence,
		TestingProcedure:       r.TestingProcedure,
		ImplementationGuidance: r.ImplementationGuidance,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

type controlMappingRecord struct {
	Standard  string `json:"standard"`
	Reference string `json:"reference"`
}

type controlRecord struct {
	ID          string                                    `gorm:"type:uuid;primaryKey"`
	Code        string                                    `gorm:"column:control_id;size:100;not null;uniqueIndex"`
	Source      string                                    `gorm:"size:64;index"`
	Name        string                                    `gorm:"size:500;not null"`
	Description string                                    `gorm:"type:text"`
	Domain      string                                    `gorm:"size:255;index"`
	Mappings    datatypes.JSONSlice[controlMappingRecord] `gorm:"type:jsonb"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (controlRecord) TableName() string { return "controls" }

func newControlRecord(c *model.Control) *controlRecord {
	mappings := make(datatypes.JSONSlice[controlMappingRecord], 0, len(c.Mappings))
	for _, m := range c.Mappings {
		mappings = append(mappings, controlMappingRecord{Standard: m.Standard, Reference: m.Reference})
	}
	return &controlRecord{
		ID:          string(c.ID),
		Code:        c.Code,
		Source:      c.Source,
		Name:        c.Name,
		Description: c.Description,
		Domain:      c.Domain,
		Mappings:    mappings,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (r *controlRecord) toModel() *model.Control {
	c := &model.Control{
		ID:          types.ControlID(r.ID),
		Code:        r.Code,
		Source:      r.Source,
		Name:        r.Name,
		Description: r.Description,
		Domain:      r.Domain,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if len(r.Mappings) > 0 {
		c.Mappings = make([]model.ControlMapping, 0, len(r.Mappings))
		for _, m := range r.Mappings {
			c.Mappings = append(c.Mappings, model.ControlMapping{Standard: m.Standard, Reference: m.Reference})
		}
	}
	return c
}

type riskRecord struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement"`
	RiskID             string `gorm:"column:risk_code;size:100;not null;uniqueIndex"`
	Title              string `gorm:"size:500;not null"`
	Description        string `gorm:"type:text"`
	InherentLikelihood string `gorm:"size:16;not null"`
	InherentImpact     string `gorm:"size:16;not null"`
	ResidualLikelihood string `gorm:"size:16;not null"`
	ResidualImpact     string `gorm:"size:16;not null"`
	Treatment          string `gorm:"size:16;not null;index"`
	Threats            string `gorm:"type:text"`
	Assets             string `gorm:"type:text"`
	BusinessUnit       string `gorm:"size:255;index"`
	RiskOwner          string `gorm:"size:255;index"`
	Creator            string `gorm:"size:255"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (riskRecord) TableName() string { return "risks" }

func newRiskRecord(r *model.Risk) *riskRecord {
	return &riskRecord{
		ID:                 r.ID,
		RiskID:             r.RiskID,
		Title:              r.Title,
		Description:        r.Description,
		InherentLikelihood: string(r.InherentLikelihood),
		InherentImpact:     string(r.InherentImpact),
		ResidualLikelihood: string(r.ResidualLikelihood),
		ResidualImpact:     string(r.ResidualImpact),
		Treatment:          string(r.Treatment),
		Threats:            r.Threats,
		Assets:             r.Assets,
		BusinessUnit:       r.BusinessUnit,
		RiskOwner:          r.RiskOwner,
		Creator:            r.Creator,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func (r *riskRecord) toModel() *model.Risk {
	return &model.Risk{
		ID:                 r.ID,
		RiskID:             r.RiskID,
		Title:              r.Title,
		Description:        r.Description,
		InherentLikelihood: types.RiskLevel(r.InherentLikelihood),
		InherentImpact:     types.RiskLevel(r.InherentImpact),
		ResidualLikelihood: types.RiskLevel(r.ResidualLikelihood),
		ResidualImpact:     types.RiskLevel(r.ResidualImpact),
		Treatment:          types.Treatment(r.Treatment),
		Threats:            r.Threats,
		Assets:             r.Assets,
		BusinessUnit:       r.BusinessUnit,
		RiskOwner:          r.RiskOwner,
		Creator:            r.Creator,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// riskControlRecord is the junction row; both foreign keys cascade on delete
type riskControlRecord struct {
	RiskID    int64          `gorm:"primaryKey"`
	Risk      *riskRecord    `gorm:"foreignKey:RiskID;constraint:OnDelete:CASCADE"`
	ControlID string         `gorm:"type:uuid;primaryKey;index"`
	Control   *controlRecord `gorm:"foreignKey:ControlID;references:ID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	CreatedBy string `gorm:"size:255"`
	Notes     string `gorm:"type:text"`
}

func (riskControlRecord) TableName() string { return "risk_controls" }

func (r *riskControlRecord) toModel() *model.RiskControl {
	return &model.RiskControl{
		RiskID:    r.RiskID,
		ControlID: types.ControlID(r.ControlID),
		CreatedAt: r.CreatedAt,
		CreatedBy: r.CreatedBy,
		Notes:     r.Notes,
	}
}
