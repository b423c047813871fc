package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/grcops/pkg/domain/types"
)

func TestRiskLevelScore(t *testing.T) {
	tests := []struct {
		level types.RiskLevel
		score int
	}{
		{types.RiskLevelVeryLow, 1},
		{types.RiskLevelLow, 2},
		{types.RiskLevelMedium, 3},
		{types.RiskLevelHigh, 4},
		{types.RiskLevelCritical, 5},
		{"extreme", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			gt.Value(t, tt.level.Score()).Equal(tt.score)
			gt.Value(t, tt.level.IsValid()).Equal(tt.score > 0)
		})
	}

	gt.Value(t, types.RiskLevel("").Normalize()).Equal(types.RiskLevelMedium)
	gt.Value(t, types.RiskLevelHigh.Normalize()).Equal(types.RiskLevelHigh)
}

func TestPriorityRank(t *testing.T) {
	ordered := types.AllPriorities()
	gt.Array(t, ordered).Length(4)
	for i := 1; i < len(ordered); i++ {
		gt.Bool(t, ordered[i-1].Rank() < ordered[i].Rank()).True()
	}
	gt.Value(t, types.Priority("").Normalize()).Equal(types.PriorityMedium)
}

func TestNormalizeDefaults(t *testing.T) {
	gt.Value(t, types.FrameworkStatus("").Normalize()).Equal(types.FrameworkStatusDraft)
	gt.Value(t, types.ImplementationStatus("").Normalize()).Equal(types.ImplementationStatusNotImplemented)
	gt.Value(t, types.Treatment("").Normalize()).Equal(types.TreatmentMitigate)
	gt.Value(t, types.FrameworkStatusArchived.Normalize()).Equal(types.FrameworkStatusArchived)
}

func TestParseEnums(t *testing.T) {
	t.Run("valid values", func(t *testing.T) {
		ft, err := types.ParseFrameworkType("privacy")
		gt.NoError(t, err)
		gt.Value(t, ft).Equal(types.FrameworkTypePrivacy)

		fs, err := types.ParseFrameworkStatus("in_progress")
		gt.NoError(t, err)
		gt.Value(t, fs).Equal(types.FrameworkStatusInProgress)

		is, err := types.ParseImplementationStatus("not_applicable")
		gt.NoError(t, err)
		gt.Value(t, is).Equal(types.ImplementationStatusNotApplicable)

		p, err := types.ParsePriority("critical")
		gt.NoError(t, err)
		gt.Value(t, p).Equal(types.PriorityCritical)

		l, err := types.ParseRiskLevel("very_low")
		gt.NoError(t, err)
		gt.Value(t, l).Equal(types.RiskLevelVeryLow)

		tr, err := types.ParseTreatment("Transfer")
		gt.NoError(t, err)
		gt.Value(t, tr).Equal(types.TreatmentTransfer)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := types.ParseFrameworkType("legal")
		gt.Error(t, err)
		_, err = types.ParseFrameworkStatus("DRAFT")
		gt.Error(t, err)
		_, err = types.ParseImplementationStatus("done")
		gt.Error(t, err)
		_, err = types.ParsePriority("urgent")
		gt.Error(t, err)
		_, err = types.ParseRiskLevel("")
		gt.Error(t, err)
		_, err = types.ParseTreatment("mitigate")
		gt.Error(t, err)
	})
}

func TestControlIDValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      types.ControlID
		wantErr bool
	}{
		{"generated", types.NewControlID(), false},
		{"literal uuid", "6f1c2a4e-9d7b-4a53-8e3f-2b1d0c9a8e7f", false},
		{"empty", "", true},
		{"business code", "IAC-01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			gt.Value(t, err != nil).Equal(tt.wantErr)
		})
	}
}

func TestControlIDCanonical(t *testing.T) {
	gt.Value(t, types.ControlID("6F1C2A4E-9D7B-4A53-8E3F-2B1D0C9A8E7F").Canonical()).
		Equal(types.ControlID("6f1c2a4e-9d7b-4a53-8e3f-2b1d0c9a8e7f"))
	gt.Value(t, types.ControlID("{6f1c2a4e-9d7b-4a53-8e3f-2b1d0c9a8e7f}").Canonical()).
		Equal(types.ControlID("6f1c2a4e-9d7b-4a53-8e3f-2b1d0c9a8e7f"))
	gt.Value(t, types.ControlID("IAC-01").Canonical()).Equal(types.ControlID("IAC-01"))
	gt.Value(t, types.ControlID("").Canonical()).Equal(types.ControlID(""))
}
