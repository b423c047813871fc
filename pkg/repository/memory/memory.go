package memory

import (
	"context"

	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
)

// Memory keeps every record in process memory. State is lost on restart.
type Memory struct {
	framework        *frameworkRepository
	frameworkControl *frameworkControlRepository
	control          *controlRepository
	risk             *riskRepository
	riskControl      *riskControlRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	controlRepo := newControlRepository()
	riskControlRepo := newRiskControlRepository(controlRepo)

	return &Memory{
		framework:        newFrameworkRepository(),
		frameworkControl: newFrameworkControlRepository(),
		control:          controlRepo,
		risk:             newRiskRepository(riskControlRepo),
		riskControl:      riskControlRepo,
	}
}

func (m *Memory) Framework() interfaces.FrameworkRepository {
	return m.framework
}

func (m *Memory) FrameworkControl() interfaces.FrameworkControlRepository {
	return m.frameworkControl
}

func (m *Memory) Control() interfaces.ControlRepository {
	return m.control
}

func (m *Memory) Risk() interfaces.RiskRepository {
	return m.risk
}

func (m *Memory) RiskControl() interfaces.RiskControlRepository {
	return m.riskControl
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}
