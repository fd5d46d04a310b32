package in

import (
	"context"

	"cuckoohost/internal/modules/host/dto"
	"cuckoohost/internal/platform/contract"
)

type Usecase interface {
	Plugins(ctx context.Context) ([]dto.PluginInfo, error)
	Describe(ctx context.Context, plugin string) (dto.Description, error)
	Params(ctx context.Context, plugin string) ([]dto.Parameter, error)
	Solve(ctx context.Context, input dto.SolveInput) (dto.SolveOutput, error)
	Stats(ctx context.Context, plugin string) ([]dto.DeviceStat, error)
	Mine(ctx context.Context, input dto.MineInput) (dto.MineOutput, error)
	Soak(ctx context.Context, input dto.SoakInput) (dto.SoakOutput, error)
	OpenSession(ctx context.Context, plugin string) (Session, error)
}

// Session is a loaded plugin driven through its queues. Close unloads it.
type Session interface {
	ID() string
	Plugin() string
	Submit(ctx context.Context, header []byte) (dto.SubmitResult, error)
	Start(ctx context.Context) (contract.Status, error)
	Poll(ctx context.Context) ([]dto.Report, error)
	Stop(ctx context.Context) error
	Restart(ctx context.Context) (contract.Status, error)
	Clear(ctx context.Context) error
	Snapshot(ctx context.Context) (dto.Snapshot, error)
	Close(ctx context.Context) error
}
