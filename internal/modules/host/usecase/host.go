package usecase

import (
	"context"

	"cuckoohost/internal/modules/host/dto"
	hostin "cuckoohost/internal/modules/host/port/in"
	"cuckoohost/internal/modules/host/service"
)

type Interactor struct {
	svc *service.HostService
}

func NewInteractor(svc *service.HostService) hostin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Plugins(ctx context.Context) ([]dto.PluginInfo, error) {
	return i.svc.Plugins(ctx)
}

func (i *Interactor) Describe(ctx context.Context, plugin string) (dto.Description, error) {
	return i.svc.Describe(ctx, plugin)
}

func (i *Interactor) Params(ctx context.Context, plugin string) ([]dto.Parameter, error) {
	return i.svc.Params(ctx, plugin)
}

func (i *Interactor) Solve(ctx context.Context, input dto.SolveInput) (dto.SolveOutput, error) {
	return i.svc.Solve(ctx, input)
}

func (i *Interactor) Stats(ctx context.Context, plugin string) ([]dto.DeviceStat, error) {
	return i.svc.Stats(ctx, plugin)
}

func (i *Interactor) Mine(ctx context.Context, input dto.MineInput) (dto.MineOutput, error) {
	return i.svc.Mine(ctx, input)
}

func (i *Interactor) Soak(ctx context.Context, input dto.SoakInput) (dto.SoakOutput, error) {
	return i.svc.Soak(ctx, input)
}

func (i *Interactor) OpenSession(ctx context.Context, plugin string) (hostin.Session, error) {
	sess, err := i.svc.OpenSession(ctx, plugin)
	if err != nil {
		return nil, err
	}
	return sess, nil
}
