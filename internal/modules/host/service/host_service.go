package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"cuckoohost/internal/modules/host/domain"
	"cuckoohost/internal/modules/host/dto"
	hostout "cuckoohost/internal/modules/host/port/out"
	"cuckoohost/internal/platform/contract"
	apperrors "cuckoohost/internal/platform/errors"
	"cuckoohost/internal/platform/id"
)

const defaultMineTimeout = 30 * time.Second

// HostService runs the host operations. Every operation loads its own
// handle and unloads it before returning, except OpenSession which hands
// ownership to the returned Session.
type HostService struct {
	loader    *Loader
	store     hostout.ArtifactStore
	overrides map[string]map[string]uint32
	ids       id.Generator
	logger    hclog.Logger
}

// NewHostService builds the service. overrides maps plugin name to
// parameter values applied right after every load.
func NewHostService(loader *Loader, store hostout.ArtifactStore, overrides map[string]map[string]uint32, ids id.Generator, logger hclog.Logger) *HostService {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if ids == nil {
		ids = id.UUID{}
	}
	return &HostService{loader: loader, store: store, overrides: overrides, ids: ids, logger: logger}
}

// Plugins lists the plugin directory and probes each artifact with a load,
// describe and unload.
func (s *HostService) Plugins(ctx context.Context) ([]dto.PluginInfo, error) {
	artifacts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PluginInfo, 0, len(artifacts))
	for _, a := range artifacts {
		info := dto.PluginInfo{Name: a.Name, Path: a.Path, SHA256: a.SHA256, Size: a.Size}
		desc, err := s.probe(ctx, a.Path)
		if err != nil {
			info.Error = err.Error()
		} else {
			info.Loadable = true
			info.Described = desc.Name
			info.Description = desc.Description
		}
		out = append(out, info)
	}
	return out, nil
}

func (s *HostService) probe(ctx context.Context, path string) (domain.Description, error) {
	h, err := s.loader.LoadPath(ctx, path)
	if err != nil {
		return domain.Description{}, err
	}
	desc, err := h.Describe(ctx)
	return desc, errors.Join(err, h.Unload(ctx))
}

func (s *HostService) Describe(ctx context.Context, plugin string) (dto.Description, error) {
	var out dto.Description
	err := s.withHandle(ctx, plugin, func(h *Handle) error {
		desc, err := h.Describe(ctx)
		if err != nil {
			return err
		}
		out = dto.Description{Plugin: plugin, Name: desc.Name, Description: desc.Description}
		return nil
	})
	return out, err
}

// Params reports every declared parameter with its current value.
func (s *HostService) Params(ctx context.Context, plugin string) ([]dto.Parameter, error) {
	var out []dto.Parameter
	err := s.withHandle(ctx, plugin, func(h *Handle) error {
		infos, err := h.Parameters(ctx)
		if err != nil {
			return err
		}
		for _, info := range infos {
			value, status, err := h.GetParameter(ctx, info.Name)
			if err != nil {
				return err
			}
			if status != contract.StatusOK {
				return fmt.Errorf("get %s on %s: status %d", info.Name, plugin, status)
			}
			out = append(out, dto.Parameter{
				Name:        info.Name,
				Description: info.Description,
				Value:       value,
				Default:     info.DefaultValue,
				Min:         info.MinValue,
				Max:         info.MaxValue,
			})
		}
		return nil
	})
	return out, err
}

// Solve runs synchronous searches. Attempts past the first vary the first
// eight header bytes as a little endian counter.
func (s *HostService) Solve(ctx context.Context, input dto.SolveInput) (dto.SolveOutput, error) {
	attempts := max(input.Attempts, 1)
	if len(input.Header) < 8 {
		attempts = 1
	}
	out := dto.SolveOutput{Plugin: input.Plugin}
	clk := s.loader.clock
	err := s.withHandle(ctx, input.Plugin, func(h *Handle) error {
		begin := clk.Now()
		defer func() { out.Elapsed = clk.Now().Sub(begin) }()
		for i := range attempts {
			header := varyHeader(input.Header, uint64(i))
			sol, found, err := h.Solve(ctx, header)
			if err != nil {
				return err
			}
			out.Attempts = i + 1
			if found {
				out.Header = header
				out.Found = true
				out.Cycle = append([]uint32(nil), sol.Cycle[:]...)
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		out.Header = varyHeader(input.Header, uint64(out.Attempts-1))
		return nil
	})
	return out, err
}

func varyHeader(header []byte, attempt uint64) []byte {
	out := append([]byte(nil), header...)
	if attempt == 0 || len(out) < 8 {
		return out
	}
	base := binary.LittleEndian.Uint64(out[:8])
	binary.LittleEndian.PutUint64(out[:8], base+attempt)
	return out
}

func (s *HostService) Stats(ctx context.Context, plugin string) ([]dto.DeviceStat, error) {
	var out []dto.DeviceStat
	err := s.withHandle(ctx, plugin, func(h *Handle) error {
		stats, err := h.DeviceStats(ctx)
		if err != nil {
			return err
		}
		out = toDeviceStats(stats)
		return nil
	})
	return out, err
}

// Mine opens a session, submits generated jobs, waits until every accepted
// job has been searched or the timeout passes, then stops and reports.
func (s *HostService) Mine(ctx context.Context, input dto.MineInput) (dto.MineOutput, error) {
	if input.Jobs <= 0 {
		return dto.MineOutput{}, fmt.Errorf("%w: jobs must be positive", apperrors.ErrInvalidInput)
	}
	timeout := input.Timeout
	if timeout <= 0 {
		timeout = defaultMineTimeout
	}
	sess, err := s.OpenSession(ctx, input.Plugin)
	if err != nil {
		return dto.MineOutput{}, err
	}
	clk := s.loader.clock
	begin := clk.Now()
	out := dto.MineOutput{}
	runErr := s.mine(ctx, sess, input, timeout, &out)
	closeErr := sess.Close(context.WithoutCancel(ctx))
	out.Elapsed = clk.Now().Sub(begin)
	return out, errors.Join(runErr, closeErr)
}

func (s *HostService) mine(ctx context.Context, sess *Session, input dto.MineInput, timeout time.Duration, out *dto.MineOutput) error {
	status, err := sess.Start(ctx)
	if err != nil {
		return err
	}
	if status != contract.StatusOK {
		return fmt.Errorf("%w: start returned %d", domain.ErrNeedsReset, status)
	}
	accepted := 0
	for i := range input.Jobs {
		header := make([]byte, contract.HeaderSize)
		binary.LittleEndian.PutUint64(header, input.Seed+uint64(i))
		res, err := sess.Submit(ctx, header)
		if err != nil {
			return err
		}
		if res.Status != uint32(contract.StatusOK) {
			out.Rejected++
			continue
		}
		accepted++
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err = pollUntil(waitCtx, s.loader.cfg.PollInterval, func() (bool, error) {
		if _, err := sess.Poll(waitCtx); err != nil {
			return false, err
		}
		stats, err := sess.handle.DeviceStats(waitCtx)
		if err != nil {
			return false, err
		}
		return searched(stats) >= uint64(accepted), nil
	})
	if err != nil && waitCtx.Err() == nil {
		return err
	}
	if waitCtx.Err() != nil {
		s.logger.Info("mine timed out before every job was searched", "plugin", input.Plugin, "timeout", timeout)
	}

	if err := sess.Stop(ctx); err != nil {
		return err
	}
	if _, err := sess.Poll(ctx); err != nil {
		return err
	}
	snap, err := sess.Snapshot(ctx)
	if err != nil {
		return err
	}
	out.Snapshot = snap
	return nil
}

func searched(stats []contract.DeviceStats) uint64 {
	var n uint64
	for _, s := range stats {
		n += s.IterationsCompleted + s.JobsAbandoned
	}
	return n
}

// Soak repeats load, describe, start, stop and unload.
func (s *HostService) Soak(ctx context.Context, input dto.SoakInput) (dto.SoakOutput, error) {
	cycles := max(input.Cycles, 1)
	clk := s.loader.clock
	begin := clk.Now()
	out := dto.SoakOutput{Plugin: input.Plugin}
	for i := range cycles {
		err := s.withHandle(ctx, input.Plugin, func(h *Handle) error {
			if _, err := h.Describe(ctx); err != nil {
				return err
			}
			status, err := h.StartProcessing(ctx)
			if err != nil {
				return err
			}
			if status != contract.StatusOK {
				return fmt.Errorf("%w: start returned %d", domain.ErrNeedsReset, status)
			}
			return h.StopAndWait(ctx)
		})
		if err != nil {
			out.Elapsed = clk.Now().Sub(begin)
			return out, fmt.Errorf("soak cycle %d: %w", i+1, err)
		}
		out.Cycles = i + 1
	}
	out.Elapsed = clk.Now().Sub(begin)
	return out, nil
}

// OpenSession loads plugin and returns a session owning the handle.
func (s *HostService) OpenSession(ctx context.Context, plugin string) (*Session, error) {
	h, err := s.open(ctx, plugin)
	if err != nil {
		return nil, err
	}
	return NewSession(s.ids.New(), h, s.logger, s.loader.metrics, s.loader.clock), nil
}

func (s *HostService) withHandle(ctx context.Context, plugin string, fn func(*Handle) error) error {
	h, err := s.open(ctx, plugin)
	if err != nil {
		return err
	}
	runErr := fn(h)
	return errors.Join(runErr, h.Unload(context.WithoutCancel(ctx)))
}

func (s *HostService) open(ctx context.Context, plugin string) (*Handle, error) {
	h, err := s.loader.Load(ctx, plugin)
	if err != nil {
		return nil, err
	}
	if err := s.applyOverrides(ctx, h); err != nil {
		return nil, errors.Join(err, h.Unload(ctx))
	}
	return h, nil
}

func (s *HostService) applyOverrides(ctx context.Context, h *Handle) error {
	for name, value := range s.overrides[h.Name()] {
		status, err := h.SetParameter(ctx, name, value)
		if err != nil {
			return err
		}
		if status != contract.StatusOK {
			return fmt.Errorf("%w: set %s=%d on %s: status %d", apperrors.ErrInvalidInput, name, value, h.Name(), status)
		}
	}
	return nil
}
