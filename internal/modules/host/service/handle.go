package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"cuckoohost/internal/modules/host/domain"
	"cuckoohost/internal/platform/buffer"
	"cuckoohost/internal/platform/clock"
	"cuckoohost/internal/platform/contract"
)

const maxPollInterval = 100 * time.Millisecond

// Handle owns one bound plugin. Every call fails with
// domain.ErrHandleUnloaded once Unload has run.
type Handle struct {
	name    string
	plugin  contract.Plugin
	closeFn func() error
	cfg     LoaderConfig
	logger  hclog.Logger
	metrics *Metrics
	clock   clock.Clock

	mu        sync.RWMutex
	unloaded  bool
	closeOnce sync.Once
}

var _ contract.Plugin = (*Handle)(nil)

func (h *Handle) Name() string { return h.name }

func (h *Handle) Loaded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.unloaded
}

func (h *Handle) acquire() (contract.Plugin, func(), error) {
	h.mu.RLock()
	if h.unloaded {
		h.mu.RUnlock()
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrHandleUnloaded, h.name)
	}
	return h.plugin, h.mu.RUnlock, nil
}

func (h *Handle) Init(ctx context.Context) error {
	p, release, err := h.acquire()
	if err != nil {
		return err
	}
	defer release()
	return p.Init(ctx)
}

func (h *Handle) Description(ctx context.Context, name []byte, nameLen *uint32, desc []byte, descLen *uint32) (contract.Status, error) {
	p, release, err := h.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	return p.Description(ctx, name, nameLen, desc, descLen)
}

func (h *Handle) ParameterList(ctx context.Context, buf []byte, length *uint32) (contract.Status, error) {
	p, release, err := h.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	return p.ParameterList(ctx, buf, length)
}

func (h *Handle) GetParameter(ctx context.Context, name string) (uint32, contract.Status, error) {
	p, release, err := h.acquire()
	if err != nil {
		return 0, 0, err
	}
	defer release()
	return p.GetParameter(ctx, name)
}

func (h *Handle) SetParameter(ctx context.Context, name string, value uint32) (contract.Status, error) {
	p, release, err := h.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	return p.SetParameter(ctx, name, value)
}

func (h *Handle) Solve(ctx context.Context, header []byte) (contract.Solution, bool, error) {
	p, release, err := h.acquire()
	if err != nil {
		return contract.Solution{}, false, err
	}
	defer release()
	return p.Solve(ctx, header)
}

func (h *Handle) StartProcessing(ctx context.Context) (contract.Status, error) {
	p, release, err := h.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	return p.StartProcessing(ctx)
}

func (h *Handle) StopProcessing(ctx context.Context) error {
	p, release, err := h.acquire()
	if err != nil {
		return err
	}
	defer release()
	return p.StopProcessing(ctx)
}

func (h *Handle) HasProcessingStopped(ctx context.Context) (bool, error) {
	p, release, err := h.acquire()
	if err != nil {
		return false, err
	}
	defer release()
	return p.HasProcessingStopped(ctx)
}

func (h *Handle) ResetProcessing(ctx context.Context) error {
	p, release, err := h.acquire()
	if err != nil {
		return err
	}
	defer release()
	return p.ResetProcessing(ctx)
}

func (h *Handle) PushToInputQueue(ctx context.Context, header []byte, nonce contract.Nonce) (contract.Status, error) {
	p, release, err := h.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	return p.PushToInputQueue(ctx, header, nonce)
}

func (h *Handle) ReadFromOutputQueue(ctx context.Context) (contract.Solution, bool, error) {
	p, release, err := h.acquire()
	if err != nil {
		return contract.Solution{}, false, err
	}
	defer release()
	return p.ReadFromOutputQueue(ctx)
}

func (h *Handle) ClearQueues(ctx context.Context) error {
	p, release, err := h.acquire()
	if err != nil {
		return err
	}
	defer release()
	return p.ClearQueues(ctx)
}

func (h *Handle) Stats(ctx context.Context, buf []byte, length *uint32) (contract.Status, error) {
	p, release, err := h.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	return p.Stats(ctx, buf, length)
}

// Describe reads name and description into buffers of the configured size.
func (h *Handle) Describe(ctx context.Context) (domain.Description, error) {
	name := make([]byte, h.cfg.TextBufferSize)
	desc := make([]byte, h.cfg.TextBufferSize)
	nameLen, descLen := uint32(len(name)), uint32(len(desc))
	status, err := h.Description(ctx, name, &nameLen, desc, &descLen)
	if err != nil {
		return domain.Description{}, err
	}
	if status == contract.StatusBufferTooSmall {
		return domain.Description{}, fmt.Errorf("%w: describe %s", domain.ErrBufferTooSmall, h.name)
	}
	nameText, ok := buffer.ReadText(name, nameLen)
	if !ok {
		return domain.Description{}, fmt.Errorf("describe %s: name not terminated", h.name)
	}
	descText, ok := buffer.ReadText(desc, descLen)
	if !ok {
		return domain.Description{}, fmt.Errorf("describe %s: description not terminated", h.name)
	}
	return domain.Description{Name: nameText, Description: descText}, nil
}

func (h *Handle) Parameters(ctx context.Context) ([]contract.ParameterInfo, error) {
	var out []contract.ParameterInfo
	if err := h.readJSON(ctx, "parameter_list", h.ParameterList, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Handle) DeviceStats(ctx context.Context) ([]contract.DeviceStats, error) {
	var out []contract.DeviceStats
	if err := h.readJSON(ctx, "get_stats", h.Stats, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// readJSON starts at the configured text buffer size and doubles it while the
// plugin reports too-small, up to buffer.MaxCapacity.
func (h *Handle) readJSON(ctx context.Context, entry string, call func(context.Context, []byte, *uint32) (contract.Status, error), v any) error {
	size := max(h.cfg.TextBufferSize, 1)
	var (
		buf    []byte
		length uint32
	)
	for {
		buf = make([]byte, size)
		length = uint32(len(buf))
		status, err := call(ctx, buf, &length)
		if err != nil {
			return err
		}
		if status != contract.StatusBufferTooSmall {
			break
		}
		if size >= buffer.MaxCapacity {
			return fmt.Errorf("%w: %s %s", domain.ErrBufferTooSmall, entry, h.name)
		}
		size = min(size*2, buffer.MaxCapacity)
	}
	text, ok := buffer.ReadText(buf, length)
	if !ok {
		return fmt.Errorf("%s %s: result not terminated", entry, h.name)
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("decode %s %s: %w", entry, h.name, err)
	}
	return nil
}

// WaitStopped polls has_processing_stopped with exponential backoff until it
// reports true or ctx ends.
func (h *Handle) WaitStopped(ctx context.Context) error {
	return pollUntil(ctx, h.cfg.PollInterval, func() (bool, error) {
		return h.HasProcessingStopped(ctx)
	})
}

// StopAndWait signals stop and waits up to the configured stop timeout.
func (h *Handle) StopAndWait(ctx context.Context) error {
	begin := h.clock.Now()
	if err := h.StopProcessing(ctx); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, h.cfg.StopTimeout)
	defer cancel()
	if err := h.WaitStopped(waitCtx); err != nil {
		if waitCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %s after %s", domain.ErrStopTimeout, h.name, h.cfg.StopTimeout)
		}
		return err
	}
	h.metrics.stopped(h.clock.Now().Sub(begin))
	return nil
}

// DrainOutput reads the output queue until it reports empty.
func (h *Handle) DrainOutput(ctx context.Context) ([]contract.Solution, error) {
	var out []contract.Solution
	for {
		sol, ok, err := h.ReadFromOutputQueue(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, sol)
	}
}

// Unload forces processing toward stopped, then releases the binding
// exactly once. The binding is released even when the plugin does not stop
// in time.
func (h *Handle) Unload(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return fmt.Errorf("%w: %s", domain.ErrHandleUnloaded, h.name)
	}
	h.unloaded = true

	stopErr := h.forceStop(ctx)
	if stopErr != nil {
		h.logger.Warn("unloading plugin that did not stop", "error", stopErr)
	}
	var closeErr error
	h.closeOnce.Do(func() {
		closeErr = h.closeFn()
		h.metrics.unload()
	})
	h.logger.Debug("plugin unloaded")
	return errors.Join(stopErr, closeErr)
}

// forceStop runs with the write lock held, so it talks to the plugin
// directly.
func (h *Handle) forceStop(ctx context.Context) error {
	if err := h.plugin.StopProcessing(ctx); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, h.cfg.StopTimeout)
	defer cancel()
	err := pollUntil(waitCtx, h.cfg.PollInterval, func() (bool, error) {
		return h.plugin.HasProcessingStopped(waitCtx)
	})
	if err != nil && waitCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %s", domain.ErrStopTimeout, h.name)
	}
	return err
}

func pollUntil(ctx context.Context, interval time.Duration, cond func() (bool, error)) error {
	if interval <= 0 {
		interval = time.Millisecond
	}
	for {
		done, err := cond()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = min(interval*2, maxPollInterval)
	}
}
