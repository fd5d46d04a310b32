package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	hclog "github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"cuckoohost/internal/modules/solver/domain"
	solverout "cuckoohost/internal/modules/solver/port/out"
	"cuckoohost/internal/platform/buffer"
	"cuckoohost/internal/platform/clock"
	"cuckoohost/internal/platform/contract"
)

const (
	DefaultInputCapacity  = 64
	DefaultOutputCapacity = 64
)

type Option func(*Engine)

func WithLogger(logger hclog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		if clk != nil {
			e.clock = clk
		}
	}
}

func WithQueueCapacity(input, output int) Option {
	return func(e *Engine) {
		if input > 0 {
			e.inputCap = input
		}
		if output > 0 {
			e.outputCap = output
		}
	}
}

func WithParameters(descriptors []domain.ParameterDescriptor) Option {
	return func(e *Engine) {
		e.descriptors = descriptors
	}
}

// Engine implements contract.Plugin on top of a Searcher. It owns the
// parameter registry, both queues and the worker pool of one plugin
// instance.
type Engine struct {
	searcher    solverout.Searcher
	logger      hclog.Logger
	clock       clock.Clock
	descriptors []domain.ParameterDescriptor
	inputCap    int
	outputCap   int

	params *domain.Registry
	state  domain.StateMachine
	input  chan contract.Job
	output chan contract.Solution

	initOnce sync.Once

	// mu serializes start, stop and reset so the run fields below are
	// published together with the state they belong to.
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	devMu   sync.Mutex
	devices []*domain.Device
}

var _ contract.Plugin = (*Engine)(nil)

func NewEngine(searcher solverout.Searcher, opts ...Option) (*Engine, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	e := &Engine{
		searcher:    searcher,
		logger:      hclog.NewNullLogger(),
		clock:       clock.SystemClock{},
		descriptors: domain.DefaultParameters(),
		inputCap:    DefaultInputCapacity,
		outputCap:   DefaultOutputCapacity,
	}
	for _, opt := range opts {
		opt(e)
	}
	params, err := domain.NewRegistry(e.descriptors)
	if err != nil {
		return nil, fmt.Errorf("new parameter registry: %w", err)
	}
	e.params = params
	e.input = make(chan contract.Job, e.inputCap)
	e.output = make(chan contract.Solution, e.outputCap)
	return e, nil
}

func (e *Engine) State() domain.State {
	return e.state.Load()
}

func (e *Engine) Init(context.Context) error {
	e.initOnce.Do(func() {
		e.logger.Debug("engine initialized", "searcher", e.searcher.Name())
	})
	return nil
}

func (e *Engine) Description(_ context.Context, name []byte, nameLen *uint32, desc []byte, descLen *uint32) (contract.Status, error) {
	nameStatus := buffer.WriteText(name, nameLen, e.searcher.Name())
	descStatus := buffer.WriteText(desc, descLen, e.searcher.Description())
	if nameStatus != contract.StatusOK {
		return nameStatus, nil
	}
	return descStatus, nil
}

func (e *Engine) ParameterList(_ context.Context, buf []byte, length *uint32) (contract.Status, error) {
	text, err := e.params.List()
	if err != nil {
		return 0, err
	}
	return buffer.WriteText(buf, length, text), nil
}

func (e *Engine) GetParameter(_ context.Context, name string) (uint32, contract.Status, error) {
	value, status := e.params.Get(name)
	return value, status, nil
}

func (e *Engine) SetParameter(_ context.Context, name string, value uint32) (contract.Status, error) {
	status := e.params.Set(name, value)
	if status == contract.StatusOK {
		e.logger.Debug("parameter set", "name", name, "value", value)
	}
	return status, nil
}

// Solve runs one search synchronously on a fresh workspace.
func (e *Engine) Solve(ctx context.Context, header []byte) (contract.Solution, bool, error) {
	ws, err := e.searcher.Workspace(e.searchParams())
	if err != nil {
		e.logger.Warn("allocate workspace", "error", err)
		return contract.Solution{}, false, nil
	}
	defer ws.Release()

	var sol contract.Solution
	found, err := ws.Search(ctx, header, &sol.Cycle)
	if err != nil {
		e.logger.Debug("solve aborted", "error", err)
		return contract.Solution{}, false, nil
	}
	return sol, found, nil
}

func (e *Engine) StartProcessing(context.Context) (contract.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state.Load() {
	case domain.StateProcessing:
		return contract.StatusOK, nil
	case domain.StateStopping, domain.StateStopped:
		return contract.StatusNeedsReset, nil
	}

	threads := int(e.params.Value(domain.ParamNumThreads))
	params := e.searchParams()
	workspaces := make([]solverout.Workspace, 0, threads)
	for i := 0; i < threads; i++ {
		ws, err := e.searcher.Workspace(params)
		if err != nil {
			for _, allocated := range workspaces {
				allocated.Release()
			}
			return 0, fmt.Errorf("allocate workspace %d: %w", i, err)
		}
		workspaces = append(workspaces, ws)
	}
	devices := e.ensureDevices(threads)

	if !e.state.Transition(domain.StateIdle, domain.StateProcessing) {
		for _, ws := range workspaces {
			ws.Release()
		}
		return contract.StatusNeedsReset, nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(runCtx)
	for i, ws := range workspaces {
		w := &worker{engine: e, device: devices[i], workspace: ws}
		group.Go(func() error { return w.run(groupCtx) })
	}
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	go e.supervise(group, workspaces, cancel, done)

	e.logger.Info("processing started", "threads", threads, "easiness", params.Easiness)
	return contract.StatusOK, nil
}

// supervise waits for every worker, frees the run's memory and only then
// publishes Stopped.
func (e *Engine) supervise(group *errgroup.Group, workspaces []solverout.Workspace, cancel context.CancelFunc, done chan struct{}) {
	err := group.Wait()
	cancel()
	for _, ws := range workspaces {
		ws.Release()
	}
	if err != nil {
		e.logger.Error("worker group ended", "error", err)
	}
	if !e.state.Transition(domain.StateStopping, domain.StateStopped) {
		e.logger.Error("unexpected state after workers exited", "state", e.state.Load())
	}
	close(done)
	e.logger.Info("processing stopped")
}

func (e *Engine) StopProcessing(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.state.Transition(domain.StateProcessing, domain.StateStopping):
		e.cancel()
		e.logger.Debug("stop signalled")
	case e.state.Transition(domain.StateIdle, domain.StateStopped):
	}
	return nil
}

func (e *Engine) HasProcessingStopped(context.Context) (bool, error) {
	return e.state.Load().Stopped(), nil
}

func (e *Engine) ResetProcessing(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Transition(domain.StateStopped, domain.StateIdle) {
		e.cancel, e.done = nil, nil
	}
	return nil
}

func (e *Engine) PushToInputQueue(_ context.Context, header []byte, nonce contract.Nonce) (contract.Status, error) {
	if len(header) != contract.HeaderSize {
		return contract.StatusWrongSize, nil
	}
	job := contract.Job{Header: append([]byte(nil), header...), Nonce: nonce}
	select {
	case e.input <- job:
		return contract.StatusOK, nil
	default:
		return contract.StatusQueueFull, nil
	}
}

func (e *Engine) ReadFromOutputQueue(context.Context) (contract.Solution, bool, error) {
	select {
	case sol := <-e.output:
		return sol, true, nil
	default:
		return contract.Solution{}, false, nil
	}
}

func (e *Engine) ClearQueues(context.Context) error {
	jobs, solutions := 0, 0
	for drained := false; !drained; {
		select {
		case <-e.input:
			jobs++
		default:
			drained = true
		}
	}
	for drained := false; !drained; {
		select {
		case <-e.output:
			solutions++
		default:
			drained = true
		}
	}
	e.logger.Debug("queues cleared", "jobs", jobs, "solutions", solutions)
	return nil
}

func (e *Engine) Stats(_ context.Context, buf []byte, length *uint32) (contract.Status, error) {
	text, err := e.statsJSON()
	if err != nil {
		return 0, err
	}
	return buffer.WriteText(buf, length, text), nil
}

// DeviceStats snapshots every worker slot created so far, at least one per
// configured thread.
func (e *Engine) DeviceStats() []contract.DeviceStats {
	devices := e.ensureDevices(int(e.params.Value(domain.ParamNumThreads)))
	out := make([]contract.DeviceStats, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Snapshot())
	}
	return out
}

func (e *Engine) statsJSON() (string, error) {
	raw, err := json.Marshal(e.DeviceStats())
	if err != nil {
		return "", fmt.Errorf("encode stats: %w", err)
	}
	return string(raw), nil
}

// Close stops processing and waits for the workers to exit.
func (e *Engine) Close(ctx context.Context) error {
	if err := e.StopProcessing(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) ensureDevices(n int) []*domain.Device {
	e.devMu.Lock()
	defer e.devMu.Unlock()
	for i := len(e.devices); i < n; i++ {
		name := fmt.Sprintf("%s/worker-%d", e.searcher.Name(), i)
		e.devices = append(e.devices, domain.NewDevice(uint32(i), name))
	}
	return append([]*domain.Device(nil), e.devices...)
}

func (e *Engine) searchParams() solverout.SearchParams {
	return solverout.SearchParams{Easiness: e.params.Value(domain.ParamEasiness)}
}
