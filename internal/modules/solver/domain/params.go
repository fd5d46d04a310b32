package domain

import (
	"encoding/json"
	"fmt"
	"sync"

	"cuckoohost/internal/platform/contract"
)

// MaxParameterNameLength bounds accepted parameter names. Longer names are
// rejected before any lookup.
const MaxParameterNameLength = 64

const (
	ParamNumThreads = "NUM_THREADS"
	ParamEasiness   = "EASINESS"
)

type ParameterDescriptor struct {
	Name        string
	Description string
	Default     uint32
	Min         uint32
	Max         uint32
}

func (d ParameterDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("parameter name is required")
	}
	if len(d.Name) > MaxParameterNameLength {
		return fmt.Errorf("parameter name %q exceeds %d bytes", d.Name, MaxParameterNameLength)
	}
	if d.Min > d.Max {
		return fmt.Errorf("parameter %s: min %d above max %d", d.Name, d.Min, d.Max)
	}
	if d.Default < d.Min || d.Default > d.Max {
		return fmt.Errorf("parameter %s: default %d outside [%d, %d]", d.Name, d.Default, d.Min, d.Max)
	}
	return nil
}

func (d ParameterDescriptor) InRange(value uint32) bool {
	return value >= d.Min && value <= d.Max
}

// DefaultParameters are the tunables exposed by the lean reference solver.
func DefaultParameters() []ParameterDescriptor {
	return []ParameterDescriptor{
		{
			Name:        ParamNumThreads,
			Description: "Number of worker goroutines draining the input queue",
			Default:     1,
			Min:         1,
			Max:         32,
		},
		{
			Name:        ParamEasiness,
			Description: "Percentage of the edge space generated for each graph",
			Default:     100,
			Min:         10,
			Max:         100,
		},
	}
}

// Registry holds the live parameter values of one plugin instance.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]ParameterDescriptor
	values      map[string]uint32
	order       []string
}

func NewRegistry(descriptors []ParameterDescriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make(map[string]ParameterDescriptor, len(descriptors)),
		values:      make(map[string]uint32, len(descriptors)),
	}
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, ok := r.descriptors[d.Name]; ok {
			return nil, fmt.Errorf("duplicate parameter: %s", d.Name)
		}
		r.descriptors[d.Name] = d
		r.values[d.Name] = d.Default
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

func (r *Registry) Get(name string) (uint32, contract.Status) {
	if len(name) > MaxParameterNameLength {
		return 0, contract.StatusParamNameTooLong
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.values[name]
	if !ok {
		return 0, contract.StatusParamNotFound
	}
	return value, contract.StatusOK
}

func (r *Registry) Set(name string, value uint32) contract.Status {
	if len(name) > MaxParameterNameLength {
		return contract.StatusParamNameTooLong
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.descriptors[name]
	if !ok {
		return contract.StatusParamNotFound
	}
	if !d.InRange(value) {
		return contract.StatusParamOutOfRange
	}
	r.values[name] = value
	return contract.StatusOK
}

// Value returns the current value of a declared parameter, or its zero value
// when the name is unknown.
func (r *Registry) Value(name string) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values[name]
}

// Snapshot copies every current value.
func (r *Registry) Snapshot() map[string]uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]uint32, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r *Registry) Infos() []contract.ParameterInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]contract.ParameterInfo, 0, len(r.order))
	for _, name := range r.order {
		d := r.descriptors[name]
		out = append(out, contract.ParameterInfo{
			Name:         d.Name,
			Description:  d.Description,
			DefaultValue: d.Default,
			MinValue:     d.Min,
			MaxValue:     d.Max,
		})
	}
	return out
}

// List renders the parameter_list JSON array.
func (r *Registry) List() (string, error) {
	raw, err := json.Marshal(r.Infos())
	if err != nil {
		return "", fmt.Errorf("encode parameter list: %w", err)
	}
	return string(raw), nil
}
