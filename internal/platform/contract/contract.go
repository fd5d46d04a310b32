// Package contract defines the capability contract shared by the host and
// every solver plugin: record sizes, status codes, entry point names and the
// Plugin method set.
package contract

import (
	"context"
	"encoding/hex"
)

const (
	// HeaderSize is the only header length accepted by the input queue.
	HeaderSize = 32
	// NonceSize is the length of the tag correlating a Solution to its Job.
	NonceSize = 8
	// ProofSize is the number of edge indices forming a cycle.
	ProofSize = 42

	// ArtifactExtension is appended to a plugin name to find its artifact.
	ArtifactExtension = ".cuckooplugin"
)

// Status is the integer result code returned by contract entry points. The
// meaning of a value depends on the entry point that returned it.
type Status uint32

const (
	StatusOK Status = 0

	StatusParamNotFound    Status = 1
	StatusParamOutOfRange  Status = 2
	StatusBufferTooSmall   Status = 3
	StatusParamNameTooLong Status = 4

	StatusQueueFull Status = 1
	StatusWrongSize Status = 2

	// StatusNeedsReset is returned by start_processing while a previous run
	// is stopping or stopped and has not been reset.
	StatusNeedsReset Status = 1
)

// Nonce tags a Job so its Solution can be matched later.
type Nonce [NonceSize]byte

func (n Nonce) String() string {
	return hex.EncodeToString(n[:])
}

// Proof is the ordered list of edge indices forming a cycle.
type Proof [ProofSize]uint32

// Job is a search input queued for background processing.
type Job struct {
	Header []byte
	Nonce  Nonce
}

// Solution is a discovered cycle plus the nonce of the originating Job.
type Solution struct {
	Nonce Nonce
	Cycle Proof
}

// ParameterInfo is one element of the parameter_list JSON array.
type ParameterInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DefaultValue uint32 `json:"default_value"`
	MinValue     uint32 `json:"min_value"`
	MaxValue     uint32 `json:"max_value"`
}

// DeviceStats is one element of the get_stats JSON array. Times are unix
// seconds, zero when the event has not happened yet.
type DeviceStats struct {
	DeviceID            uint32 `json:"device_id"`
	DeviceName          string `json:"device_name"`
	InUse               uint32 `json:"in_use"`
	HasErrored          uint32 `json:"has_errored"`
	LastStartTime       int64  `json:"last_start_time"`
	LastEndTime         int64  `json:"last_end_time"`
	LastSolutionTime    int64  `json:"last_solution_time"`
	IterationsCompleted uint64 `json:"iterations_completed"`
	JobsAbandoned       uint64 `json:"jobs_abandoned"`
}

// Entry point names as exported by plugin artifacts.
const (
	EntryInit                 = "init"
	EntryDescribe             = "describe"
	EntryParameterList        = "parameter_list"
	EntryGetParameter         = "get_parameter"
	EntrySetParameter         = "set_parameter"
	EntrySolve                = "solve"
	EntryStartProcessing      = "start_processing"
	EntryStopProcessing       = "stop_processing"
	EntryHasProcessingStopped = "has_processing_stopped"
	EntryResetProcessing      = "reset_processing"
	EntryPushToInputQueue     = "push_to_input_queue"
	EntryReadFromOutputQueue  = "read_from_output_queue"
	EntryClearQueues          = "clear_queues"
	EntryGetStats             = "get_stats"
)

// RequiredEntryPoints must all be exported for an artifact to load.
var RequiredEntryPoints = []string{
	EntryInit,
	EntryDescribe,
	EntryParameterList,
	EntryGetParameter,
	EntrySetParameter,
	EntrySolve,
	EntryStartProcessing,
	EntryStopProcessing,
	EntryHasProcessingStopped,
	EntryResetProcessing,
	EntryPushToInputQueue,
	EntryReadFromOutputQueue,
	EntryClearQueues,
	EntryGetStats,
}

// Plugin is the fixed capability surface of a solver plugin. Contract
// outcomes are reported as statuses; the error return is reserved for
// transport failures between host and plugin.
type Plugin interface {
	Init(ctx context.Context) error
	Description(ctx context.Context, name []byte, nameLen *uint32, desc []byte, descLen *uint32) (Status, error)
	ParameterList(ctx context.Context, buf []byte, length *uint32) (Status, error)
	GetParameter(ctx context.Context, name string) (uint32, Status, error)
	SetParameter(ctx context.Context, name string, value uint32) (Status, error)
	Solve(ctx context.Context, header []byte) (Solution, bool, error)
	StartProcessing(ctx context.Context) (Status, error)
	StopProcessing(ctx context.Context) error
	HasProcessingStopped(ctx context.Context) (bool, error)
	ResetProcessing(ctx context.Context) error
	PushToInputQueue(ctx context.Context, header []byte, nonce Nonce) (Status, error)
	ReadFromOutputQueue(ctx context.Context) (Solution, bool, error)
	ClearQueues(ctx context.Context) error
	Stats(ctx context.Context, buf []byte, length *uint32) (Status, error)
}

// MissingEntryPoints returns the required entry points absent from exported.
func MissingEntryPoints(exported []string) []string {
	have := make(map[string]struct{}, len(exported))
	for _, name := range exported {
		have[name] = struct{}{}
	}
	var missing []string
	for _, name := range RequiredEntryPoints {
		if _, ok := have[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
