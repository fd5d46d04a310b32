package dto

import "time"

type PluginInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	SHA256      string `json:"sha256"`
	Size        int64  `json:"size"`
	Loadable    bool   `json:"loadable"`
	Described   string `json:"described,omitempty"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

type Description struct {
	Plugin      string `json:"plugin"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Parameter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Value       uint32 `json:"value"`
	Default     uint32 `json:"default"`
	Min         uint32 `json:"min"`
	Max         uint32 `json:"max"`
}

type DeviceStat struct {
	DeviceID            uint32    `json:"device_id"`
	DeviceName          string    `json:"device_name"`
	InUse               bool      `json:"in_use"`
	HasErrored          bool      `json:"has_errored"`
	LastStartTime       time.Time `json:"last_start_time"`
	LastEndTime         time.Time `json:"last_end_time"`
	LastSolutionTime    time.Time `json:"last_solution_time"`
	IterationsCompleted uint64    `json:"iterations_completed"`
	JobsAbandoned       uint64    `json:"jobs_abandoned"`
}

type SolveInput struct {
	Plugin string
	Header []byte
	// Attempts > 1 varies the first eight header bytes until a cycle is
	// found or the attempts run out.
	Attempts int
}

type SolveOutput struct {
	Plugin   string
	Header   []byte
	Found    bool
	Cycle    []uint32
	Attempts int
	Elapsed  time.Duration
}

type SubmitResult struct {
	Nonce  string
	Status uint32
}

type Report struct {
	Nonce      string    `json:"nonce"`
	Header     []byte    `json:"header,omitempty"`
	Cycle      []uint32  `json:"cycle"`
	Correlated bool      `json:"correlated"`
	FoundAt    time.Time `json:"found_at"`
}

type Snapshot struct {
	SessionID    string       `json:"session_id"`
	Plugin       string       `json:"plugin"`
	Stopped      bool         `json:"stopped"`
	Submitted    int          `json:"submitted"`
	Pending      int          `json:"pending"`
	Found        int          `json:"found"`
	Uncorrelated int          `json:"uncorrelated"`
	Devices      []DeviceStat `json:"devices"`
	Reports      []Report     `json:"reports"`
}

type MineInput struct {
	Plugin  string
	Jobs    int
	Seed    uint64
	Timeout time.Duration
}

type MineOutput struct {
	Snapshot Snapshot
	Rejected int
	Elapsed  time.Duration
}

type SoakInput struct {
	Plugin string
	Cycles int
}

type SoakOutput struct {
	Plugin  string
	Cycles  int
	Elapsed time.Duration
}
