package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrArtifactNotFound  = errors.New("plugin artifact not found")
	ErrBindFailed        = errors.New("plugin bind failed")
	ErrMissingEntryPoint = errors.New("plugin missing required entry point")
	ErrHandleUnloaded    = errors.New("plugin handle unloaded")
	ErrBufferTooSmall    = errors.New("buffer too small")
	ErrStopTimeout       = errors.New("plugin did not stop in time")
	ErrNeedsReset        = errors.New("processing must be reset before starting")
)

// Artifact is a plugin file found in the plugin directory.
type Artifact struct {
	Name    string
	Path    string
	SHA256  string
	Size    int64
	ModTime time.Time
}

// ArtifactPath joins the plugin directory, name and extension.
func ArtifactPath(dir, name, extension string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("plugin name is required")
	}
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("plugin name %q must not contain a path separator", name)
	}
	return filepath.Join(dir, name+extension), nil
}

// ArtifactName strips the extension from an artifact file name.
func ArtifactName(path, extension string) string {
	return strings.TrimSuffix(filepath.Base(path), extension)
}

// Description is the decoded result of the describe entry point.
type Description struct {
	Name        string
	Description string
}

// Report is a drained solution matched against its submitted job.
type Report struct {
	Nonce      string
	Header     []byte
	Cycle      []uint32
	Correlated bool
	FoundAt    time.Time
}
