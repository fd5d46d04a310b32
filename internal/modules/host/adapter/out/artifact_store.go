package out

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuckoohost/internal/modules/host/domain"
	hostout "cuckoohost/internal/modules/host/port/out"
)

// FileArtifactStore lists plugin artifacts in a directory.
type FileArtifactStore struct {
	dir       string
	extension string
}

func NewFileArtifactStore(dir, extension string) hostout.ArtifactStore {
	return &FileArtifactStore{dir: dir, extension: extension}
}

func (s *FileArtifactStore) List(_ context.Context) ([]domain.Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Artifact{}, nil
		}
		return nil, fmt.Errorf("read plugin dir: %w", err)
	}
	out := make([]domain.Artifact, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), s.extension) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat artifact %s: %w", entry.Name(), err)
		}
		sum, err := checksum(path)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Artifact{
			Name:    domain.ArtifactName(path, s.extension),
			Path:    path,
			SHA256:  sum,
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("hash artifact: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
