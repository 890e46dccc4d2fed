package out

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"tabtrail/internal/modules/classifier/domain"
)

var strictJSON = sonic.Config{DisallowUnknownFields: true}.Froze()

// FileManifestStore reads classifier manifests from a JSON or YAML list.
// Relative binary paths resolve against the manifest's directory.
type FileManifestStore struct {
	path string
}

func NewFileManifestStore(path string) *FileManifestStore {
	return &FileManifestStore{path: path}
}

func (s *FileManifestStore) Path() string {
	return s.path
}

func (s *FileManifestStore) Load(_ context.Context) ([]domain.Manifest, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Manifest{}, nil
		}
		return nil, fmt.Errorf("read classifier manifests: %w", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return []domain.Manifest{}, nil
	}
	var manifests []domain.Manifest
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&manifests); err != nil {
			return nil, fmt.Errorf("decode classifier manifests: %w", err)
		}
	default:
		if err := strictJSON.Unmarshal(b, &manifests); err != nil {
			return nil, fmt.Errorf("decode classifier manifests: %w", err)
		}
	}
	base := filepath.Dir(s.path)
	for i := range manifests {
		if manifests[i].Binary != "" && !filepath.IsAbs(manifests[i].Binary) {
			manifests[i].Binary = filepath.Clean(filepath.Join(base, manifests[i].Binary))
		}
	}
	if manifests == nil {
		manifests = []domain.Manifest{}
	}
	return manifests, nil
}
