package mig

import (
	"os"
	"path/filepath"

	"github.com/raymyers/ralph-mig/pkg/codegen"
)

// WriteArtifacts writes arts into dir and returns the paths written.
// Every artifact is staged in a temporary file first; if any write fails
// the staged files are removed and nothing is renamed into place.
func WriteArtifacts(dir string, arts []codegen.Artifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	staged := make([]string, 0, len(arts))
	cleanup := func() {
		for _, p := range staged {
			os.Remove(p)
		}
	}
	for _, a := range arts {
		p, err := stage(dir, a)
		if err != nil {
			cleanup()
			return nil, err
		}
		staged = append(staged, p)
	}

	paths := make([]string, 0, len(arts))
	for i, a := range arts {
		dst := filepath.Join(dir, a.Name)
		if err := os.Rename(staged[i], dst); err != nil {
			staged = staged[i:]
			cleanup()
			return paths, err
		}
		paths = append(paths, dst)
	}
	return paths, nil
}

func stage(dir string, a codegen.Artifact) (string, error) {
	f, err := os.CreateTemp(dir, "."+a.Name+".*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(a.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if err := os.Chmod(f.Name(), 0644); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
