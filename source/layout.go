package source

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/poiesic/vecload/core"
)

const (
	// DefaultRoot is the data directory used when Layout.Root is empty.
	DefaultRoot = "./data"

	// VectorFileName is the name the embedding runner gives new vector files.
	VectorFileName = "embeddings.npy"

	vectorExt = ".npy"
)

// Layout locates job artifacts on disk.
// Vector files live under Root/embeddings/<job dir>/*.npy.
type Layout struct {
	Root string
}

// JobDir returns the directory holding a job's vector file.
func (l Layout) JobDir(jobID core.JobID) string {
	root := l.Root
	if root == "" {
		root = DefaultRoot
	}
	return filepath.Join(root, "embeddings", jobID.Dir())
}

// NewVectorPath returns where the embedding runner writes a job's vectors.
func (l Layout) NewVectorPath(jobID core.JobID) string {
	return filepath.Join(l.JobDir(jobID), VectorFileName)
}

// VectorFile resolves the single vector file of a job.
// Returns ErrMissingSource when the directory or file is absent and
// ErrAmbiguousSource when more than one file matches.
func (l Layout) VectorFile(jobID core.JobID) (string, error) {
	dir := l.JobDir(jobID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: job %d: directory %s does not exist", ErrMissingSource, jobID, dir)
		}
		return "", fmt.Errorf("read job directory %s: %w", dir, err)
	}

	var matches []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != vectorExt {
			continue
		}
		matches = append(matches, filepath.Join(dir, entry.Name()))
	}
	slices.Sort(matches)

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: job %d: no %s file in %s", ErrMissingSource, jobID, vectorExt, dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: job %d: %d candidates %v", ErrAmbiguousSource, jobID, len(matches), matches)
	}
}
