package storage

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/relabs-tech/jsonserver/core/document"
	"github.com/relabs-tech/jsonserver/core/logger"
)

// LocalConfiguration contains the configuration for the local file driver
type LocalConfiguration struct {
	// Path is the JSON file holding the document
	Path string
}

// LocalFile stores the document in a single JSON file. Writes go to a temporary
// file first which is then renamed over the target.
//
// The driver remembers the digest of the content it last read or wrote, so that
// a Load after its own Save returns ErrUnchanged. This lets a file watcher ignore
// the server's own writes.
type LocalFile struct {
	path   string
	mutex  sync.Mutex
	digest [sha256.Size]byte
	known  bool
}

// NewLocalFile returns a new LocalFile driver for the configured path
func NewLocalFile(config LocalConfiguration) (*LocalFile, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("path must not be empty")
	}
	return &LocalFile{path: config.Path}, nil
}

// Path returns the path of the backing file
func (f *LocalFile) Path() string {
	return f.path
}

// Load implements Driver. A missing file is ErrNotFound, an empty file is
// initialised to an empty document.
func (f *LocalFile) Load(ctx context.Context) (document.Document, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, f.path)
		}
		return nil, fmt.Errorf("cannot read %s: %w", f.path, err)
	}

	digest := sha256.Sum256(data)
	if f.known && digest == f.digest {
		return nil, ErrUnchanged
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}
	if isBlank(data) {
		logger.FromContext(ctx).Infof("initialising empty data file %s", f.path)
		if err := f.write(document.Document{}); err != nil {
			return nil, err
		}
		return doc, nil
	}
	f.digest = digest
	f.known = true
	return doc, nil
}

// Save implements Driver
func (f *LocalFile) Save(ctx context.Context, doc document.Document) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.write(doc)
}

func (f *LocalFile) write(doc document.Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("cannot create temporary file for %s: %w", f.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cannot close %s: %w", tmp.Name(), err)
	}
	if info, err := os.Stat(f.path); err == nil {
		os.Chmod(tmp.Name(), info.Mode().Perm())
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("cannot replace %s: %w", f.path, err)
	}

	f.digest = sha256.Sum256(data)
	f.known = true
	return nil
}

func isBlank(data []byte) bool {
	for _, c := range data {
		switch c {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}
