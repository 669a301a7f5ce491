package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/sirawit8921/massage-shop-reservation/internal/model"
)

// FileStore persists the collection as a JSON array in a single file.  A
// missing or unreadable file loads as an empty collection.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (f *FileStore) Load(ctx context.Context) ([]model.Reservation, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.Reservation{}, nil
	}
	if err != nil {
		return nil, err
	}
	items := []model.Reservation{}
	if err := json.Unmarshal(b, &items); err != nil {
		log.Printf("file-store: %s is not a reservation list, starting empty: %v", f.path, err)
		return []model.Reservation{}, nil
	}
	return items, nil
}

// Save writes to a temporary file in the same directory and renames it
// over the target, so readers see either the old or the new collection.
func (f *FileStore) Save(ctx context.Context, items []model.Reservation) error {
	if err := checkUnique(items); err != nil {
		return err
	}
	if items == nil {
		items = []model.Reservation{}
	}
	b, err := json.MarshalIndent(items, "", "\t")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".reservations-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}
