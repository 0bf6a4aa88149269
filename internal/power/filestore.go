package power

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/shopspring/decimal"

	"ratefeed/internal/fsutil"
)

// FileStore keeps configs in a JSON document of the form
// {"configs":[{"id":..,"group":..,"power":1.0,"description":..}]}.
// The file is re-read on every call so manual edits are picked up.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileDoc struct {
	Configs []fileRecord `json:"configs"`
}

// fileRecord writes power as a JSON number.
type fileRecord struct {
	ID          string      `json:"id"`
	Group       string      `json:"group"`
	Power       json.Number `json:"power"`
	Description string      `json:"description,omitempty"`
}

func (r fileRecord) config() (Config, error) {
	c := Config{ID: r.ID, Group: r.Group, Description: r.Description, Power: DefaultPower}
	if r.Power != "" {
		p, err := decimal.NewFromString(r.Power.String())
		if err != nil {
			return Config{}, fmt.Errorf("group %q: power %q: %w", r.Group, r.Power, err)
		}
		c.Power = p
	}
	return c, nil
}

func record(c Config) fileRecord {
	return fileRecord{ID: c.ID, Group: c.Group, Power: json.Number(c.Power.String()), Description: c.Description}
}

// NewFileStore creates path with an empty document when it does not exist.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := fs.write(fileDoc{Configs: []fileRecord{}}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, storeErr("stat", err)
	}
	return fs, nil
}

func (f *FileStore) read() ([]Config, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, storeErr("read", err)
	}
	var doc fileDoc
	if len(b) > 0 {
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, storeErr("decode", err)
		}
	}
	out := make([]Config, 0, len(doc.Configs))
	for _, r := range doc.Configs {
		c, err := r.config()
		if err != nil {
			return nil, storeErr("decode", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *FileStore) write(doc fileDoc) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return storeErr("encode", err)
	}
	if err := fsutil.WriteFileAtomic(f.path, b, 0o644); err != nil {
		return storeErr("write", err)
	}
	return nil
}

func (f *FileStore) save(cs []Config) error {
	doc := fileDoc{Configs: make([]fileRecord, 0, len(cs))}
	for _, c := range cs {
		doc.Configs = append(doc.Configs, record(c))
	}
	return f.write(doc)
}

func (f *FileStore) List(context.Context) ([]Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

func (f *FileStore) find(match func(Config) bool, what string) (Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs, err := f.read()
	if err != nil {
		return Config{}, err
	}
	for _, c := range cs {
		if match(c) {
			return c, nil
		}
	}
	return Config{}, fmt.Errorf("%w: %s", ErrNotFound, what)
}

func (f *FileStore) GetByGroup(_ context.Context, group string) (Config, error) {
	return f.find(func(c Config) bool { return c.Group == group }, "group "+group)
}

func (f *FileStore) GetByID(_ context.Context, id string) (Config, error) {
	return f.find(func(c Config) bool { return c.ID == id }, "id "+id)
}

func (f *FileStore) Create(_ context.Context, c Config) (Config, error) {
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cs, err := f.read()
	if err != nil {
		return Config{}, err
	}
	ids := make(map[string]struct{}, len(cs))
	for _, existing := range cs {
		if existing.Group == c.Group {
			return Config{}, fmt.Errorf("%w: %s", ErrGroupExists, c.Group)
		}
		ids[existing.ID] = struct{}{}
	}
	c.ID, err = uniqueID(func(id string) (bool, error) {
		_, used := ids[id]
		return used, nil
	})
	if err != nil {
		return Config{}, err
	}
	if err := f.save(append(cs, c)); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (f *FileStore) Update(_ context.Context, group string, c Config) (Config, error) {
	c.Group = group
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cs, err := f.read()
	if err != nil {
		return Config{}, err
	}
	for i := range cs {
		if cs[i].Group != group {
			continue
		}
		c.ID = cs[i].ID
		cs[i] = c
		if err := f.save(cs); err != nil {
			return Config{}, err
		}
		return c, nil
	}
	return Config{}, fmt.Errorf("%w: group %s", ErrNotFound, group)
}

func (f *FileStore) Delete(_ context.Context, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cs, err := f.read()
	if err != nil {
		return err
	}
	kept := cs[:0]
	for _, c := range cs {
		if c.Group != group {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(cs) {
		return fmt.Errorf("%w: group %s", ErrNotFound, group)
	}
	return f.save(kept)
}

func (f *FileStore) SetAllPowers(_ context.Context, p decimal.Decimal) ([]Config, error) {
	if p.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPower, p)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cs, err := f.read()
	if err != nil {
		return nil, err
	}
	if len(cs) == 0 {
		return nil, fmt.Errorf("%w: no configurations", ErrNotFound)
	}
	for i := range cs {
		cs[i].Power = p
	}
	if err := f.save(cs); err != nil {
		return nil, err
	}
	return cs, nil
}
