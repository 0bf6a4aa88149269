package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"ratefeed/internal/fsutil"
)

// PriceBroadcast is the template and job id used for the periodic rate message.
const PriceBroadcast = "price_broadcast"

var ErrTemplateNotFound = errors.New("broadcast: template not found")

type Template struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// TemplatePatch updates only the fields that are set.
type TemplatePatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// DefaultTemplates seeds a template file that does not exist yet.
var DefaultTemplates = map[string]Template{
	PriceBroadcast: {
		Title: "USDT/JPY",
		Content: "*USDT/JPY*\n" +
			"Bid: {bid_price}\n" +
			"Ask: {ask_price}\n" +
			"Last: {last_price}\n" +
			"Google: {google_last_price}\n" +
			"Spread: {spread_percent}%\n" +
			"Time: {formatted_time}",
	},
}

// TemplateStore keeps message templates in one JSON object keyed by id.
type TemplateStore struct {
	path string
	mu   sync.Mutex
}

func NewTemplateStore(path string) (*TemplateStore, error) {
	s := &TemplateStore{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.save(DefaultTemplates); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat templates: %w", err)
	}
	return s, nil
}

func (s *TemplateStore) load() (map[string]Template, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	ts := make(map[string]Template)
	if err := json.Unmarshal(b, &ts); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return ts, nil
}

func (s *TemplateStore) save(ts map[string]Template) error {
	b, err := json.MarshalIndent(ts, "", "    ")
	if err != nil {
		return fmt.Errorf("encode templates: %w", err)
	}
	return fsutil.WriteFileAtomic(s.path, b, 0o644)
}

func (s *TemplateStore) Get(id string) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, err := s.load()
	if err != nil {
		return Template{}, err
	}
	t, ok := ts[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return t, nil
}

// Update merges p into the existing template; unknown ids are not created.
func (s *TemplateStore) Update(id string, p TemplatePatch) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, err := s.load()
	if err != nil {
		return Template{}, err
	}
	t, ok := ts[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Content != nil {
		t.Content = *p.Content
	}
	ts[id] = t
	if err := s.save(ts); err != nil {
		return Template{}, err
	}
	return t, nil
}
