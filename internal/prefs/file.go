package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const fileBackend = "file"

// DefaultCategoryKey groups entries that carry no category in the file layout.
const DefaultCategoryKey = "other"

// FileStore keeps preferences in a JSON document of the form
//
//	{"services": {"<category>": {"<id>": {"enabled": true, "auto": false}}},
//	 "selectedProfile": "cpu", "selectedEnvironment": "private"}
//
// Unknown keys are ignored on load and missing keys default. Save keeps the
// keys it does not manage, both top-level and per service, so files that also
// carry dependency or profile metadata survive a round trip.
type FileStore struct {
	path string
}

type fileDocument struct {
	Services            map[string]map[string]fileService `json:"services"`
	SelectedProfile     string                            `json:"selectedProfile,omitempty"`
	SelectedEnvironment string                            `json:"selectedEnvironment,omitempty"`
}

type fileService struct {
	Enabled bool `json:"enabled"`
	Auto    bool `json:"auto,omitempty"`
}

// rawFields is a JSON object kept as undecoded values.
type rawFields map[string]json.RawMessage

// NewFileStore constructs a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the preference file. A missing or empty file yields an empty State.
func (s *FileStore) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, s.fail("load", err)
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, s.fail("load", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return State{}, nil
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return State{}, s.fail("load", fmt.Errorf("decode json: %w", err))
	}

	state := State{
		Profile:     doc.SelectedProfile,
		Environment: doc.SelectedEnvironment,
	}
	categories := make([]string, 0, len(doc.Services))
	for category := range doc.Services {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		services := doc.Services[category]
		ids := make([]string, 0, len(services))
		for id := range services {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			state.Entries = append(state.Entries, Entry{
				ServiceID: id,
				Category:  category,
				Enabled:   services[id].Enabled,
				Auto:      services[id].Auto,
			})
		}
	}
	return state, nil
}

// Save replaces the preference file atomically.
func (s *FileStore) Save(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return s.fail("save", err)
	}
	top, prevServices := s.readRaw()
	services := make(map[string]map[string]rawFields)
	for _, e := range state.Entries {
		category := e.Category
		if category == "" {
			category = DefaultCategoryKey
		}
		if services[category] == nil {
			services[category] = make(map[string]rawFields)
		}
		fields := make(rawFields, len(prevServices[e.ServiceID])+2)
		for k, v := range prevServices[e.ServiceID] {
			fields[k] = v
		}
		fields["enabled"] = rawBool(e.Enabled)
		if e.Auto {
			fields["auto"] = rawBool(true)
		} else {
			delete(fields, "auto")
		}
		services[category][e.ServiceID] = fields
	}

	raw, err := json.Marshal(services)
	if err != nil {
		return s.fail("save", fmt.Errorf("encode json: %w", err))
	}
	top["services"] = raw
	setRawString(top, "selectedProfile", state.Profile)
	setRawString(top, "selectedEnvironment", state.Environment)

	data, err := json.MarshalIndent(top, "", "  ")
	if err != nil {
		return s.fail("save", fmt.Errorf("encode json: %w", err))
	}
	data = append(data, '\n')

	if err := writeFileAtomic(s.path, data); err != nil {
		return s.fail("save", err)
	}
	return nil
}

// readRaw returns the current top-level object and the per-service objects
// keyed by service id. A missing or unreadable file yields empty maps.
func (s *FileStore) readRaw() (rawFields, map[string]rawFields) {
	top := make(rawFields)
	byID := make(map[string]rawFields)
	data, err := os.ReadFile(s.path)
	if err != nil || json.Unmarshal(data, &top) != nil || top == nil {
		return make(rawFields), byID
	}
	var services map[string]map[string]rawFields
	if raw, ok := top["services"]; ok && json.Unmarshal(raw, &services) == nil {
		for _, group := range services {
			for id, fields := range group {
				byID[id] = fields
			}
		}
	}
	return top, byID
}

func rawBool(v bool) json.RawMessage {
	if v {
		return json.RawMessage("true")
	}
	return json.RawMessage("false")
}

func setRawString(fields rawFields, key, value string) {
	if value == "" {
		delete(fields, key)
		return
	}
	raw, _ := json.Marshal(value)
	fields[key] = raw
}

func (s *FileStore) fail(op string, err error) error {
	return &StoreError{Op: op, Backend: fileBackend, Path: s.path, Err: err}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
