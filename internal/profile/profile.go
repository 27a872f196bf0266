// Package profile implements the read-mostly catalog of emulator profiles
// (spec §3 "Profile store", §6 Profiles/Explorer RPCs). Profiles describe
// where an emulator keeps saves and which filenames belong to a save, so
// the packager and the download pipeline know where to read from and
// extract to.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNotFound is returned when no profile matches the requested emulator id.
var ErrNotFound = errors.New("profile: not found")

// Profile describes one emulator's save layout.
type Profile struct {
	EmulatorID       string   `json:"emulator_id"`
	DisplayName      string   `json:"display_name"`
	DefaultSavePaths []string `json:"default_save_paths"`
	Patterns         []string `json:"patterns"`
}

// Store is a JSON-per-file catalog of Profiles rooted at a directory
// (spec §6 "profiles/{emulator_id}.json"). Built-in defaults seed common
// emulators; a user file with the same emulator id overrides the built-in.
type Store struct {
	dir      string
	builtins map[string]Profile
}

// NewStore creates a Store rooted at dir. dir is created on first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir, builtins: builtinProfiles()}
}

func (s *Store) path(emulatorID string) string {
	return filepath.Join(s.dir, emulatorID+".json")
}

// List returns every known profile: the builtins merged with the user
// profile files (a user file replaces the builtin with the same emulator
// id), as one list sorted by emulator id for deterministic output.
func (s *Store) List() ([]Profile, error) {
	merged := make(map[string]Profile, len(s.builtins))
	for id, p := range s.builtins {
		merged[id] = p
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sortedProfiles(merged), nil
		}

		return nil, fmt.Errorf("profile: reading %s: %w", s.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		id := entry.Name()[:len(entry.Name())-len(".json")]

		p, err := s.readFile(s.path(id))
		if err != nil {
			return nil, err
		}

		merged[id] = *p
	}

	return sortedProfiles(merged), nil
}

func sortedProfiles(m map[string]Profile) []Profile {
	out := make([]Profile, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].EmulatorID < out[j].EmulatorID })

	return out
}

// Get returns the profile for emulatorID, preferring a user override over
// a builtin, or ErrNotFound if neither exists.
func (s *Store) Get(emulatorID string) (*Profile, error) {
	p, err := s.readFile(s.path(emulatorID))
	if err == nil {
		return p, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if b, ok := s.builtins[emulatorID]; ok {
		cp := b
		return &cp, nil
	}

	return nil, fmt.Errorf("profile %q: %w", emulatorID, ErrNotFound)
}

func (s *Store) readFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile: decoding %s: %w", path, err)
	}

	return &p, nil
}

// Save writes a user profile override, creating the profiles directory if
// needed.
func (s *Store) Save(p Profile) error {
	if p.EmulatorID == "" {
		return errors.New("profile: emulator_id is required")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("profile: creating %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("profile: encoding: %w", err)
	}

	return os.WriteFile(s.path(p.EmulatorID), data, 0o644)
}

// Delete removes a user override. It is not an error to delete a profile
// that only exists as a builtin — the builtin simply reappears on the
// next List/Get.
func (s *Store) Delete(emulatorID string) error {
	err := os.Remove(s.path(emulatorID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("profile: deleting %s: %w", emulatorID, err)
	}

	return nil
}

// builtinProfiles returns the small set of emulators the agent recognizes
// out of the box. Users extend this with Save; nothing here is special
// beyond being the default when no override file exists.
func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		"dolphin": {
			EmulatorID:       "dolphin",
			DisplayName:      "Dolphin (GameCube/Wii)",
			DefaultSavePaths: []string{"~/.local/share/dolphin-emu/GC"},
			Patterns:         []string{"*.gci", "*.raw"},
		},
		"pcsx2": {
			EmulatorID:       "pcsx2",
			DisplayName:      "PCSX2 (PS2)",
			DefaultSavePaths: []string{"~/.config/PCSX2/memcards"},
			Patterns:         []string{"*.ps2"},
		},
		"retroarch": {
			EmulatorID:       "retroarch",
			DisplayName:      "RetroArch",
			DefaultSavePaths: []string{"~/.config/retroarch/saves"},
			Patterns:         []string{"*.srm", "*.sav", "*.state*"},
		},
	}
}
