package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Profile is a named device endpoint the user can connect to by name.
type Profile struct {
	Name      string `yaml:"name"`
	Host      string `yaml:"host"`
	Password  string `yaml:"password,omitempty"`
	VideoPort int    `yaml:"video_port,omitempty"`
	AudioPort int    `yaml:"audio_port,omitempty"`
}

// ProfileStore persists profiles to a yaml file.
type ProfileStore struct {
	path string
}

// NewProfileStore returns a store at path, or at profiles.yaml in the
// config dir when path is empty.
func NewProfileStore(path string) (*ProfileStore, error) {
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "profiles.yaml")
	}
	return &ProfileStore{path: path}, nil
}

// Load reads all profiles. A missing file is an empty store.
func (s *ProfileStore) Load() ([]Profile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var profiles []Profile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", s.path, err)
	}
	return profiles, nil
}

// Get returns the named profile.
func (s *ProfileStore) Get(name string) (*Profile, error) {
	profiles, err := s.Load()
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("config: profile %q not found", name)
}

// Put adds or replaces a profile by name.
func (s *ProfileStore) Put(p Profile) error {
	profiles, err := s.Load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range profiles {
		if profiles[i].Name == p.Name {
			profiles[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return s.save(profiles)
}

// Remove deletes a profile by name. Removing a missing profile is not an
// error.
func (s *ProfileStore) Remove(name string) error {
	profiles, err := s.Load()
	if err != nil {
		return err
	}
	out := profiles[:0]
	for _, p := range profiles {
		if p.Name != name {
			out = append(out, p)
		}
	}
	return s.save(out)
}

func (s *ProfileStore) save(profiles []Profile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(profiles)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
