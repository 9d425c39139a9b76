package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/psantana5/paw/pkg/watch"
)

// DefaultInterval is used by profiles that set no interval.
const DefaultInterval = "500ms"

// ProfileConfig is a saved watch: a command line plus how to watch it.
type ProfileConfig struct {
	Command  string   `json:"command" yaml:"command"`
	Args     []string `json:"args,omitempty" yaml:"args,omitempty"`
	Interval string   `json:"interval,omitempty" yaml:"interval,omitempty"` // e.g. "250ms", "1s"
	Timeout  string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`   // terminate after, e.g. "10m"
	Grace    string   `json:"grace,omitempty" yaml:"grace,omitempty"`       // SIGTERM to SIGKILL delay
	Dir      string   `json:"dir,omitempty" yaml:"dir,omitempty"`
	Env      []string `json:"env,omitempty" yaml:"env,omitempty"`
}

// ProfilesConfig is the top-level layout of a profiles file
type ProfilesConfig struct {
	Profiles map[string]ProfileConfig `json:"profiles" yaml:"profiles"`
}

// Profile is a validated ProfileConfig
type Profile struct {
	Name    string
	Spec    *watch.Spec
	Timeout time.Duration
	Grace   time.Duration
	Dir     string
	Env     []string
}

// LoadConfig loads profiles from a YAML file
func LoadConfig(path string) (*ProfilesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes profiles YAML and fills defaults
func Parse(data []byte) (*ProfilesConfig, error) {
	var config ProfilesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Profiles == nil {
		config.Profiles = make(map[string]ProfileConfig)
	}
	for name, p := range config.Profiles {
		if p.Interval == "" {
			p.Interval = DefaultInterval
		}
		config.Profiles[name] = p
	}

	return &config, nil
}

// Names returns the profile names in sorted order
func (c *ProfilesConfig) Names() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile looks up and validates a profile by name
func (c *ProfilesConfig) Profile(name string) (*Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	profile, err := p.ToProfile(name)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}
	return profile, nil
}

// ToProfile converts a ProfileConfig into a runnable Profile
func (p ProfileConfig) ToProfile(name string) (*Profile, error) {
	interval, err := time.ParseDuration(p.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid interval: %w", err)
	}

	spec, err := watch.NewSpec(p.Command, p.Args, interval)
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		Name: name,
		Spec: spec,
		Dir:  p.Dir,
		Env:  p.Env,
	}

	if p.Timeout != "" {
		if profile.Timeout, err = time.ParseDuration(p.Timeout); err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
	}
	if p.Grace != "" {
		if profile.Grace, err = time.ParseDuration(p.Grace); err != nil {
			return nil, fmt.Errorf("invalid grace: %w", err)
		}
	}

	return profile, nil
}

// ExampleConfig is printed by `paw config example`
const ExampleConfig = `# paw watch profiles
#
# Run one with: paw run --profile build

profiles:
  build:
    command: make
    args: ["-j4", "all"]
    interval: 500ms

  encode:
    command: ffmpeg
    args: ["-i", "input.mp4", "-c:v", "libx264", "output.mp4"]
    interval: 1s
    timeout: 30m
    grace: 10s

  tests:
    command: go
    args: ["test", "./..."]
    interval: 250ms
    dir: /src/project
    env: ["GOFLAGS=-count=1"]
`
