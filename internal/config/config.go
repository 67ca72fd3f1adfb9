/* Copyright (c) 2025 Ben Boeckel <mathstuf@gmail.com>
 * SPDX-License-Identifier: MIT OR Apache-2.0 */
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration. Accounts name credentials for a
// hosting service; targets name directories to fill with todo documents and
// the profiles (account + query) that feed them. YAML merge keys expand
// during decoding, so shared profile fragments can be factored out.
type Config struct {
	Accounts       map[string]Account    `yaml:"accounts"`
	Targets        map[string]SyncTarget `yaml:"targets"`
	DefaultTargets []string              `yaml:"default_targets"`

	// Daemon mode settings; unused for one-shot syncs.
	SyncCron string `yaml:"sync_cron"`
	HTTPAddr string `yaml:"http_addr"`
}

type Account struct {
	Service  string `yaml:"service"`
	Hostname string `yaml:"hostname"`
	Secret   string `yaml:"secret"`
}

type SyncTarget struct {
	Directory string             `yaml:"directory"`
	Profiles  map[string]Profile `yaml:"profiles"`
}

type Profile struct {
	Account string      `yaml:"account"`
	Target  QueryTarget `yaml:"target"`
	Filters []Filter    `yaml:"filters"`
}

// QueryTarget selects what to ask a service for: the authenticated user's
// own items (`self`) or the items of named projects.
type QueryTarget struct {
	SelfUser bool
	Projects []string
}

func (t *QueryTarget) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s != "self" {
			return fmt.Errorf("unknown query target %q", s)
		}
		t.SelfUser = true
		return nil
	case yaml.MappingNode:
		var m struct {
			Projects []string `yaml:"projects"`
		}
		if err := value.Decode(&m); err != nil {
			return err
		}
		if len(m.Projects) == 0 {
			return fmt.Errorf("query target needs a non-empty projects list")
		}
		t.Projects = m.Projects
		return nil
	}
	return fmt.Errorf("query target must be \"self\" or a projects mapping")
}

// Filter narrows a query; only label filters exist today. Multiple filters
// are ANDed by the backends.
type Filter struct {
	Label string
}

func (f *Filter) UnmarshalYAML(value *yaml.Node) error {
	var m struct {
		Label *string `yaml:"label"`
	}
	if err := value.Decode(&m); err != nil {
		return err
	}
	if m.Label == nil {
		return fmt.Errorf("unknown filter; only \"label\" is supported")
	}
	f.Label = *m.Label
	return nil
}

func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	return cfg, nil
}

func (c Config) validate() error {
	var problems []string

	for _, name := range sortedKeys(c.Accounts) {
		acct := c.Accounts[name]
		if acct.Service == "" {
			problems = append(problems, fmt.Sprintf("account %q: missing service", name))
		}
		if acct.Secret == "" {
			problems = append(problems, fmt.Sprintf("account %q: missing secret", name))
		}
	}

	for _, name := range sortedKeys(c.Targets) {
		target := c.Targets[name]
		if target.Directory == "" {
			problems = append(problems, fmt.Sprintf("target %q: missing directory", name))
		}
		for _, pname := range sortedKeys(target.Profiles) {
			profile := target.Profiles[pname]
			if profile.Account == "" {
				problems = append(problems, fmt.Sprintf("target %q profile %q: missing account", name, pname))
			} else if _, ok := c.Accounts[profile.Account]; !ok {
				problems = append(problems, fmt.Sprintf("target %q profile %q: unknown account %q", name, pname, profile.Account))
			}
			if !profile.Target.SelfUser && len(profile.Target.Projects) == 0 {
				problems = append(problems, fmt.Sprintf("target %q profile %q: missing query target", name, pname))
			}
		}
	}

	for _, name := range c.DefaultTargets {
		if _, ok := c.Targets[name]; !ok {
			problems = append(problems, fmt.Sprintf("default target %q is not defined", name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
