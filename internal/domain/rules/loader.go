package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rulesetFile is the on-disk representation of a ruleset override.
type rulesetFile struct {
	Rules          []Rule `yaml:"rules"`
	ExcludePattern string `yaml:"exclude_pattern"`
	SizeCeiling    int    `yaml:"size_ceiling"`
}

// LoadFile reads a declarative ruleset from a YAML file. Fields left empty
// fall back to the built-in exclusion pattern and size ceiling so an override
// file only needs to declare what it changes.
func LoadFile(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset file: %w", err)
	}

	var file rulesetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset file: %w", err)
	}

	if file.ExcludePattern == "" {
		file.ExcludePattern = defaultExcludePattern
	}
	if file.SizeCeiling == 0 {
		file.SizeCeiling = DefaultSizeCeiling
	}
	for i := range file.Rules {
		if file.Rules[i].PathPattern == "" {
			file.Rules[i].PathPattern = defaultPathFilter
		}
	}

	rs, err := New(file.Rules, file.ExcludePattern, file.SizeCeiling)
	if err != nil {
		return nil, fmt.Errorf("invalid ruleset file %s: %w", path, err)
	}
	return rs, nil
}
