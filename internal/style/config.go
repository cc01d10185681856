package style

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/cityjson2pgsql-go/internal/config"
)

// Config is the YAML settings file for an ingest run: an object filter plus
// optional overrides of the command line settings.
type Config struct {
	// Objects filters city objects by type and attributes
	Objects *FilterConfig `yaml:"objects,omitempty"`

	// Overrides
	LoDs      []string `yaml:"lods,omitempty"`
	Domain    string   `yaml:"domain,omitempty"` // "minx,miny,minz,maxx,maxy,maxz"
	Origin    string   `yaml:"origin,omitempty"` // "x,y,z"
	TrueNorth *float64 `yaml:"true_north,omitempty"`
	UnitScale *float64 `yaml:"unit_scale,omitempty"`
}

// FilterConfig defines filtering rules over an object's tags. The tags of a
// city object are its attributes rendered as strings plus "type".
type FilterConfig struct {
	// Include specifies which keys/values to include
	// If empty, all objects are included
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude specifies which keys/values to exclude
	// Applied after include rules
	Exclude map[string][]string `yaml:"exclude,omitempty"`
	// RequireAny specifies that at least one of these keys must be present
	RequireAny []string `yaml:"require_any,omitempty"`
}

// LoadConfig loads a settings file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses settings YAML
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse style YAML: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig returns a configuration that includes everything
func DefaultConfig() *Config {
	return &Config{}
}

// Apply copies the overrides that are set into cfg
func (s *Config) Apply(cfg *config.Config) error {
	if len(s.LoDs) > 0 {
		cfg.LoDs = append([]string(nil), s.LoDs...)
	}
	if s.Domain != "" {
		d, err := config.ParseDomain(s.Domain)
		if err != nil {
			return fmt.Errorf("style domain: %w", err)
		}
		cfg.Domain = d
	}
	if s.Origin != "" {
		p, err := config.ParsePoint(s.Origin)
		if err != nil {
			return fmt.Errorf("style origin: %w", err)
		}
		cfg.ModelOrigin = p
	}
	if s.TrueNorth != nil {
		cfg.TrueNorthDegrees = *s.TrueNorth
	}
	if s.UnitScale != nil {
		cfg.UnitScale = *s.UnitScale
	}
	return nil
}

// ObjectTags renders an object's type and scalar attributes as filter tags.
// Nested attribute values are skipped.
func ObjectTags(objectType string, attrs map[string]any) map[string]string {
	tags := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		switch val := v.(type) {
		case string:
			tags[k] = val
		case bool, int64, float64:
			tags[k] = fmt.Sprint(val)
		}
	}
	tags["type"] = objectType
	return tags
}

// Filter checks if tags match the filter configuration
type Filter struct {
	cfg *FilterConfig
}

// NewFilter creates a filter from configuration
func NewFilter(cfg *FilterConfig) *Filter {
	if cfg == nil {
		return &Filter{cfg: &FilterConfig{}}
	}
	return &Filter{cfg: cfg}
}

// Match checks if the given tags match the filter rules
// Returns true if the object should be kept
func (f *Filter) Match(tags map[string]string) bool {
	if f.cfg == nil {
		return true
	}

	if len(f.cfg.RequireAny) > 0 {
		found := false
		for _, key := range f.cfg.RequireAny {
			if _, ok := tags[key]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.cfg.Include) > 0 && !anyRule(f.cfg.Include, tags) {
		return false
	}
	if len(f.cfg.Exclude) > 0 && anyRule(f.cfg.Exclude, tags) {
		return false
	}
	return true
}

// anyRule reports whether a tag matches one of the key/value rules. A key
// with no values, or the value "*", matches any value.
func anyRule(rules map[string][]string, tags map[string]string) bool {
	for key, values := range rules {
		tagValue, ok := tags[key]
		if !ok {
			continue
		}
		if len(values) == 0 {
			return true
		}
		for _, v := range values {
			if v == tagValue || v == "*" {
				return true
			}
		}
	}
	return false
}

// MatchObject applies the filter to a city object's type and attributes
func (f *Filter) MatchObject(objectType string, attrs map[string]any) bool {
	return f.Match(ObjectTags(objectType, attrs))
}

// HasFilter returns true if filtering is enabled
func (f *Filter) HasFilter() bool {
	if f.cfg == nil {
		return false
	}
	return len(f.cfg.Include) > 0 || len(f.cfg.Exclude) > 0 || len(f.cfg.RequireAny) > 0
}

// Keys returns the keys referenced by the filter, sorted
func (f *Filter) Keys() []string {
	seen := make(map[string]bool)
	for k := range f.cfg.Include {
		seen[k] = true
	}
	for k := range f.cfg.Exclude {
		seen[k] = true
	}
	for _, k := range f.cfg.RequireAny {
		seen[k] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
