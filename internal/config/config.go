package config

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/flywave/go3d/float64/vec3"
)

// DefaultMaxObjects is the object count above which a file needs AllowLargeFiles
const DefaultMaxObjects = 10000

// Domain is an axis-aligned 3D bounding volume in scene coordinates
type Domain struct {
	Min, Max vec3.T
	IsSet    bool
}

// Box returns the domain as a vec3 box
func (d *Domain) Box() vec3.Box {
	return vec3.Box{Min: d.Min, Max: d.Max}
}

// Intersects reports whether box overlaps the domain. An unset domain
// accepts everything.
func (d *Domain) Intersects(box vec3.Box) bool {
	if d == nil || !d.IsSet {
		return true
	}
	for i := 0; i < 3; i++ {
		if box.Max[i] < d.Min[i] || box.Min[i] > d.Max[i] {
			return false
		}
	}
	return true
}

// ParseDomain parses a domain string in format "minx,miny,minz,maxx,maxy,maxz"
func ParseDomain(s string) (*Domain, error) {
	if s == "" {
		return &Domain{IsSet: false}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return nil, fmt.Errorf("domain must have 6 values: minx,miny,minz,maxx,maxy,maxz")
	}

	var coords [6]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid domain coordinate %q: %w", p, err)
		}
		coords[i] = v
	}

	d := &Domain{
		Min:   vec3.T{coords[0], coords[1], coords[2]},
		Max:   vec3.T{coords[3], coords[4], coords[5]},
		IsSet: true,
	}
	for i, axis := range []string{"x", "y", "z"} {
		if d.Min[i] > d.Max[i] {
			return nil, fmt.Errorf("min%s (%f) must be <= max%s (%f)", axis, d.Min[i], axis, d.Max[i])
		}
	}
	return d, nil
}

// ParsePoint parses "x,y,z"
func ParsePoint(s string) (vec3.T, error) {
	var p vec3.T
	if s == "" {
		return p, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return p, fmt.Errorf("point must have 3 values: x,y,z")
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return p, fmt.Errorf("invalid coordinate %q: %w", part, err)
		}
		p[i] = v
	}
	return p, nil
}

// ParseLoDs parses a comma separated LoD list such as "1.2,2.2". An empty
// string selects every LoD.
func ParseLoDs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Config holds the global configuration for an ingest run
type Config struct {
	// Input settings
	InputFiles []string

	// Coordinate settings
	Translate        bool   // use each file's own translate instead of the first file's origin
	ModelOrigin      vec3.T // world origin subtracted from every vertex
	TrueNorthDegrees float64
	UnitScale        float64 // scene units per model unit

	// Filters
	Domain          *Domain
	LoDs            []string // empty = all
	AllowLargeFiles bool
	MaxObjects      int
	StyleFile       string // YAML object filter and ingest overrides
	ScriptFile      string // Lua object hook

	// Output settings
	OutputDir string
	SRID      int

	// Database settings
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSchema   string

	// Processing settings
	Workers   int
	BatchSize int
	Verbose   bool

	// Logging and metrics
	LogFile         string        // Path to log file (empty = no file logging)
	MetricsInterval time.Duration // Interval for system metrics logging, 0 disables
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Domain:          &Domain{},
		UnitScale:       1.0,
		MaxObjects:      DefaultMaxObjects,
		OutputDir:       "./city_data",
		SRID:            0,
		DBHost:          "localhost",
		DBPort:          5432,
		DBName:          "city",
		DBUser:          "postgres",
		DBPassword:      "",
		DBSchema:        "public",
		Workers:         runtime.NumCPU(),
		BatchSize:       10000,
		MetricsInterval: 30 * time.Second,
	}
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// LoDSelected reports whether geometry of this LoD passes the filter
func (c *Config) LoDSelected(lod string) bool {
	if len(c.LoDs) == 0 {
		return true
	}
	for _, l := range c.LoDs {
		if l == lod {
			return true
		}
	}
	return false
}

// Validate checks that the configuration is usable. Problems that do not
// prevent a run are returned as warnings.
func (c *Config) Validate() (warnings []string, err error) {
	if len(c.InputFiles) == 0 {
		return nil, fmt.Errorf("at least one input file is required")
	}
	if c.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1")
	}
	if c.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be at least 1")
	}
	if c.UnitScale <= 0 {
		return nil, fmt.Errorf("unit scale must be positive")
	}
	if c.MaxObjects < 1 {
		return nil, fmt.Errorf("max objects must be at least 1")
	}
	if c.TrueNorthDegrees < -360 || c.TrueNorthDegrees > 360 {
		warnings = append(warnings, fmt.Sprintf("true north %.2f is outside [-360, 360]", c.TrueNorthDegrees))
	}
	return warnings, nil
}
