package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
)

// ErrInvalidDocument is returned when a file is not a usable CityJSON document
var ErrInvalidDocument = errors.New("invalid CityJSON document")

// SupportedVersions lists the CityJSON versions accepted by Decode
var SupportedVersions = []string{"1.0", "1.1"}

// Templates holds the geometry-templates block of a document
type Templates struct {
	Vertices   [][3]float64
	Geometries []Value
}

// Document is a validated CityJSON file
type Document struct {
	FileName    string
	Version     string
	Scale       [3]float64
	Translate   [3]float64
	Vertices    [][3]int64
	CityObjects Value
	Templates   *Templates
}

// ObjectCount returns the number of entries in CityObjects
func (d *Document) ObjectCount() int {
	return d.CityObjects.Len()
}

// Load maps a file read-only, parses it and validates it
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidDocument, path)
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap %s: %w", path, err)
	}
	defer data.Unmap()

	root, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, path, err)
	}

	return Decode(filepath.Base(path), root)
}

// Decode runs the validity check on a parsed tree and extracts the
// top-level blocks. Every failure wraps ErrInvalidDocument.
func Decode(fileName string, root Value) (*Document, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidDocument, fileName, fmt.Sprintf(format, args...))
	}

	if root.Kind() != KindObject {
		return nil, invalid("root must be an object")
	}

	typ, err := root.StringField("type")
	if err != nil {
		return nil, invalid("%v", err)
	}
	if typ != "CityJSON" {
		return nil, invalid("type is %q, want \"CityJSON\"", typ)
	}

	version, err := root.StringField("version")
	if err != nil {
		return nil, invalid("%v", err)
	}
	if !versionSupported(version) {
		return nil, invalid("unsupported version %q (supported: %v)", version, SupportedVersions)
	}

	transform, err := root.ObjectField("transform")
	if err != nil {
		return nil, invalid("%v", err)
	}
	scaleVal, err := transform.Field("scale")
	if err != nil {
		return nil, invalid("transform: %v", err)
	}
	scale, err := scaleVal.Float3()
	if err != nil {
		return nil, invalid("transform.scale: %v", err)
	}
	translateVal, err := transform.Field("translate")
	if err != nil {
		return nil, invalid("transform: %v", err)
	}
	translate, err := translateVal.Float3()
	if err != nil {
		return nil, invalid("transform.translate: %v", err)
	}

	rawVertices, err := root.ArrayField("vertices")
	if err != nil {
		return nil, invalid("%v", err)
	}
	vertices := make([][3]int64, len(rawVertices))
	for i, rv := range rawVertices {
		vtx, err := rv.Int3()
		if err != nil {
			return nil, invalid("vertex %d: %v", i, err)
		}
		vertices[i] = vtx
	}

	cityObjects, err := root.ObjectField("CityObjects")
	if err != nil {
		return nil, invalid("%v", err)
	}

	doc := &Document{
		FileName:    fileName,
		Version:     version,
		Scale:       scale,
		Translate:   translate,
		Vertices:    vertices,
		CityObjects: cityObjects,
	}

	if block, ok := root.Get("geometry-templates"); ok && !block.IsNull() {
		templates, err := decodeTemplates(block)
		if err != nil {
			return nil, invalid("geometry-templates: %v", err)
		}
		doc.Templates = templates
	}

	return doc, nil
}

func decodeTemplates(block Value) (*Templates, error) {
	rawVertices, err := block.ArrayField("vertices-templates")
	if err != nil {
		return nil, err
	}
	geometries, err := block.ArrayField("templates")
	if err != nil {
		return nil, err
	}

	vertices := make([][3]float64, len(rawVertices))
	for i, rv := range rawVertices {
		vtx, err := rv.Float3()
		if err != nil {
			return nil, fmt.Errorf("template vertex %d: %w", i, err)
		}
		vertices[i] = vtx
	}

	return &Templates{Vertices: vertices, Geometries: geometries}, nil
}

func versionSupported(v string) bool {
	for _, s := range SupportedVersions {
		if s == v {
			return true
		}
	}
	return false
}
