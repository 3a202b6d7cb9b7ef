package xsdgraph

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/agentflare-ai/go-xmldom"
)

// ErrRemoteDisabled is returned for http(s) locations when AllowRemote is off.
var ErrRemoteDisabled = errors.New("remote schema loading is disabled")

// ErrInvalidSchema wraps the problems SchemaValidator finds in a root schema.
var ErrInvalidSchema = errors.New("invalid schema document")

// LoadWarning is a non-fatal problem met while following includes and imports.
type LoadWarning struct {
	Location string
	Message  string
	Err      error
}

func (w LoadWarning) String() string {
	if w.Err != nil {
		return fmt.Sprintf("%s: %s: %v", w.Location, w.Message, w.Err)
	}
	return fmt.Sprintf("%s: %s", w.Location, w.Message)
}

// SchemaLoader handles loading schemas with import/include support
type SchemaLoader struct {
	// Base directory for resolving relative paths
	BaseDir string

	// Whether to allow remote schema loading
	AllowRemote bool

	Logger     *slog.Logger
	HTTPClient *http.Client

	// documents in load order, root first
	loaded   []*Schema
	visited  map[string]bool
	warnings []LoadWarning

	mu sync.Mutex
}

// NewSchemaLoader creates a new schema loader
func NewSchemaLoader(baseDir string) *SchemaLoader {
	return &SchemaLoader{
		BaseDir:    baseDir,
		Logger:     slog.Default(),
		HTTPClient: http.DefaultClient,
	}
}

// LoadSchemaWithImports loads a schema and all its imports/includes and
// returns them merged into one Schema. Only a root document that cannot be
// loaded or parsed is an error; other failures become Warnings.
func (sl *SchemaLoader) LoadSchemaWithImports(location string) (*Schema, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	absLocation, err := sl.resolveLocation(location)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", location, err)
	}
	doc, err := sl.loadDocument(absLocation)
	if err != nil {
		return nil, err
	}
	return sl.load(doc, absLocation)
}

// LoadDocument is LoadSchemaWithImports for an already decoded root
// document. Relative locations resolve against location.
func (sl *SchemaLoader) LoadDocument(doc xmldom.Document, location string) (*Schema, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.load(doc, location)
}

func (sl *SchemaLoader) load(doc xmldom.Document, location string) (*Schema, error) {
	sl.loaded = nil
	sl.visited = make(map[string]bool)
	sl.warnings = nil

	root, err := parseDocument(doc, location, "")
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", location, err)
	}
	sl.visited[visitKey(location, "")] = true
	sl.loaded = append(sl.loaded, root)
	sl.follow(root)

	return sl.merge(), nil
}

func visitKey(location, chameleonNS string) string {
	return location + "#" + chameleonNS
}

// follow loads the includes and imports of schema, depth first.
func (sl *SchemaLoader) follow(schema *Schema) {
	for _, inc := range schema.Includes {
		if inc.Kind != "include" {
			sl.warn(schema.Location, fmt.Sprintf("xs:%s of %s is treated as xs:include", inc.Kind, inc.SchemaLocation), nil)
		}
		loc := sl.resolveRelative(inc.SchemaLocation, schema.Location)
		included, err := sl.loadRecursive(loc, schema.TargetNamespace)
		if err != nil {
			sl.warn(schema.Location, "failed to include "+inc.SchemaLocation, err)
			continue
		}
		if included != nil && included.TargetNamespace != schema.TargetNamespace {
			sl.warn(included.Location, fmt.Sprintf("included schema has target namespace %q, expected %q",
				included.TargetNamespace, schema.TargetNamespace), nil)
		}
	}

	for _, imp := range schema.Imports {
		if imp.SchemaLocation == "" {
			continue
		}
		loc := sl.resolveRelative(imp.SchemaLocation, schema.Location)
		imported, err := sl.loadRecursive(loc, "")
		if err != nil {
			sl.warn(schema.Location, "failed to import "+imp.SchemaLocation, err)
			continue
		}
		if imported != nil && imported.TargetNamespace != imp.Namespace {
			sl.warn(imported.Location, fmt.Sprintf("imported schema has target namespace %q, import declares %q",
				imported.TargetNamespace, imp.Namespace), nil)
		}
	}
}

// loadRecursive loads one referenced document. It returns nil without
// error when the document was already visited.
func (sl *SchemaLoader) loadRecursive(location, chameleonNS string) (*Schema, error) {
	absLocation, err := sl.resolveLocation(location)
	if err != nil {
		return nil, err
	}

	key := visitKey(absLocation, chameleonNS)
	if sl.visited[key] {
		return nil, nil
	}
	// marked before parsing so include cycles terminate
	sl.visited[key] = true

	doc, err := sl.loadDocument(absLocation)
	if err != nil {
		return nil, err
	}
	schema, err := parseDocument(doc, absLocation, chameleonNS)
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", absLocation, err)
	}
	sl.Logger.Debug("loaded schema document", "location", absLocation, "namespace", schema.TargetNamespace)

	sl.loaded = append(sl.loaded, schema)
	sl.follow(schema)
	return schema, nil
}

func (sl *SchemaLoader) warn(location, message string, err error) {
	w := LoadWarning{Location: location, Message: message, Err: err}
	sl.warnings = append(sl.warnings, w)
	if err != nil {
		sl.Logger.Warn(message, "location", location, "error", err)
		return
	}
	sl.Logger.Warn(message, "location", location)
}

// resolveLocation resolves a location to an absolute path or URL
func (sl *SchemaLoader) resolveLocation(location string) (string, error) {
	if isRemote(location) {
		if !sl.AllowRemote {
			return "", fmt.Errorf("%w: %s", ErrRemoteDisabled, location)
		}
		u, err := url.Parse(location)
		if err != nil {
			return "", err
		}
		return u.String(), nil
	}

	if filepath.IsAbs(location) {
		return filepath.Clean(location), nil
	}
	if sl.BaseDir != "" {
		return filepath.Abs(filepath.Join(sl.BaseDir, location))
	}
	return filepath.Abs(location)
}

// resolveRelative resolves a relative location based on a base location
func (sl *SchemaLoader) resolveRelative(relative, base string) string {
	if filepath.IsAbs(relative) || isRemote(relative) {
		return relative
	}

	if isRemote(base) {
		baseURL, err := url.Parse(base)
		if err != nil {
			return relative
		}
		relURL, err := baseURL.Parse(relative)
		if err != nil {
			return relative
		}
		return relURL.String()
	}

	if base == "" {
		return relative
	}
	return filepath.Join(filepath.Dir(base), relative)
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// loadDocument loads an XML document from a location
func (sl *SchemaLoader) loadDocument(location string) (xmldom.Document, error) {
	var reader io.ReadCloser

	if isRemote(location) {
		resp, err := sl.HTTPClient.Get(location)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", location, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, location)
		}
		reader = resp.Body
	} else {
		file, err := os.Open(location)
		if err != nil {
			return nil, err
		}
		reader = file
	}
	defer reader.Close()

	doc, err := xmldom.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", location, err)
	}
	return doc, nil
}

// merge combines every loaded document. Components are merged first wins,
// in load order, so the root document's definitions take precedence.
func (sl *SchemaLoader) merge() *Schema {
	root := sl.loaded[0]
	combined := newSchema()
	combined.TargetNamespace = root.TargetNamespace
	combined.ElementFormDefault = root.ElementFormDefault
	combined.AttributeFormDefault = root.AttributeFormDefault
	combined.Location = root.Location
	combined.doc = root.doc

	for _, source := range sl.loaded {
		mergeComponents(source, combined)
	}
	combined.Warnings = sl.warnings
	combined.buildSubstitutionGroups()
	return combined
}

// mergeComponents merges schema components into target, keeping existing ones.
func mergeComponents(source, target *Schema) {
	for _, name := range source.elementOrder {
		if _, exists := target.ElementDecls[name]; !exists {
			target.ElementDecls[name] = source.ElementDecls[name]
			target.elementOrder = append(target.elementOrder, name)
		}
	}
	mergeMap(source.AttributeDecls, target.AttributeDecls)
	mergeMap(source.ComplexTypes, target.ComplexTypes)
	mergeMap(source.SimpleTypes, target.SimpleTypes)
	mergeMap(source.AttributeGroups, target.AttributeGroups)
	mergeMap(source.Groups, target.Groups)

	target.Imports = append(target.Imports, source.Imports...)
	target.Includes = append(target.Includes, source.Includes...)
	target.Namespaces.Merge(source.Namespaces)
	target.Features.merge(source.Features)
}

func mergeMap[V any](source, target map[QName]V) {
	for name, v := range source {
		if _, exists := target[name]; !exists {
			target[name] = v
		}
	}
}

// LoadSchemaFromBytes loads a schema from memory with import/include
// support. Relative locations resolve against baseDir.
func LoadSchemaFromBytes(content []byte, baseDir string) (*Schema, error) {
	doc, err := xmldom.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	loader := NewSchemaLoader(baseDir)
	location := ""
	if baseDir != "" {
		if abs, err := filepath.Abs(baseDir); err == nil {
			location = filepath.Join(abs, "schema.xsd")
		}
	}
	return loader.LoadDocument(doc, location)
}

// LoadSchemaWithImports is a convenience function
func LoadSchemaWithImports(location string) (*Schema, error) {
	loader := NewSchemaLoader(filepath.Dir(location))
	return loader.LoadSchemaWithImports(filepath.Base(location))
}

// LoadSchema checks the schema document at location against the XSD
// structural rules and then loads it with its imports and includes.
func LoadSchema(location string) (*Schema, error) {
	if problems := ValidateSchemaFile(location); len(problems) > 0 {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalidSchema, location, errors.Join(problems...))
	}
	return LoadSchemaWithImports(location)
}
