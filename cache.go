package xsdgraph

import (
	"path/filepath"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/golang/groupcache/singleflight"
)

// DefaultCacheSize bounds the schemas a SchemaCache keeps.
const DefaultCacheSize = 64

// SchemaCache keeps loaded schemas by location. Concurrent requests for the
// same location share one load; failed loads are not cached. Cached
// schemas are treated as immutable.
type SchemaCache struct {
	BasePath string // Base path for resolving relative schema locations

	// Load reads a schema with its imports. Defaults to LoadSchemaWithImports.
	Load func(location string) (*Schema, error)

	mu      sync.Mutex
	schemas *lru.Cache
	loads   singleflight.Group
}

// NewSchemaCache creates a new schema cache holding at most size schemas.
// A size of zero means DefaultCacheSize.
func NewSchemaCache(basePath string, size int) *SchemaCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &SchemaCache{
		BasePath: basePath,
		Load:     LoadSchemaWithImports,
		schemas:  lru.New(size),
	}
}

// Get retrieves a schema from cache or loads it if not present
func (sc *SchemaCache) Get(location string) (*Schema, error) {
	path := sc.resolvePath(location)

	sc.mu.Lock()
	cached, ok := sc.schemas.Get(path)
	sc.mu.Unlock()
	if ok {
		return cached.(*Schema), nil
	}

	v, err := sc.loads.Do(path, func() (any, error) {
		schema, err := sc.Load(path)
		if err != nil {
			return nil, err
		}
		sc.mu.Lock()
		sc.schemas.Add(path, schema)
		sc.mu.Unlock()
		return schema, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Schema), nil
}

// Remove removes a specific schema from cache
func (sc *SchemaCache) Remove(location string) {
	path := sc.resolvePath(location)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.schemas.Remove(path)
}

// Clear removes all cached schemas
func (sc *SchemaCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.schemas.Clear()
}

func (sc *SchemaCache) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.schemas.Len()
}

// resolvePath resolves a schema location to an absolute path
func (sc *SchemaCache) resolvePath(location string) string {
	if isRemote(location) || filepath.IsAbs(location) {
		return location
	}
	if sc.BasePath != "" {
		location = filepath.Join(sc.BasePath, location)
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return location
	}
	return abs
}
