package store

import (
	"encoding/json"
	"sync"
)

// SchemaCache holds parsed form schemas keyed by form type and version so
// repeated renders of the same form do not re-read the bundle. The bundle
// manager invalidates it wholesale after a bundle update.
type SchemaCache struct {
	mu      sync.RWMutex
	schemas map[string]json.RawMessage
}

func NewSchemaCache() *SchemaCache {
	return &SchemaCache{schemas: make(map[string]json.RawMessage)}
}

func key(formType string, formVersion string) string {
	return formType + "@" + formVersion
}

func (c *SchemaCache) Get(formType string, formVersion string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[key(formType, formVersion)]
	return s, ok
}

func (c *SchemaCache) Put(formType string, formVersion string, schema json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas[key(formType, formVersion)] = schema
}

// Invalidate drops every cached schema.
func (c *SchemaCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas = make(map[string]json.RawMessage)
}

func (c *SchemaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.schemas)
}
