// Package schema exposes the JSON shapes of the host's durable records so
// external tooling (storage migrations, audit pipelines) can validate what
// the host writes.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/veilbrowser/extension-host/policy"
	"github.com/veilbrowser/extension-host/registry"
)

// Catalog holds named JSON Schemas for the record shapes the host persists
// or emits. Schemas are generated once at registration and served as strings.
type Catalog struct {
	mu        sync.RWMutex
	schemas   map[string]string
	reflector *jsonschema.Reflector
}

// Option configures a Catalog.
type Option func(*Catalog)

// NewCatalog creates an empty catalog.
func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{
		schemas:   make(map[string]string),
		reflector: new(jsonschema.Reflector),
	}
	c.reflector.ExpandedStruct = true

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default returns a catalog preloaded with every record shape the host
// writes: the registry's durable entry record and the policy audit record.
func Default() *Catalog {
	c := NewCatalog()
	// Registration over fresh kinds cannot collide.
	_ = c.Register("registry_record", registry.Record{})
	_ = c.Register("audit_record", policy.AuditRecord{})
	return c
}

// Register generates and stores the schema for a record shape. The model is
// reflected with invopop/jsonschema; registering the same kind twice is an
// error so generated shapes stay stable for the life of the catalog.
func (c *Catalog) Register(kind string, model any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.schemas[kind]; exists {
		return fmt.Errorf("schema kind already registered: %s", kind)
	}

	s := c.reflector.Reflect(model)
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema for %s: %w", kind, err)
	}

	c.schemas[kind] = string(b)
	return nil
}

// Schema returns the JSON Schema for a registered kind.
func (c *Catalog) Schema(kind string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[kind]
	return s, ok
}

// Kinds returns the registered kind names, sorted.
func (c *Catalog) Kinds() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	kinds := make([]string, 0, len(c.schemas))
	for k := range c.schemas {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
