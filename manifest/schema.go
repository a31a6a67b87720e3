package manifest

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Structural schemas for the two supported generations. Validation runs
// before decoding so that decode errors can only be programming errors,
// never user input.
const generation2Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["manifest_version", "name", "version"],
  "properties": {
    "manifest_version": {"const": 2},
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "author": {"type": "string"},
    "background": {
      "type": "object",
      "required": ["scripts"],
      "properties": {
        "scripts": {"type": "array", "items": {"type": "string"}, "minItems": 1},
        "persistent": {"type": "boolean"}
      }
    },
    "browser_action": {"type": "object"},
    "page_action": {"type": "object"},
    "content_scripts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["matches"],
        "properties": {
          "matches": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "js": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "permissions": {"type": "array", "items": {"type": "string"}}
  }
}`

const generation3Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["manifest_version", "name", "version"],
  "properties": {
    "manifest_version": {"const": 3},
    "name": {"type": "string", "minLength": 1},
    "version": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "author": {"type": "string"},
    "background": {
      "type": "object",
      "required": ["service_worker"],
      "properties": {
        "service_worker": {"type": "string", "minLength": 1}
      }
    },
    "action": {"type": "object"},
    "page_action": {"type": "object"},
    "content_scripts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["matches"],
        "properties": {
          "matches": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "js": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "permissions": {"type": "array", "items": {"type": "string"}},
    "host_permissions": {"type": "array", "items": {"type": "string"}}
  }
}`

var (
	compiledGen2 = jsonschema.MustCompileString("generation2.json", generation2Schema)
	compiledGen3 = jsonschema.MustCompileString("generation3.json", generation3Schema)
)

func schemaFor(g Generation) *jsonschema.Schema {
	if g == Generation2 {
		return compiledGen2
	}
	return compiledGen3
}
