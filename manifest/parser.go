package manifest

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"
)

// Parser parses raw package-description bytes into a normalized Manifest.
// Parsing is pure: no I/O, no capability resolution.
type Parser interface {
	Parse(data []byte) (*Manifest, error)
}

// JSONParser implements Parser for JSON package descriptions.
type JSONParser struct{}

// NewJSONParser creates a new JSONParser.
func NewJSONParser() Parser {
	return &JSONParser{}
}

// Parse validates and normalizes JSON manifest bytes.
func (p *JSONParser) Parse(data []byte) (*Manifest, error) {
	return decode(data)
}

// YAMLParser implements Parser for YAML package descriptions.
// YAML is converted to JSON and shares the JSON validation path, so both
// formats enforce identical structure.
type YAMLParser struct{}

// NewYAMLParser creates a new YAMLParser.
func NewYAMLParser() Parser {
	return &YAMLParser{}
}

// Parse validates and normalizes YAML manifest bytes.
func (p *YAMLParser) Parse(data []byte) (*Manifest, error) {
	j, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, &MalformedSchemaError{Detail: "not valid YAML: " + err.Error()}
	}
	return decode(j)
}

// rawManifest is the superset of both generations' wire fields. The
// compatibility table in normalize translates whichever generation-specific
// fields are present into the shared variant set.
type rawManifest struct {
	ManifestVersion int    `json:"manifest_version"`
	Name            string `json:"name"`
	Version         string `json:"version"`
	Description     string `json:"description"`
	Author          string `json:"author"`

	Background *struct {
		Scripts       []string `json:"scripts"`
		ServiceWorker string   `json:"service_worker"`
	} `json:"background"`

	BrowserAction json.RawMessage `json:"browser_action"`
	Action        json.RawMessage `json:"action"`
	PageAction    json.RawMessage `json:"page_action"`

	ContentScripts []struct {
		Matches []string `json:"matches"`
		JS      []string `json:"js"`
	} `json:"content_scripts"`

	Permissions     []string `json:"permissions"`
	HostPermissions []string `json:"host_permissions"`
}

func decode(data []byte) (*Manifest, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedSchemaError{Detail: "not valid JSON: " + err.Error()}
	}

	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, &MalformedSchemaError{Detail: "top-level value is not an object"}
	}

	gen, err := detectGeneration(obj)
	if err != nil {
		return nil, err
	}

	if err := schemaFor(gen).Validate(doc); err != nil {
		return nil, &MalformedSchemaError{Detail: err.Error()}
	}

	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedSchemaError{Detail: err.Error()}
	}

	return normalize(&raw, gen)
}

func detectGeneration(obj map[string]interface{}) (Generation, error) {
	v, ok := obj["manifest_version"]
	if !ok {
		return 0, &MalformedSchemaError{Detail: "manifest_version is required"}
	}
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, &MalformedSchemaError{Detail: "manifest_version must be an integer"}
	}
	switch int(f) {
	case 2:
		return Generation2, nil
	case 3:
		return Generation3, nil
	default:
		return 0, &UnsupportedGenerationError{Version: int(f)}
	}
}

// normalize applies the fixed generation compatibility table and the
// structural invariants shared by both generations.
func normalize(raw *rawManifest, gen Generation) (*Manifest, error) {
	version, err := semver.NewVersion(raw.Version)
	if err != nil {
		return nil, &MalformedSchemaError{Detail: "version is not a semantic version: " + raw.Version}
	}

	m := &Manifest{
		Name:        raw.Name,
		Version:     version,
		Generation:  gen,
		Description: raw.Description,
		Author:      raw.Author,
	}

	if raw.Background != nil {
		m.EntryPoints = append(m.EntryPoints, EntryPoint{Kind: Background})
	}
	if len(raw.BrowserAction) > 0 || len(raw.Action) > 0 {
		m.EntryPoints = append(m.EntryPoints, EntryPoint{Kind: BrowserAction})
	}
	if len(raw.PageAction) > 0 {
		m.EntryPoints = append(m.EntryPoints, EntryPoint{Kind: PageAction})
	}

	patternSet := make(map[string]MatchPattern)

	for _, cs := range raw.ContentScripts {
		entry := EntryPoint{Kind: ContentScript}
		for _, match := range cs.Matches {
			pat, err := ParsePattern(match)
			if err != nil {
				return nil, err
			}
			entry.Patterns = append(entry.Patterns, pat)
			patternSet[pat.String()] = pat
		}
		m.EntryPoints = append(m.EntryPoints, entry)
	}

	tokenSet := make(map[string]struct{})
	for _, perm := range raw.Permissions {
		if looksLikePattern(perm) {
			// Generation2 mixed host patterns into the permissions array;
			// Generation3 moved them to host_permissions.
			if gen == Generation3 {
				return nil, &MalformedSchemaError{Detail: "host patterns belong in host_permissions: " + perm}
			}
			pat, err := ParsePattern(perm)
			if err != nil {
				return nil, err
			}
			patternSet[pat.String()] = pat
			continue
		}
		tokenSet[perm] = struct{}{}
	}

	if gen == Generation2 && len(raw.HostPermissions) > 0 {
		// The inverse of the Generation3 check above: host_permissions did
		// not exist before Generation3, so its presence marks a manifest
		// mixing the two layouts.
		return nil, &MalformedSchemaError{Detail: "host_permissions requires manifest_version 3"}
	}
	for _, hp := range raw.HostPermissions {
		pat, err := ParsePattern(hp)
		if err != nil {
			return nil, err
		}
		patternSet[pat.String()] = pat
	}

	m.Permissions = make([]string, 0, len(tokenSet))
	for tok := range tokenSet {
		m.Permissions = append(m.Permissions, tok)
	}
	sort.Strings(m.Permissions)

	keys := make([]string, 0, len(patternSet))
	for k := range patternSet {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m.HostPatterns = make([]MatchPattern, 0, len(keys))
	for _, k := range keys {
		m.HostPatterns = append(m.HostPatterns, patternSet[k])
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func looksLikePattern(s string) bool {
	return strings.Contains(s, "://")
}
