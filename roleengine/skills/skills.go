// Package skills loads skill manifests and matches them against a task's
// touched file paths so roleengine can include only relevant skill bodies
// in a prompt (spec.md §4.4 "optional matched skills"). Manifest
// documents are validated against a JSON Schema before loading, grounded
// on the teacher's registry.validatePayloadJSONAgainstSchema
// (santhosh-tekuri/jsonschema/v6 compile-and-validate shape); path
// matching uses github.com/bmatcuk/doublestar/v4, grounded on the pack's
// ast-indexer/paths.go and fsbackend.go glob usage.
package skills

import (
	"encoding/json"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"goa.design/swarmassistant/roleengine"
)

// manifestSchema is the JSON Schema every skill manifest document must
// satisfy: a name, a non-empty body, and a list of doublestar glob
// patterns describing which touched paths make the skill applicable.
const manifestSchema = `{
  "type": "object",
  "required": ["name", "body", "applies"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "body": {"type": "string", "minLength": 1},
    "applies": {
      "type": "array",
      "items": {"type": "string", "minLength": 1},
      "minItems": 1
    }
  }
}`

// Manifest is a single skill document: a name, its body text (included
// verbatim in a prompt when matched), and the glob patterns that make it
// applicable to a task's touched paths.
type Manifest struct {
	Name    string   `json:"name"`
	Body    string   `json:"body"`
	Applies []string `json:"applies"`
}

// Library holds every loaded, schema-validated Manifest.
type Library struct {
	schema    *jsonschema.Schema
	manifests []Manifest
}

// NewLibrary compiles the manifest schema once, ready for LoadManifest
// calls.
func NewLibrary() (*Library, error) {
	var schemaDoc any
	if err := json.Unmarshal([]byte(manifestSchema), &schemaDoc); err != nil {
		return nil, fmt.Errorf("skills: unmarshal manifest schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("manifest.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("skills: add schema resource: %w", err)
	}
	schema, err := c.Compile("manifest.json")
	if err != nil {
		return nil, fmt.Errorf("skills: compile manifest schema: %w", err)
	}
	return &Library{schema: schema}, nil
}

// LoadManifest validates raw against the manifest schema and, on success,
// adds it to the library.
func (l *Library) LoadManifest(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("skills: unmarshal manifest: %w", err)
	}
	if err := l.schema.Validate(doc); err != nil {
		return fmt.Errorf("skills: manifest validation: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("skills: decode manifest: %w", err)
	}
	l.manifests = append(l.manifests, m)
	return nil
}

// Match returns every loaded skill whose Applies patterns match at least
// one of touchedPaths, as roleengine.Skill values ready for prompt
// inclusion.
func (l *Library) Match(touchedPaths []string) []roleengine.Skill {
	var out []roleengine.Skill
	for _, m := range l.manifests {
		if manifestMatches(m, touchedPaths) {
			out = append(out, roleengine.Skill{Name: m.Name, Body: m.Body})
		}
	}
	return out
}

func manifestMatches(m Manifest, touchedPaths []string) bool {
	for _, pattern := range m.Applies {
		for _, path := range touchedPaths {
			if ok, err := doublestar.Match(pattern, path); err == nil && ok {
				return true
			}
		}
	}
	return false
}
