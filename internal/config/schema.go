// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

package config

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/bazaarcore/identity/internal/errkind"
)

var (
	schemaMu    sync.Mutex
	schemaCache *jschema.Schema
)

// SchemaID is the $id of the generated schema.
const SchemaID = "https://bazaarcore.dev/schemas/identity.schema.json"

// GenerateSchema generates a JSON Schema from the File struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&File{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Identity Service Configuration"
	schema.Description = "Schema for identity.yaml configuration files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.In("config").Wrapf(err, "marshal schema")
	}
	return data, nil
}

// ValidateDocument checks a YAML configuration document against the schema
// and the supported version range.
func ValidateDocument(data []byte) error {
	errb := oops.Code(errkind.CodeConfigInvalid).In("config")
	if len(strings.TrimSpace(string(data))) == 0 {
		return errb.Wrapf(errkind.ErrConfig, "config document is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errb.Wrapf(errkind.ErrConfig, "invalid YAML: %v", err)
	}
	jsonData := convertToJSONTypes(doc)

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(jsonData); err != nil {
		return errb.Wrapf(errkind.ErrConfig, "schema validation failed: %v", err)
	}

	root, _ := jsonData.(map[string]any)
	version, _ := root["version"].(string)
	return CheckVersion(version)
}

// CheckVersion reports whether version satisfies SupportedVersions.
func CheckVersion(version string) error {
	errb := oops.Code(errkind.CodeConfigInvalid).In("config").With("version", version)
	v, err := semver.NewVersion(version)
	if err != nil {
		return errb.Wrapf(errkind.ErrConfig, "config version is not semver: %v", err)
	}
	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return errb.Wrapf(errkind.ErrConfig, "bad version constraint: %v", err)
	}
	if !constraint.Check(v) {
		return errb.With("supported", SupportedVersions).
			Wrapf(errkind.ErrConfig, "config version %s is not supported", v)
	}
	return nil
}

func compiledSchema() (*jschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if schemaCache != nil {
		return schemaCache, nil
	}

	schemaBytes, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	var schemaData any
	if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, oops.In("config").Wrapf(err, "parse schema JSON")
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("identity.schema.json", schemaData); err != nil {
		return nil, oops.In("config").Wrapf(err, "add schema resource")
	}
	sch, err := c.Compile("identity.schema.json")
	if err != nil {
		return nil, oops.In("config").Wrapf(err, "compile schema")
	}

	schemaCache = sch
	return sch, nil
}

// convertToJSONTypes converts YAML-decoded values to the types the validator
// expects. Map keys that YAML decoded as numbers, such as area codes, become
// strings.
func convertToJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[k] = convertToJSONTypes(v)
		}
		return result
	case map[any]any:
		result := make(map[string]any, len(val))
		for k, v := range val {
			result[keyString(k)] = convertToJSONTypes(v)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v := range val {
			result[i] = convertToJSONTypes(v)
		}
		return result
	case string, int, int64, float64, bool, nil:
		return val
	default:
		if b, err := json.Marshal(val); err == nil {
			var result any
			if err := json.Unmarshal(b, &result); err == nil {
				return result
			}
		}
		return val
	}
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	b, err := json.Marshal(k)
	if err != nil {
		return ""
	}
	return strings.Trim(string(b), `"`)
}
