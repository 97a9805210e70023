package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	pkgconfig "github.com/goran-ethernal/IndexGraph/pkg/config"
)

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		FieldNameTag:              "yaml",
		AllowAdditionalProperties: false,
	}

	schema := reflector.Reflect(&pkgconfig.Config{})
	schema.Title = "IndexGraph configuration"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config schema: %w", err)
	}

	return data, nil
}
