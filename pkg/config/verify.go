package config

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchema string

// VerifyAgainstEmbeddedSchema checks the loaded config against the embedded
// JSON schema and the cross-field rules the schema can't express.
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	var schema map[string]interface{}
	if err := json.Unmarshal([]byte(embeddedSchema), &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	// round-trip through JSON so tag-level mistakes surface at startup
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var asMap map[string]interface{}
	if err := json.Unmarshal(data, &asMap); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	if err := checkRules(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func checkRules(cfg *Config) error {
	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if cfg.Server.Timeout == 0 {
		return fmt.Errorf("server.timeout is required")
	}

	if cfg.Ingest.Timeout == 0 {
		return fmt.Errorf("ingest.timeout is required")
	}
	if cfg.Ingest.MaxConcurrent == 0 {
		return fmt.Errorf("ingest.max_concurrent is required")
	}
	if cfg.Ingest.MinTextLength < 0 {
		return fmt.Errorf("ingest.min_text_length must be non-negative")
	}
	if cfg.Email.Endpoint != "" && len(cfg.Email.Lists) == 0 {
		return fmt.Errorf("email.lists is required when email.endpoint is set")
	}
	return nil
}

// GenerateSchema reflects the JSON schema for the Config struct.
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&Config{}), nil
}
