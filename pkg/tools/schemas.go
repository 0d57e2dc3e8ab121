package tools

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Action names exposed to the platform-facing tool layer.
const (
	ActionExecuteCommand = "execute_command"
	ActionReadOutput     = "read_output"
	ActionForceTerminate = "force_terminate"
	ActionListSessions   = "list_sessions"
)

// compileSchemas builds one parameter schema per action.
func compileSchemas() (map[string]*gojsonschema.Schema, error) {
	defs := map[string]map[string]interface{}{
		ActionExecuteCommand: objectSchema(
			map[string]interface{}{
				"command": map[string]interface{}{
					"type":        "string",
					"description": "The command to execute",
				},
				"timeout_ms": map[string]interface{}{
					"type":        "integer",
					"description": "Timeout in milliseconds for initial output collection",
				},
				"shell": map[string]interface{}{
					"type":        "string",
					"description": "Optional shell to use for execution",
				},
			},
			[]string{"command"},
		),
		ActionReadOutput: objectSchema(
			map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "integer",
					"description": "The session ID returned from execute_command",
				},
				"timeout_ms": map[string]interface{}{
					"type":        "integer",
					"description": "Timeout in milliseconds to wait for new output",
				},
			},
			[]string{"session_id"},
		),
		ActionForceTerminate: objectSchema(
			map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "integer",
					"description": "The session ID to terminate",
				},
			},
			[]string{"session_id"},
		),
		ActionListSessions: objectSchema(map[string]interface{}{}, nil),
	}

	schemas := make(map[string]*gojsonschema.Schema, len(defs))
	for action, def := range defs {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", action, err)
		}
		schemas[action] = schema
	}
	return schemas, nil
}

func objectSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// validateParams validates a parameter map against a compiled schema.
func validateParams(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if params == nil {
		params = map[string]interface{}{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}
	if !result.Valid() {
		errs := []string{}
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation errors: %v", errs)
	}
	return nil
}
