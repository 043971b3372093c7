package utils

import "github.com/invopop/jsonschema"

// GenerateSchema reflects a tool-input struct into a JSON schema the
// model can be given. References are inlined so the schema is
// self-contained.
func GenerateSchema[T any]() (interface{}, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return schema, nil
}
