package schemas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["person"],
	"properties": {
		"person": {
			"type": "object",
			"required": ["name"],
			"properties": {
				"name": {"type": "string"},
				"age": {"type": "integer"}
			}
		}
	}
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("broken", []byte(`{"type": 12}`))
	require.Error(t, err)

	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "broken", loadErr.Path)
}

func TestSchema_Validate(t *testing.T) {
	s, err := Compile("person", []byte(personSchema))
	require.NoError(t, err)

	assert.NoError(t, s.Validate([]byte(`{"person": {"name": "Ada", "age": 36}}`)))

	err = s.Validate([]byte(`{"person": {"age": "old"}}`))
	require.Error(t, err)
	validationErr, ok := err.(*ValidationError)
	require.True(t, ok, "error should be ValidationError type")
	assert.Equal(t, "person", validationErr.Schema)
	assert.GreaterOrEqual(t, len(validationErr.Errors), 2, "missing name and wrong age type")
	for _, fe := range validationErr.Errors {
		assert.NotEmpty(t, fe.Field)
		assert.NotEmpty(t, fe.Message)
	}
}

func TestSchema_Validate_MalformedDocument(t *testing.T) {
	s, err := Compile("person", []byte(personSchema))
	require.NoError(t, err)

	err = s.Validate([]byte("{ invalid json }"))
	require.Error(t, err)
	_, isValidation := err.(*ValidationError)
	assert.False(t, isValidation)
}

func TestValidateValue(t *testing.T) {
	s, err := Compile("person", []byte(personSchema))
	require.NoError(t, err)

	type person struct {
		Name string `json:"name"`
	}
	assert.NoError(t, ValidateValue(map[string]any{"person": person{Name: "Ada"}}, s))
	assert.Error(t, ValidateValue(map[string]any{}, s))
}

func TestValidateJSON_Files(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.json", personSchema)
	validPath := writeFile(t, dir, "valid.json", `{"person": {"name": "Grace"}}`)
	invalidPath := writeFile(t, dir, "invalid.json", `{}`)

	assert.NoError(t, ValidateJSON(schemaPath, validPath))

	err := ValidateJSON(schemaPath, invalidPath)
	require.Error(t, err)
	_, ok := err.(*ValidationError)
	assert.True(t, ok)

	err = ValidateJSON(filepath.Join(dir, "missing_schema.json"), validPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = ValidateJSON(schemaPath, filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Errors: []FieldError{
			{Field: "name", Message: "is required"},
			{Field: "age", Message: "must be a number"},
		},
	}

	errorMsg := err.Error()
	assert.Contains(t, errorMsg, "validation failed")
	assert.Contains(t, errorMsg, "1. name")
	assert.Contains(t, errorMsg, "2. age")

	err.Schema = "quality-scoring"
	assert.Contains(t, err.Error(), "validation against quality-scoring failed")
}
