package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/process-pipelines/internal/schemas"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a JSON document against a phase output schema",
	Long: `Validates a JSON document against one of the embedded phase output schemas
(--schema <task>) or against a schema file (--schema-file).`,
	RunE: runValidate,
}

var (
	validateInput      string
	validateSchema     string
	validateSchemaFile string
)

func init() {
	validateCmd.Flags().StringVarP(&validateInput, "in", "i", "", "Path to the JSON document (required)")
	validateCmd.Flags().StringVarP(&validateSchema, "schema", "s", "", "Embedded schema name: "+strings.Join(schemas.Names(), ", "))
	validateCmd.Flags().StringVar(&validateSchemaFile, "schema-file", "", "Path to a JSON Schema file")

	if err := validateCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}
	validateCmd.MarkFlagsMutuallyExclusive("schema", "schema-file")
	validateCmd.MarkFlagsOneRequired("schema", "schema-file")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	var err error
	name := validateSchemaFile
	if validateSchema != "" {
		name = validateSchema
		var schema *schemas.Schema
		schema, err = schemas.Load(validateSchema)
		if err != nil {
			return err
		}
		err = schemas.ValidateFile(schema, validateInput)
	} else {
		err = schemas.ValidateJSON(validateSchemaFile, validateInput)
	}

	if err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			return fmt.Errorf("validation failed: %w", err)
		}
		return fmt.Errorf("failed to validate %s: %w", validateInput, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid against %s\n", validateInput, name)
	return nil
}
