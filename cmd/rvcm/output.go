package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func addOutputFlag(cmd *cobra.Command, format *string) {
	cmd.Flags().StringVarP(format, "output", "o", outputText, "output format: text, json or yaml")
}

// render writes data in the requested export format, or calls text for the
// human-readable form.
func render(w io.Writer, format string, data any, text func() error) error {
	switch format {
	case outputText, "":
		return text()
	case outputJSON:
		encoded, err := json.MarshalIndent(data, "", "    ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(encoded))
		return err
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format: %s (supported: text, json, yaml)", format)
	}
}
