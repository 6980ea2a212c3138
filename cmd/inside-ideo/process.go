package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/niravbeni/inside-ideo/internal/extract"
)

var (
	processPrompt     string
	processSchemaFile string
)

var processCmd = &cobra.Command{
	Use:   "process <pdf> [pdf...]",
	Short: "Run the extraction and analysis pipeline over PDF files",
	Long: `Extract text, images and page renders from the given PDFs, describe and
OCR the accepted images, and produce a structured JSON analysis of the
combined content.

Examples:
  inside-ideo process deck.pdf
  inside-ideo process a.pdf b.pdf --prompt "Summarize the engagement" -o json
  inside-ideo process deck.pdf --schema custom-schema.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()

		var schema json.RawMessage
		if processSchemaFile != "" {
			data, err := os.ReadFile(processSchemaFile)
			if err != nil {
				return fmt.Errorf("read schema file: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("schema file %s is not valid JSON", processSchemaFile)
			}
			schema = data
		}

		docs := make([]extract.Document, 0, len(args))
		for _, path := range args {
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("cannot read %s: %w", path, err)
			}
			docs = append(docs, extract.Document{
				ID:   uuid.New().String(),
				Path: path,
				Name: filepath.Base(path),
			})
		}

		p := buildPipeline(mgr.Get(), logger)
		result, err := p.Run(cmd.Context(), docs, processPrompt, schema)
		if err != nil {
			return err
		}

		var out []byte
		if outputFormat == "json" {
			out, err = json.MarshalIndent(result, "", "  ")
		} else {
			out, err = yaml.Marshal(result)
		}
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processPrompt, "prompt", "", "analysis prompt (default: built-in case-study prompt)")
	processCmd.Flags().StringVar(&processSchemaFile, "schema", "", "path to a JSON schema for the analysis output")

	rootCmd.AddCommand(processCmd)
}
