package main

import (
	"text2phenotype.com/notex/entities"
	"text2phenotype.com/notex/pipeline"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

type cliOptions struct {
	notePath   string
	mode       string
	dataClass  string
	model      string
	outputPath string
	enrich     bool
}

type runner interface {
	Run(ctx context.Context, request pipeline.Request) (interface{}, error)
	DefaultModel() string
}

var modes = map[string]pipeline.Operation{
	"entities": pipeline.OperationEntities,
	"uscdi":    pipeline.OperationUSCDI,
	"single":   pipeline.OperationUSCDISingle,
	"class":    pipeline.OperationUSCDIClass,
}

func runCLI(ctx context.Context, svc runner, opts cliOptions, out io.Writer) error {
	operation, ok := modes[opts.mode]
	if !ok {
		return fmt.Errorf("unknown mode %q, use entities, uscdi, single or class", opts.mode)
	}
	note, err := os.ReadFile(opts.notePath)
	if err != nil {
		return fmt.Errorf("reading input file: %w", err)
	}
	model := opts.model
	if model == "" {
		model = svc.DefaultModel()
	}
	fmt.Fprintln(out, "Extracting medical data...")
	fmt.Fprintf(out, "Using model: %s\n\n", model)

	result, err := svc.Run(ctx, pipeline.Request{
		Tid:       "cli",
		Text:      string(note),
		Model:     model,
		Operation: operation,
		DataClass: opts.dataClass,
		Enrich:    opts.enrich,
	})
	if err != nil {
		return fmt.Errorf("during extraction: %w", err)
	}
	fmt.Fprintln(out, pipeline.Format(result))

	if opts.outputPath != "" {
		b, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		if err = os.WriteFile(opts.outputPath, b, 0o644); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
		fmt.Fprintf(out, "\n\nJSON output saved to: %s\n", opts.outputPath)
	}
	if ents, ok := result.(entities.Result); ok {
		fmt.Fprintf(out, "\n\nTotal entities extracted: %d\n", ents.Total())
	}
	return nil
}
