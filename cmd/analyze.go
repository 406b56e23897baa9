package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

// AnalyzeCommand returns the analyze command.
func AnalyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Analyze a document: classify it, find placeholders, harvest entities",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "User the document belongs to",
				Value:   "default",
			},
		},
		ArgsUsage: "FILE",
		Action:    withApp(runAnalyze),
	}
}

func runAnalyze(ctx context.Context, c *cli.Context, a *app) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: document file")
	}

	analysis, err := a.pipeline.Analyze(ctx, c.Args().Get(0), c.String("user"))
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	doc := analysis.Document
	fmt.Printf("Document %s (%s)\n", doc.ID, doc.FileName)
	if doc.DocumentType != nil {
		fmt.Printf("  type:       %s (confidence %.2f)\n", *doc.DocumentType, *doc.ClassificationConfidence)
	}
	fmt.Printf("  entities:   %d stored\n", analysis.EntityCount)
	fmt.Printf("  fields:     %d to fill\n", len(analysis.Placeholders))

	for _, ph := range analysis.Placeholders {
		line := fmt.Sprintf("  %2d. %s (%s)", ph.Position, ph.FieldName, ph.FieldType)
		if ph.SuggestedValue != nil {
			line += fmt.Sprintf("  suggestion: %q (%.2f)", *ph.SuggestedValue, *ph.SuggestionConfidence)
		}
		fmt.Println(line)
	}

	fmt.Printf("\nRun `docufill fill %s` to start filling.\n", doc.ID)
	return nil
}
