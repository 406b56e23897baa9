package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"
)

// HealthCommand returns the document health command.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Score a document's readiness and list its conflicts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "Also check cross-document conflicts and relationships for this user",
			},
		},
		ArgsUsage: "DOCUMENT_ID",
		Action:    withApp(runHealth),
	}
}

func runHealth(ctx context.Context, c *cli.Context, a *app) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: document id")
	}
	documentID := c.Args().Get(0)

	health, err := a.engine.HealthReport(ctx, documentID)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Printf("Document %s: %s (%d/100)\n", documentID, health.Scores.Status, health.Scores.Overall)
	fmt.Printf("  completeness: %d\n", health.Scores.Completeness)
	fmt.Printf("  consistency:  %d\n", health.Scores.Consistency)
	fmt.Printf("  risk:         %d\n", health.Scores.Risk)

	for _, conflict := range health.Conflicts {
		fmt.Printf("  [%s] %s", conflict.Severity, conflict.Description)
		if conflict.Suggestion != "" {
			fmt.Printf(" (suggestion: %s)", conflict.Suggestion)
		}
		fmt.Println()
	}
	for _, issue := range health.Issues {
		fmt.Printf("  issue: %s\n", issue)
	}
	for _, rec := range health.Recommendations {
		fmt.Printf("  recommendation: %s\n", rec)
	}

	userID := c.String("user")
	if userID == "" {
		return nil
	}

	cross, err := a.engine.CheckAcrossDocuments(ctx, userID)
	if err != nil {
		return fmt.Errorf("cross-document check failed: %w", err)
	}
	fmt.Printf("\nCross-document conflicts for %s: %d\n", userID, cross.ConflictCount)
	for _, conflict := range cross.Conflicts {
		fmt.Printf("  [%s] %s\n", conflict.Severity, conflict.Description)
	}

	relationships, err := a.engine.DetectRelationships(ctx, userID)
	if err != nil {
		return fmt.Errorf("relationship detection failed: %w", err)
	}
	for _, rel := range relationships.Relationships {
		fmt.Printf("  %s <-> %s: %s (strength %.2f)\n",
			rel.SourceDocumentID, rel.RelatedDocumentID, rel.Type, rel.Strength)
	}
	for _, s := range relationships.Suggestions {
		marker := ""
		if s.AutoApply {
			marker = " [auto-apply]"
		}
		fmt.Printf("  propagate %s=%q to %s (%.2f)%s\n",
			s.FieldName, s.Value, s.DocumentID, s.Confidence, marker)
	}
	return nil
}
