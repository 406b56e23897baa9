package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/docufill/internal/conversation"
)

// FillCommand returns the interactive fill command.
func FillCommand() *cli.Command {
	return &cli.Command{
		Name:  "fill",
		Usage: "Fill a document's placeholders one question at a time",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "User the conversation belongs to",
				Value:   "default",
			},
			&cli.BoolFlag{
				Name:  "validate",
				Usage: "Validate and format the filled values afterwards",
			},
		},
		ArgsUsage: "DOCUMENT_ID",
		Action:    withApp(runFill),
	}
}

func runFill(ctx context.Context, c *cli.Context, a *app) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: document id")
	}
	documentID := c.Args().Get(0)

	prompt, err := a.machine.Start(ctx, documentID, c.String("user"))
	if err != nil {
		return fmt.Errorf("could not start filling: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	for !prompt.Completed {
		printPrompt(prompt)

		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read answer: %w", err)
		}
		answer := strings.TrimSpace(line)
		if answer == "" {
			fmt.Println("A value is required.")
			continue
		}
		if answer == "/done" {
			if err := a.machine.Complete(ctx, prompt.ConversationID); err != nil {
				return err
			}
			fmt.Println("Conversation closed.")
			return nil
		}

		prompt, err = a.machine.SendMessage(ctx, prompt.ConversationID, answer)
		if err != nil {
			return fmt.Errorf("could not record answer: %w", err)
		}
	}

	fmt.Println("All fields filled. Document completed.")

	if c.Bool("validate") {
		flagged, err := a.pipeline.ValidateDocument(ctx, documentID)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		if len(flagged) == 0 {
			fmt.Println("All values validated.")
		} else {
			fmt.Printf("%d values were flagged for review:\n", len(flagged))
			for _, ph := range flagged {
				fmt.Printf("  - %s: %q\n", ph.FieldName, *ph.FilledValue)
			}
		}
	}
	return nil
}

func printPrompt(prompt *conversation.Prompt) {
	fmt.Printf("\n[%d remaining] %s\n", prompt.FieldsRemaining, prompt.Question)
	if prompt.Example != "" {
		fmt.Printf("  e.g. %s\n", prompt.Example)
	}
	for i, s := range prompt.Suggestions {
		fmt.Printf("  suggestion %d: %s (%.2f)\n", i+1, s.Value, s.Confidence)
	}
	fmt.Print("> ")
}
