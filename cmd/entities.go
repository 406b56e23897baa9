package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

// EntitiesCommand returns the knowledge-graph command group.
func EntitiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "entities",
		Usage: "Inspect the knowledge graph",
		Subcommands: []*cli.Command{
			{
				Name:  "search",
				Usage: "Search stored entities with a natural-language query",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Page size",
						Value: 20,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Page offset",
					},
				},
				ArgsUsage: "QUERY",
				Action:    withApp(runEntitySearch),
			},
		},
	}
}

func runEntitySearch(ctx context.Context, c *cli.Context, a *app) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: query")
	}
	query := strings.Join(c.Args().Slice(), " ")

	entities, total, err := a.kg.Search(ctx, query, c.Int("limit"), c.Int("offset"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Printf("%d entities match\n", total)
	for _, e := range entities {
		fmt.Printf("  %-24s %-32s confidence %.2f, used %d times\n",
			e.EntityType, e.EntityValue, e.Confidence, e.UsageCount)
	}
	return nil
}
