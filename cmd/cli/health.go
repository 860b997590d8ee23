package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func NewHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the backing services",
		Long:  `Connect to the configured vector store and cost ledger and report whether they answer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd)
		},
	}

	return cmd
}

func runHealth(cmd *cobra.Command) error {
	ctx := context.Background()

	container, err := buildContainer(ctx, cmd)
	if err != nil {
		fmt.Println("❌ Triage is not healthy")
		return err
	}
	defer container.Close()

	report := container.Health(ctx)

	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	for _, name := range names {
		if err := report[name]; err != nil {
			healthy = false
			fmt.Printf("❌ %s: %v\n", name, err)
			continue
		}

		fmt.Printf("✅ %s: connected\n", name)
	}

	if !healthy {
		return fmt.Errorf("one or more services are unhealthy")
	}

	return nil
}
