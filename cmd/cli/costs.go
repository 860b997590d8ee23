package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/flowbaker/triage/pkg/domain"
	redisledger "github.com/flowbaker/triage/pkg/ledger/redis"
	slacknotify "github.com/flowbaker/triage/pkg/notify/slack"
	"github.com/flowbaker/triage/pkg/reports"
	"github.com/spf13/cobra"
)

func NewCostsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Show the classification spend of a day",
		Long:  `Read the daily totals kept in the Redis cost ledger. Requires REDIS_ADDR.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCosts(cmd)
		},
	}

	cmd.Flags().String("day", "", "UTC day as YYYY-MM-DD, defaults to today")
	cmd.Flags().Bool("post", false, "Also post the summary to the configured Slack channel")

	return cmd
}

func runCosts(cmd *cobra.Command) error {
	ctx := context.Background()

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if config.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is not set, no cost ledger configured")
	}

	day := time.Now().UTC()
	if value, _ := cmd.Flags().GetString("day"); value != "" {
		day, err = time.Parse(time.DateOnly, value)
		if err != nil {
			return fmt.Errorf("invalid day %q: %w", value, err)
		}
	}

	ledger, err := redisledger.New(redisledger.LedgerDeps{Context: ctx}, redisledger.Opts{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	if err != nil {
		return err
	}
	defer ledger.Close()

	summary, err := ledger.DailySummary(ctx, day)
	if err != nil {
		return err
	}

	fmt.Printf("📊 Classification costs for %s\n", summary.Day)
	fmt.Printf("   Tickets: %d\n", summary.Tickets)
	fmt.Printf("   Tokens: %d in / %d out\n", summary.InputTokens, summary.OutputTokens)
	fmt.Printf("   Total cost: $%.6f\n", summary.TotalCost)

	printCounts("Categories", summary.Categories)
	printCounts("Teams", summary.Teams)

	if post, _ := cmd.Flags().GetBool("post"); post {
		if !config.SlackEnabled() {
			return fmt.Errorf("SLACK_BOT_TOKEN and SLACK_CHANNEL_ID are required to post the summary")
		}

		notifier, err := slacknotify.New(slacknotify.Opts{
			Token:      config.SlackBotToken,
			ChannelID:  config.SlackChannelID,
			MinUrgency: domain.TicketUrgency(config.SlackMinUrgency),
		})
		if err != nil {
			return err
		}

		if err := notifier.PostReport(ctx, reports.ReportFromSummary(summary)); err != nil {
			return err
		}

		fmt.Println("✅ Summary posted to Slack")
	}

	return nil
}

func printCounts(title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}

	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Printf("   %s:\n", title)
	for _, key := range keys {
		fmt.Printf("     %s: %d\n", key, counts[key])
	}
}
