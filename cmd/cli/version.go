package cli

import (
	"fmt"

	"github.com/flowbaker/triage/internal/version"
	"github.com/spf13/cobra"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()

			fmt.Printf("triage %s\n", version.GetShortVersion())
			fmt.Printf("   Go: %s (%s)\n", info.GoVersion, info.Platform)
			if info.BuildDate != "" {
				fmt.Printf("   Built: %s by %s\n", info.BuildDate, info.BuildUser)
			}

			return nil
		},
	}
}
