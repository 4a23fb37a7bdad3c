package build

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peachmeow/peachmeow/pkg/config"
	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewBuildCmd() *cobra.Command {
	ua := types.Options{}
	buildCmd := &cobra.Command{
		Use:     "build",
		Short:   "Build, sign and publish patched app packages",
		Example: "peachmeow build --source MorpheApp/morphe-patches --dry-run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return Build(ctx, &ua, config.LoadSettings(viper.GetViper()))
		},
	}
	flags := buildCmd.Flags()
	flags.StringVar(&ua.Source, "source", "", "Only build apps using this patch source")
	flags.BoolVar(&ua.DryRun, "dry-run", false, "Print the build plan without building or publishing")
	flags.DurationVar(&ua.Timeout, "timeout", 2*time.Hour, "Timeout for the whole run")

	return buildCmd
}
