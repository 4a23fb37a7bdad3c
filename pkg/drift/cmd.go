package drift

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peachmeow/peachmeow/pkg/config"
	"github.com/peachmeow/peachmeow/pkg/github"
	"github.com/peachmeow/peachmeow/pkg/gitrepo"
	"github.com/peachmeow/peachmeow/pkg/ledger"
	"github.com/peachmeow/peachmeow/pkg/resolve"
	"github.com/peachmeow/peachmeow/pkg/types"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewResolveCmd() *cobra.Command {
	var schedule string
	resolveCmd := &cobra.Command{
		Use:     "resolve",
		Short:   "Trigger builds for patch sources with new upstream releases",
		Example: "peachmeow resolve --schedule '*/30 * * * *'",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			s := config.LoadSettings(viper.GetViper())
			if s.Repository == "" {
				return &types.MissingCredentialError{Name: config.EnvRepository}
			}
			if schedule == "" {
				return RunOnce(ctx, s)
			}
			return RunScheduled(ctx, s, schedule)
		},
	}
	flags := resolveCmd.Flags()
	flags.StringVar(&schedule, "schedule", "", "Cron expression; run a pass on this schedule until interrupted")
	return resolveCmd
}

// RunOnce performs a single drift pass under the ledger lock.
func RunOnce(ctx context.Context, s config.Settings) error {
	lock, err := ledger.Acquire(ctx, s.VersionsFile)
	if err != nil {
		return err
	}
	defer lock.Release() //nolint:errcheck

	cfg, err := config.Load(s.ConfigFile)
	if err != nil {
		return err
	}
	repo, err := gitrepo.Open(s.WorkDir, s.Token)
	if err != nil {
		return err
	}
	client := github.NewClient(s.Token)

	d := &Detector{
		Resolver:   resolve.New(client),
		Repo:       repo,
		LedgerPath: s.VersionsFile,
		Trigger: &WorkflowTrigger{
			Dispatcher: client,
			Repository: s.Repository,
			Workflow:   s.Workflow,
			Ref:        s.Ref,
		},
	}
	_, err = d.Run(ctx, cfg)
	return err
}

// RunScheduled runs a pass now and then on every tick of schedule until ctx
// ends. Failed passes are logged and retried on the next tick.
func RunScheduled(ctx context.Context, s config.Settings, schedule string) error {
	c := cron.New()
	pass := func() {
		if err := RunOnce(ctx, s); err != nil {
			log.Errorf("Resolver pass failed: %v", err)
		}
	}
	if _, err := c.AddFunc(schedule, pass); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	pass()
	c.Start()
	log.Infof("Resolver scheduled: %s", schedule)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
