package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/swarmcoord/internal/config"
	"github.com/Iron-Ham/swarmcoord/internal/event"
	"github.com/Iron-Ham/swarmcoord/internal/logging"
	"github.com/Iron-Ham/swarmcoord/internal/monitor"
	"github.com/Iron-Ham/swarmcoord/internal/registry"
	"github.com/Iron-Ham/swarmcoord/internal/report"
	"github.com/Iron-Ham/swarmcoord/internal/swarm"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run <swarm-file>",
	Short: "Run a coordination session from a swarm file",
	Long: `Run drives a full coordination session: collect the plans declared in
the swarm file, detect and resolve conflicts, register claims batch by
batch, execute each agent's command, and verify observed file changes
against the claim registry. The final report is printed on every exit,
fatal or not.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the final report as JSON")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sf, err := LoadSwarmFile(args[0])
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	sessionDir := cfg.Session.ResolveDir(cwd)

	logger := logging.Nop()
	if cfg.Logging.Enabled {
		logger, err = logging.New(sessionDir, cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer logger.Close()
	}

	bus := event.NewBus()
	reg, err := registry.New(sessionDir, bus)
	if err != nil {
		return fmt.Errorf("open claim registry: %w", err)
	}

	opts := []swarm.Option{
		swarm.WithChoiceFunc(cfg.Resolution.ChoiceFunc()),
		swarm.WithCollectTimeout(cfg.Session.PlanTimeout()),
		swarm.WithStaleThreshold(cfg.Session.StaleClaimThreshold(), cfg.Session.StaleCheckInterval()),
		swarm.WithRunner(newShellRunner(sf)),
	}
	if cfg.Session.Remediation != "" {
		mode, err := swarm.ParseRemediation(cfg.Session.Remediation)
		if err != nil {
			return err
		}
		opts = append(opts, swarm.WithRemediation(mode))
	}

	if cfg.Monitor.Watch {
		tracker, err := monitor.NewTracker(logger, cfg.Monitor.Ignore...)
		if err != nil {
			return fmt.Errorf("start file tracker: %w", err)
		}
		defer tracker.Stop()
		for _, a := range sf.Agents {
			if a.Worktree == "" {
				continue
			}
			if err := tracker.AddAgent(a.ID, a.Worktree); err != nil {
				return fmt.Errorf("watch worktree for %s: %w", a.ID, err)
			}
		}
		tracker.Start()
		opts = append(opts, swarm.WithTracker(tracker))
	}

	orch := swarm.New(sf.Task, sf.AgentIDs(), reg, bus, logger, opts...)
	for _, a := range sf.Agents {
		if err := orch.Collector().Submit(a.ToPlan()); err != nil {
			// A rejected plan drops the agent, not the session.
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := orch.Run(ctx)

	if runJSON || cfg.Report.Format == "json" {
		if err := report.WriteJSON(os.Stdout, result); err != nil {
			return err
		}
	} else {
		if err := report.NewRenderer().Write(os.Stdout, result); err != nil {
			return err
		}
	}
	return runErr
}

// newShellRunner executes each agent's declared command through the shell
// in its worktree. Agents without a command are no-ops that immediately
// report completion, which makes a swarm file without commands a dry run
// of the claim schedule.
func newShellRunner(sf *SwarmFile) swarm.AgentRunner {
	specs := make(map[string]AgentSpec, len(sf.Agents))
	for _, a := range sf.Agents {
		specs[a.ID] = a
	}

	return swarm.RunnerFunc(func(ctx context.Context, a swarm.Assignment) (swarm.Result, error) {
		spec := specs[a.AgentID]
		if spec.Command == "" {
			return swarm.Result{Summary: "no command configured"}, nil
		}

		c := exec.CommandContext(ctx, "sh", "-c", spec.Command)
		if spec.Worktree != "" {
			c.Dir = spec.Worktree
		}
		c.Env = append(os.Environ(),
			"SWARM_AGENT_ID="+a.AgentID,
			"SWARM_BATCH="+strconv.Itoa(a.Batch),
			"SWARM_TASK="+a.Task,
			"SWARM_FILES="+strings.Join(a.Files, ":"),
		)
		c.Stdout = os.Stderr
		c.Stderr = os.Stderr

		if err := c.Run(); err != nil {
			return swarm.Result{}, fmt.Errorf("agent command: %w", err)
		}
		return swarm.Result{Summary: "command completed"}, nil
	})
}
