package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mahendra/kerani/internal/config"
	"github.com/mahendra/kerani/internal/logger"
	"github.com/mahendra/kerani/pkg/launcher"
	"github.com/mahendra/kerani/pkg/session"
)

var (
	runShell     string
	runTimeoutMs int
)

var runCmd = &cobra.Command{
	Use:   "run [command]",
	Short: "Run a single command and stream its output",
	Long: `Starts one command through the session registry, prints output as it
arrives and exits when the command finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runShell, "shell", "", "shell to execute the command with")
	runCmd.Flags().IntVar(&runTimeoutMs, "timeout-ms", 2000, "initial output window in milliseconds")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	appLogger, err := logger.New(logger.Config{Level: level, Console: false})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Close()

	registry := session.New(
		launcher.NewShellLauncher(cfg.Sessions.Shell),
		session.Config{
			ArchiveCapacity: cfg.Sessions.ArchiveCapacity,
			TerminateGrace:  cfg.Sessions.TerminateGrace(),
		},
		nil,
	)

	res := registry.Start(cmd.Context(), args[0], runShell, time.Duration(runTimeoutMs)*time.Millisecond)
	if res.Err != "" {
		return fmt.Errorf("%s", res.Err)
	}

	cmd.Print(res.InitialOutput)

	for registry.IsActive(res.SessionID) {
		more := registry.Read(res.SessionID, time.Second)
		if more.TimeoutReached {
			continue
		}
		// The read that observes completion may carry a synthetic status line
		// instead of command output; keep stdout clean of it.
		if strings.HasPrefix(more.Output, "Process completed with exit code ") {
			break
		}
		cmd.Print(more.Output)
	}

	return nil
}
