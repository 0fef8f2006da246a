package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tiangong-ai/greenlit/internal/presentation"
	"github.com/tiangong-ai/greenlit/internal/pubsub"
	"github.com/tiangong-ai/greenlit/internal/workflow"
)

var (
	workflowTopic    string
	workflowLocation string
	workflowVars     []string
	workflowRunsDir  string
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Run multi-stage research profiles",
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		profiles, err := loadProfiles()
		if err != nil {
			return err
		}
		return e.formatter.Profiles(presentation.FromProfiles(profiles))
	},
}

var workflowRunCmd = &cobra.Command{
	Use:   "run <profile>",
	Short: "Execute a profile against the research services",
	Long: `Executes the profile's stages strictly in order. Stage failures
degrade according to each stage's fallback policy; the exit code reflects
the terminal run status: 0 for completed (and dry runs), 2 for partially
completed, 3 for aborted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		profiles, err := loadProfiles()
		if err != nil {
			return err
		}
		profile, ok := profiles[args[0]]
		if !ok {
			return fmt.Errorf("unknown profile %q, try \"greenlit workflow list\"", args[0])
		}

		vars := map[string]string{}
		if workflowLocation != "" {
			vars["location"] = workflowLocation
		}
		for _, kv := range workflowVars {
			k, v, found := strings.Cut(kv, "=")
			if !found || k == "" {
				return fmt.Errorf("invalid --var %q, want key=value", kv)
			}
			vars[k] = v
		}

		runsDir := workflowRunsDir
		if runsDir == "" {
			runsDir = filepath.Join(cfg.CacheDir, "runs")
		}
		runner := workflow.NewRunner(e.services, runsDir, e.tracing)
		defer runner.Close()

		// Stream progress to stderr so JSON output on stdout stays clean.
		events := runner.Events().Subscribe(cmd.Context())
		progressDone := make(chan struct{})
		go func() {
			defer close(progressDone)
			for evt := range events {
				printProgress(cmd.ErrOrStderr(), evt)
			}
		}()

		art, runErr := runner.Run(cmd.Context(), workflow.Request{
			Profile: profile,
			Topic:   workflowTopic,
			Vars:    vars,
		})
		runner.Close()
		<-progressDone
		if art == nil {
			// Pre-flight configuration failure, nothing ran.
			return runErr
		}
		if ferr := e.formatter.Artifacts(art); ferr != nil {
			return ferr
		}
		if runErr != nil {
			return &ExitError{Code: 3, Err: runErr}
		}
		if art.Status == workflow.RunPartiallyCompleted {
			return &ExitError{Code: 2}
		}
		return nil
	},
}

func printProgress(w io.Writer, evt pubsub.Event[workflow.CheckpointRecord]) {
	rec := evt.Payload
	switch evt.Type {
	case pubsub.StageStarted:
		fmt.Fprintf(w, "-> %s (%s)\n", rec.Stage, rec.Capability)
	case pubsub.StageFinished:
		line := fmt.Sprintf("   %s: %s", rec.Stage, rec.Status)
		if rec.Cached {
			line += " (cached)"
		}
		if rec.Error != "" {
			line += ": " + rec.Error
		}
		if rec.Remediation != "" {
			line += " (hint: " + rec.Remediation + ")"
		}
		fmt.Fprintln(w, line)
	case pubsub.RunFinished:
		fmt.Fprintf(w, "run %s: %s\n", rec.RunID, rec.Status)
	}
}

func init() {
	workflowRunCmd.Flags().StringVar(&workflowTopic, "topic", "", "research topic (required)")
	workflowRunCmd.Flags().StringVar(&workflowLocation, "location", "", "grid location for carbon stages")
	workflowRunCmd.Flags().StringArrayVar(&workflowVars, "var", nil, "extra template variable key=value (repeatable)")
	workflowRunCmd.Flags().StringVar(&workflowRunsDir, "runs-dir", "", "directory run artifacts are written under (default <cache-dir>/runs)")
	_ = workflowRunCmd.MarkFlagRequired("topic")

	workflowCmd.AddCommand(workflowListCmd)
	workflowCmd.AddCommand(workflowRunCmd)
	rootCmd.AddCommand(workflowCmd)
}
