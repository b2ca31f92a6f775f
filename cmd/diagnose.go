package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprouthq/plantcare/internal/diagnosis"
	"github.com/sprouthq/plantcare/internal/models"
	"github.com/sprouthq/plantcare/internal/output"
	"github.com/sprouthq/plantcare/internal/plants"
)

var diagnoseProblem string

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <plant>",
	Short: "Start an interactive diagnosis session for a plant",
	Long: `Start a diagnostic conversation about a plant health problem.

The AI asks clarifying questions until it can name a finding and a
recommendation. Answer each question at the prompt; press Ctrl-D to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return diagnoseRun(cmd, args[0])
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume a paused diagnosis session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resumeRun(cmd, args[0])
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Cancel a pending diagnosis session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cancelRun(cmd, args[0])
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <plant>",
	Short: "View diagnosis history for a plant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyRun(cmd, args[0])
	},
}

func init() {
	diagnoseCmd.Flags().StringVarP(&diagnoseProblem, "problem", "p", "", "Initial problem description (required)")
	_ = diagnoseCmd.MarkFlagRequired("problem")

	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(historyCmd)
}

func diagnoseRun(cmd *cobra.Command, ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	llmClient, err := newLLMClient()
	if err != nil {
		return err
	}

	plant, err := plants.Resolve(cmd.Context(), s, ref, currentUser())
	if err != nil {
		return err
	}

	engine := diagnosis.NewEngine(s, llmClient)

	fmt.Fprintf(ui.Out, "Diagnosing: %s\n", output.Cyan(plant.Name))
	fmt.Fprintf(ui.Out, "Problem: %s\n\n", output.Yellow(diagnoseProblem))

	ui.VerboseLog("starting diagnosis for plant %s", plant.ID)
	out, err := engine.Start(cmd.Context(), plant.ID, diagnoseProblem, currentUser())
	if err != nil {
		return err
	}

	return askLoop(cmd, engine, out)
}

func resumeRun(cmd *cobra.Command, sessionID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	llmClient, err := newLLMClient()
	if err != nil {
		return err
	}

	engine := diagnosis.NewEngine(s, llmClient)

	sess, err := engine.Get(cmd.Context(), sessionID, currentUser())
	if err != nil {
		return err
	}
	if sess.Status != models.SessionStatusPendingUserInput {
		return fmt.Errorf("session %s is %s, nothing to resume", sessionID, sess.Status)
	}

	// Replay the last question so the user knows where the conversation stood.
	question := sess.Context.InitialPrompt
	for _, turn := range sess.Context.History {
		if turn.Role == "assistant" {
			question = turn.Message
		}
	}
	fmt.Fprintf(ui.Out, "Resuming diagnosis (problem: %s)\n\n", output.Yellow(sess.Context.InitialPrompt))

	return askLoop(cmd, engine, &diagnosis.Outcome{
		Kind:      diagnosis.OutcomeAsk,
		SessionID: sess.ID,
		Question:  question,
	})
}

func cancelRun(cmd *cobra.Command, sessionID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	// Cancelling never calls the model, so no client is needed.
	engine := diagnosis.NewEngine(s, nil)
	if err := engine.Cancel(cmd.Context(), sessionID, currentUser()); err != nil {
		return err
	}

	ui.Success("Session %s cancelled", sessionID)
	return nil
}

// askLoop runs the question/answer exchange until the engine concludes or
// stdin closes.
func askLoop(cmd *cobra.Command, engine *diagnosis.Engine, out *diagnosis.Outcome) error {
	scanner := bufio.NewScanner(os.Stdin)
	for out.Kind == diagnosis.OutcomeAsk {
		fmt.Fprintf(ui.Out, "%s %s\n", output.Cyan("AI:"), out.Question)
		fmt.Fprint(ui.Out, "You: ")

		if !scanner.Scan() {
			ui.Warning("Session paused. Pick it up again with 'plantcare resume %s'.", out.SessionID)
			return scanner.Err()
		}
		answer := strings.TrimSpace(scanner.Text())
		if answer == "" {
			continue
		}

		var err error
		out, err = engine.Update(cmd.Context(), out.SessionID, answer, currentUser())
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(ui.Out)
	ui.Success("Diagnosis complete")
	fmt.Fprintf(ui.Out, "\n%s\n  %s\n", output.Cyan("Finding:"), out.Finding)
	fmt.Fprintf(ui.Out, "\n%s\n  %s\n", output.Cyan("Recommendation:"), out.Recommendation)
	return nil
}

func historyRun(cmd *cobra.Command, ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	plant, err := plants.Resolve(cmd.Context(), s, ref, currentUser())
	if err != nil {
		return err
	}

	sessions, err := s.ListSessionsByPlant(cmd.Context(), plant.ID)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		ui.Info("No diagnosis history for %s.", plant.Name)
		return nil
	}

	fmt.Fprintf(ui.Out, "Diagnosis history for %s (%d sessions)\n\n", output.Cyan(plant.Name), len(sessions))

	for _, sess := range sessions {
		fmt.Fprintln(ui.Out, output.Cyan(sess.ID))
		fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("Status:"), output.StatusColor(string(sess.Status)))
		fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("Problem:"), sess.Context.InitialPrompt)
		fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("Created:"), sess.CreatedAt.Format("2006-01-02 15:04"))
		if sess.Status == models.SessionStatusCompleted && sess.Context.Result != nil {
			fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("Finding:"), sess.Context.Result.Finding)
		}
		fmt.Fprintln(ui.Out)
	}
	return nil
}
