package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/sprouthq/plantcare/internal/output"
)

var careCmd = &cobra.Command{
	Use:   "care <plant-name>",
	Short: "Generate a care schedule for a plant without adding it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return careRun(cmd, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(careCmd)
}

func careRun(cmd *cobra.Command, name string) error {
	llmClient, err := newLLMClient()
	if err != nil {
		return err
	}

	ui.Info("Generating care schedule for %s...", output.Cyan(name))

	schedule, err := llmClient.GenerateCareSchedule(cmd.Context(), name)
	if err != nil {
		return err
	}

	printCareSchedule(schedule)
	return nil
}
