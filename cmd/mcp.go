package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sprouthq/plantcare/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This allows Claude Code to query plantcare natively for your plant
collection, care schedules, and diagnosis history. Configure in
Claude Code with:

  {
    "mcpServers": {
      "plantcare": { "command": "plantcare", "args": ["mcp"] }
    }
  }

Available tools: plantcare_list_plants, plantcare_plant_status,
plantcare_diagnosis_history, plantcare_get_diagnosis,
plantcare_generate_care`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}

		// Care generation is optional: without a key the tool reports
		// the missing credential instead of blocking the read-only tools.
		var care mcp.ScheduleGenerator
		if llmClient, err := newLLMClient(); err == nil {
			care = llmClient
		}

		srv := mcp.NewServer(s, currentUser(), care)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
