package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sprouthq/plantcare/internal/health"
	"github.com/sprouthq/plantcare/internal/models"
	"github.com/sprouthq/plantcare/internal/output"
	"github.com/sprouthq/plantcare/internal/plants"
	"github.com/sprouthq/plantcare/internal/storage"
)

var (
	addImage     string
	addLatitude  float64
	addLongitude float64
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new plant to your collection",
	Long:  "Identify a plant from a photo, generate an AI care schedule, and save it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return addRun(cmd)
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all plants in your collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRun(cmd)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <plant>",
	Short: "Show details for a specific plant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRun(cmd, args[0])
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <plant>",
	Short: "Delete a plant from your collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteRun(cmd, args[0])
	},
}

func init() {
	addCmd.Flags().StringVarP(&addImage, "image", "i", "", "Path to plant image file (required)")
	addCmd.Flags().Float64Var(&addLatitude, "latitude", 0, "Latitude for location-based identification")
	addCmd.Flags().Float64Var(&addLongitude, "longitude", 0, "Longitude for location-based identification")
	_ = addCmd.MarkFlagRequired("image")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
}

func addRun(cmd *cobra.Command) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	imageData, err := os.ReadFile(addImage)
	if err != nil {
		return fmt.Errorf("read image file: %w", err)
	}

	idClient, err := newPlantIDClient()
	if err != nil {
		return err
	}
	llmClient, err := newLLMClient()
	if err != nil {
		return err
	}
	images, err := storage.NewImageStore(viper.GetString("images_dir"))
	if err != nil {
		return err
	}

	svc := plants.NewService(s, idClient, llmClient, images)

	req := plants.CreateRequest{ImageData: imageData}
	if cmd.Flags().Changed("latitude") {
		req.Latitude = &addLatitude
	}
	if cmd.Flags().Changed("longitude") {
		req.Longitude = &addLongitude
	}

	ui.Info("Identifying plant...")
	plant, err := svc.Create(cmd.Context(), req, currentUser())
	if err != nil {
		return err
	}

	ui.Success("Plant added: %s", output.Cyan(plant.Name))
	fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("ID:"), plant.ID)
	printCareSchedule(&plant.CareSchedule)
	return nil
}

func listRun(cmd *cobra.Command) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	list, err := s.ListPlants(cmd.Context(), currentUser())
	if err != nil {
		return err
	}

	if len(list) == 0 {
		ui.Info("No plants in your collection yet. Use 'plantcare add --image <path>' to add one.")
		return nil
	}

	scorer := health.NewScorer()
	table := ui.Table([]string{"ID", "Name", "Score", "Added"})
	for _, p := range list {
		sessions, err := s.ListSessionsByPlant(cmd.Context(), p.ID)
		if err != nil {
			return err
		}
		score := scorer.Score(p, sessions)
		table.Append([]string{p.ID, p.Name, output.ScoreColor(score.Total), p.CreatedAt.Format("2006-01-02")})
	}
	return table.Render()
}

func showRun(cmd *cobra.Command, ref string) error {
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
	score := health.NewScorer().Score(plant, sessions)

	fmt.Fprintln(ui.Out, output.Green(plant.Name))
	fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("ID:"), plant.ID)
	fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("Added:"), plant.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(ui.Out, "  %s %s/100\n", output.Dim("Care score:"), output.ScoreColor(score.Total))
	if plant.ImagePath != "" {
		fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("Image:"), plant.ImagePath)
	}
	printCareSchedule(&plant.CareSchedule)
	return nil
}

func deleteRun(cmd *cobra.Command, ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	plant, err := plants.Resolve(cmd.Context(), s, ref, currentUser())
	if err != nil {
		return err
	}

	if err := s.DeletePlant(cmd.Context(), plant.ID, currentUser()); err != nil {
		return err
	}

	if plant.ImagePath != "" {
		images, err := storage.NewImageStore(viper.GetString("images_dir"))
		if err == nil {
			_ = images.DeleteImage(plant.ImagePath)
		}
	}

	ui.Success("Deleted %s", plant.Name)
	return nil
}

func printCareSchedule(cs *models.CareSchedule) {
	fmt.Fprintf(ui.Out, "\n%s\n", output.Cyan("Care Schedule:"))
	fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("Light:"), cs.Light)
	fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("Water:"), cs.Water)
	fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("Humidity:"), cs.Humidity)
	fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("Temperature:"), cs.Temperature)
	if cs.CareInstructions != "" {
		fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("Notes:"), cs.CareInstructions)
	}
}
