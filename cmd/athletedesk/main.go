// Command athletedesk runs the athlete governance help desk: an HTTP
// service answering athletes' questions about team selection,
// eligibility, SafeSport, anti-doping, and dispute resolution, plus
// maintenance subcommands for checkpoints and document ingestion.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var settingsPath string

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	rootCmd := &cobra.Command{
		Use:   "athletedesk",
		Short: "Governance help desk for US Olympic and Paralympic athletes",
	}
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "settings.yaml", "path to the YAML settings file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(ingestCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
