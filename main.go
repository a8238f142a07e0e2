package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var (
	settingsFile string
	exportFile   string
	serveAddr    string
)

var rootCmd = &cobra.Command{
	Use:   "wpmdx",
	Short: "Migrate a WordPress export to MDX content",
	Long: `Converts a WordPress XML export into MDX documents with frontmatter,
downloading referenced media into the local media directory. Re-running
the migration is safe: documents are rewritten deterministically and
existing media files are not fetched again.`,
	Run: func(cmd *cobra.Command, args []string) {
		settings := mustLoadSettings()
		if exportFile != "" {
			settings.ExportFile = exportFile
		}

		processor := NewProcessor(settings)
		summary, err := processor.Run(cmd.Context())
		if err != nil {
			log.Fatalf("Migration failed: %v", err)
		}

		fmt.Printf("\nCreated %d MDX files (%d assets fetched, %d skipped, %d failed)\n",
			summary.Written, summary.AssetsFetched, summary.AssetsSkipped, summary.AssetsFailed)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <slug>",
	Short: "Print a post as plain Markdown",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		exporter := NewExporter(mustLoadSettings())
		doc, err := exporter.ExportMarkdown(args[0])
		if err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		fmt.Print(doc)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve posts as plain Markdown over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		exporter := NewExporter(mustLoadSettings())
		log.Printf("Serving Markdown on %s", serveAddr)
		if err := http.ListenAndServe(serveAddr, exporter.Handler()); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	},
}

func mustLoadSettings() *Settings {
	if err := ensureConfigExists(); err != nil {
		log.Fatalf("Failed to prepare config: %v", err)
	}

	path := settingsFile
	if path == "" {
		path = getConfigPath("settings.yaml")
	}

	settings, err := LoadSettings(path)
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	return settings
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "Path to settings.yaml")
	rootCmd.Flags().StringVar(&exportFile, "export-file", "", "Path to the WordPress XML export")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
