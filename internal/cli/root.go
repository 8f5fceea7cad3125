package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ragchat/config"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Retrieval-augmented conversational QA over a fixed knowledge base",
	Long: `ragchat answers questions grounded in a prebuilt vector index while
tracking multi-turn dialogue: follow-up questions are condensed into
standalone queries, relevant passages are retrieved, and the answer cites
its sources.

Example usage:
  ragchat index ./docs           # Build the vector index artifact
  ragchat serve                  # Serve the HTTP chat API
  ragchat chat                   # Chat interactively in the terminal
  ragchat models                 # List available chat models`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Credentials come from the environment; a .env file is a
		// convenience, not a requirement.
		_ = godotenv.Load()

		var err error
		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ragchat.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
