package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "intake",
		Short: "Conversational intake for vehicle complaints and feedback",
		Long: `intake collects vehicle safety complaints and general feedback
through a conversation, validates every field and stores the finished record.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("env-file", "", "Load environment variables from this file")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if envFile == "" {
			return nil
		}
		if err := godotenv.Overload(envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newChatCmd(),
		newSchemaCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "intake version %s\n", version)
		},
	}
}
