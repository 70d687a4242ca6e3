package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	envFile           string
	questionnaireFile string
)

var rootCmd = &cobra.Command{
	Use:   "riskquiz",
	Short: "What is My Risk Number? questionnaire",
	Long: `Collects a financial profile, scores ten risk-tolerance questions into a
Risk Number from 1 to 99 and captures contact details for follow-up.

Run without arguments to start the interactive terminal quiz.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Run the quiz in a full-screen terminal UI",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run the quiz as a line-by-line prompt on stdin/stdout",
	Args:  cobra.NoArgs,
	RunE:  runConsole,
}

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Serve the quiz through a Telegram bot (long polling)",
	Args:  cobra.NoArgs,
	RunE:  runTelegram,
}

var lookupCmd = &cobra.Command{
	Use:   "lookup [profile-id]",
	Short: "Show the stored assessment for a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup,
}

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Print the questionnaire with weights and tier table",
	Args:  cobra.NoArgs,
	RunE:  runQuestions,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVarP(&questionnaireFile, "questionnaire", "q", "", "questionnaire YAML (overrides QUIZ_QUESTIONNAIRE)")

	rootCmd.AddCommand(tuiCmd, consoleCmd, telegramCmd, lookupCmd, questionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
