package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:          "fapassist",
		Short:        "Diagnostic assistant for diesel particulate filter problems",
		SilenceUsage: true,
		Long: `fapassist answers French questions about FAP/DPF problems: it ranks a
plain-text knowledge base with TF-IDF, classifies the question and asks the
Mistral API for a reply once the conversation is past its first turn.`,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/fapassist/config.yaml if not provided)")
	root.AddCommand(newServeCmd(&cfgPath), newChatCmd(&cfgPath), newAnalyzeCmd(&cfgPath))
	return root
}
