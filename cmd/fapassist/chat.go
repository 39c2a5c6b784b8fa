package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"fapassist/internal/service"
	"fapassist/internal/tui"
)

func newChatCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if !a.svc.HasLLM() {
				return fmt.Errorf("%w: set %s", service.ErrNoLLM, a.cfg.LLM.APIKeyEnv)
			}
			banner := fmt.Sprintf("Base de connaissances : %s", a.cfg.Knowledge.Path)
			_, err = tea.NewProgram(tui.New(a.svc, banner), tea.WithAltScreen()).Run()
			return err
		},
	}
}
