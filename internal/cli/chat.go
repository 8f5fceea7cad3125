package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragchat/internal/tui"
	"ragchat/internal/usecase"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively in the terminal",
	Long: `Open an interactive chat session in the terminal against the local
vector index. Ctrl+R restarts the conversation, Ctrl+C quits.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	chat, retriever, err := buildStack(cfg, GetRootDir())
	if err != nil {
		return err
	}

	engine := usecase.NewEngine(engineOptions(cfg, chat, retriever))

	m := tui.New(engine)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("chat session failed: %w", err)
	}
	return nil
}
