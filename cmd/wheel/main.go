// wheel is the interactive TUI client for wheeld.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/app"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "wheel: load config: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(app.New(cfg.SocketPath), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "wheel: %v\n", err)
		os.Exit(1)
	}
}
