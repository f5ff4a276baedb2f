package bot

import (
	tg "github.com/m3rciful/feedbackbot/core/telegram"
	"github.com/m3rciful/feedbackbot/internal/flow"
)

// CommandRegistry builds the client-side command menu.
func CommandRegistry() (*tg.Registry, error) {
	reg := tg.NewRegistry()
	for _, c := range flow.Commands() {
		if err := reg.RegisterCommand("/"+c.Name, tg.Command{
			Description: c.Description,
			AdminOnly:   c.AdminOnly,
		}); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
