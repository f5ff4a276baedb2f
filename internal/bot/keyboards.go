package bot

import (
	"github.com/m3rciful/feedbackbot/core/telegram/keyboard"
	"github.com/m3rciful/feedbackbot/internal/flow"
	"github.com/m3rciful/feedbackbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

// MainMenu is the category picker shown to users, two buttons per row.
func MainMenu() *tele.ReplyMarkup {
	labels := make([]string, 0, len(session.Categories))
	for _, c := range session.Categories {
		labels = append(labels, string(c))
	}
	return keyboard.ReplyButtons(keyboard.ChunkLabels(labels, 2)...)
}

// AdminMenu is the admin panel keyboard.
func AdminMenu() *tele.ReplyMarkup {
	return keyboard.ReplyButtons(
		[]string{flow.ButtonStats, flow.ButtonBroadcast},
		[]string{flow.ButtonUsers, flow.ButtonFindUser},
		[]string{flow.ButtonMainMenu},
	)
}

// markup maps a keyboard choice to reply markup; nil leaves the client keyboard alone.
func markup(kb flow.Keyboard) *tele.ReplyMarkup {
	switch kb {
	case flow.KeyboardMain:
		return MainMenu()
	case flow.KeyboardAdmin:
		return AdminMenu()
	case flow.KeyboardRemove:
		return keyboard.RemoveKeyboard()
	default:
		return nil
	}
}
