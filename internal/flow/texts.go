package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/feedbackbot/core/telegram/format"
	"github.com/m3rciful/feedbackbot/internal/journal"
	"github.com/m3rciful/feedbackbot/internal/session"
	"github.com/m3rciful/feedbackbot/internal/stats"
)

// Fixed replies.
const (
	TextNoPermission     = "❌ You do not have admin rights!"
	TextNothingToCancel  = "Nothing to cancel 🤷"
	TextCancelled        = "❌ Action cancelled.\n\nYou can start again with /start"
	TextChooseCategory   = "Please choose a category using the buttons below:"
	TextInvalidUserID    = "❌ Invalid user ID format!"
	TextInvalidLookupID  = "❌ Invalid ID format! Enter a number:"
	TextSaveFailed       = "❌ Failed to save your message. Please try again later."
	TextMissingCategory  = "❌ Something went wrong. Start again with /start"
	TextStatsUnavailable = "❌ Statistics are unavailable right now."
)

const demoNote = "Demo data. A real bot would show actual records here."

var (
	textAdminPanel = format.Bold("👑 Admin panel") + "\n\nChoose an action:"
	textMainMenu   = format.Bold("📋 Main menu") + "\n\nChoose a category:"
	textLookup     = format.Bold("🔍 Find user") + "\n\nEnter a user ID to get information:"
	textBroadcast  = format.Bold("📢 Broadcast") + "\n\nSend the message to broadcast to all users:"
)

func welcomeText(admin bool) string {
	var b strings.Builder
	b.WriteString(format.Bold("👋 Welcome!"))
	b.WriteString("\n\nI will save your message under a category.\n\n")
	b.WriteString(format.Bold("📋 Available commands:"))
	b.WriteString("\n")
	for _, c := range Commands() {
		if c.AdminOnly && !admin {
			continue
		}
		fmt.Fprintf(&b, "/%s - %s\n", c.Name, strings.ToLower(c.Description[:1])+c.Description[1:])
	}
	return b.String()
}

func categoryChosenText(c session.Category) string {
	return fmt.Sprintf("📝 You chose: %s\n\nNow write your message:\n\n%s",
		format.Bold(string(c)), format.Italic("Use /cancel to cancel"))
}

func savedText(c session.Category, text string) string {
	return fmt.Sprintf("%s\n\n%s %s\n%s\n%s\n\nThank you for reaching out! 🙏\n\nPress /start to send a new message",
		format.Bold("✅ Message saved!"),
		format.Bold("Category:"), string(c),
		format.Bold("Your message:"), format.Escape(text))
}

func statsText(us stats.UserStats, counts map[session.Category]int) string {
	var b strings.Builder
	b.WriteString(format.Bold("📊 Bot statistics:"))
	fmt.Fprintf(&b, "\n\n👥 Total users: %d\n💬 Messages today: %d\n📈 Active today: %d\n🔄 Online now: %d\n\n",
		us.Total, us.MessagesToday, us.ActiveToday, us.OnlineNow)
	b.WriteString(format.Bold("📁 Messages by category:"))
	b.WriteString("\n")
	for _, c := range session.Categories {
		fmt.Fprintf(&b, "%s %s: %d\n", categoryIcon(c), c, counts[c])
	}
	fmt.Fprintf(&b, "\n📈 Total messages: %d", stats.Total(counts))
	return b.String()
}

func categoryIcon(c session.Category) string {
	switch c {
	case session.CategoryWork:
		return "💼"
	case session.CategoryStudy:
		return "🎓"
	default:
		return "📦"
	}
}

// usersText renders user aggregates; hint differs between the command and the button.
func usersText(us stats.UserStats, hint string) string {
	return fmt.Sprintf("%s\n\n👤 Total users: %d\n🚀 Active in 24h: %d\n💬 Messages today: %d\n🟢 Online now: %d\n\n%s",
		format.Bold("👥 User statistics:"),
		us.Total, us.ActiveToday, us.MessagesToday, us.OnlineNow, hint)
}

var (
	usersCommandHint = format.Italic("For details use /userinfo [ID]")
	usersButtonHint  = "To look up a specific user press '" + ButtonFindUser + "'"
)

func userInfoText(rec stats.UserRecord, withNote bool) string {
	s := fmt.Sprintf("%s\n\n🆔 ID: %d\n👤 Name: %s\n📅 Registered: %s\n💬 Messages: %d\n🚀 Status: %s\n👑 Role: %s",
		format.Bold("👤 User information:"),
		rec.ID, format.Escape(rec.Name), rec.RegisteredAt, rec.Messages, rec.Status, rec.Role)
	if withNote && rec.Demo {
		s += "\n\n" + format.Italic(demoNote)
	}
	return s
}

func broadcastText(text string, recipients int) string {
	return fmt.Sprintf("%s\n\n📝 Message: %s\n👥 Recipients: %d\n\n%s",
		format.Bold("✅ Broadcast started!"),
		format.Escape(text), recipients,
		format.Italic("Demo mode. A real bot would deliver this message to every user."))
}

// ActionText is the operator notification for one user action.
func ActionText(userID int64, action string, at time.Time) string {
	return fmt.Sprintf("📝 Action: %s\n👤 User ID: %d\n⏰ Time: %s",
		format.Escape(action), userID, at.Format(journal.TimestampLayout))
}
