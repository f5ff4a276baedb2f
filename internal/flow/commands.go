package flow

import (
	"strings"
	"unicode"
)

// Command names handled by the router.
const (
	CmdStart     = "start"
	CmdHelp      = "help"
	CmdCancel    = "cancel"
	CmdAdmin     = "admin"
	CmdStats     = "stats"
	CmdUsers     = "users"
	CmdBroadcast = "broadcast"
	CmdUserInfo  = "userinfo"
)

// Admin menu button labels.
const (
	ButtonStats     = "📊 Statistics"
	ButtonBroadcast = "📢 Broadcast"
	ButtonUsers     = "👥 Users"
	ButtonFindUser  = "🔍 Find user"
	ButtonMainMenu  = "🔙 Main menu"
)

// CommandInfo describes a command for the client-side command menu.
type CommandInfo struct {
	Name        string
	Description string
	AdminOnly   bool
}

// Commands lists every command in menu order.
func Commands() []CommandInfo {
	return []CommandInfo{
		{Name: CmdStart, Description: "Start"},
		{Name: CmdHelp, Description: "Help"},
		{Name: CmdCancel, Description: "Cancel the current action"},
		{Name: CmdAdmin, Description: "Admin panel", AdminOnly: true},
		{Name: CmdStats, Description: "Statistics", AdminOnly: true},
		{Name: CmdUsers, Description: "Users", AdminOnly: true},
		{Name: CmdBroadcast, Description: "Broadcast a message", AdminOnly: true},
		{Name: CmdUserInfo, Description: "User information", AdminOnly: true},
	}
}

// command is a parsed "/name[@bot] args" message.
type command struct {
	Name string
	Bot  string
	Args string
}

// parseCommand splits a slash command. Names are lowercased; args keep
// their inner formatting and lose surrounding whitespace.
func parseCommand(text string) (command, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '/' {
		return command{}, false
	}
	head, args := text[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, args = head[:i], head[i:]
	}
	name, bot, _ := strings.Cut(head, "@")
	if name == "" {
		return command{}, false
	}
	return command{
		Name: strings.ToLower(name),
		Bot:  bot,
		Args: strings.TrimSpace(args),
	}, true
}

// addressedTo reports whether a "/cmd@bot" form targets this bot.
func (c command) addressedTo(username string) bool {
	if c.Bot == "" || username == "" {
		return true
	}
	return strings.EqualFold(c.Bot, strings.TrimPrefix(username, "@"))
}

// firstField returns the first whitespace-separated token.
func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
