package logger

import "strings"

// Level names as rendered in log lines.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// knownOutcome lists handler outcomes; others are dropped.
var knownOutcome = []string{"ok", "fail", "cancelled"}

func normalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "":
		return LevelInfo
	case "warning":
		return LevelWarn
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	for _, o := range knownOutcome {
		if o == outcome {
			return o, true
		}
	}
	return "", false
}

// defaultKeyOrder puts correlation data first, then conversation fields,
// then transport and error details. Unlisted keys follow alphabetically.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"state",
	"next_state",
	"category",
	"kb",
	"to",
	"outcome",
	"duration_ms",
	"queue_len",
	"queue_wait_ms",
	"storage",
	"mode",
	"listen",
	"public_url",
	"host",
	"port",
	"path",
	"err",
	"err_code",
	"error_kind",
	"cause",
	"attempts",
}
