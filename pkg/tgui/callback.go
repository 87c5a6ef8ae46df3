package tgui

import (
	"strings"
)

// Data formats inline callback data as "plugin:action:payload".
// Payload is kept as-is (no escaping). Keep the full string within
// Telegram's 64-byte callback_data limit.
func Data(plugin, action, payload string) string {
	plugin = strings.TrimSpace(plugin)
	action = strings.TrimSpace(action)
	if payload == "" {
		return plugin + ":" + action
	}
	return plugin + ":" + action + ":" + payload
}

// Split is the inverse of Data: it parses "plugin:action:payload" back into
// its parts. Missing parts come back empty; the payload may itself contain
// colons, only the first two separators count.
func Split(data string) (plugin, action, payload string) {
	parts := strings.SplitN(data, ":", 3)
	switch len(parts) {
	case 3:
		return parts[0], parts[1], parts[2]
	case 2:
		return parts[0], parts[1], ""
	default:
		return data, "", ""
	}
}
