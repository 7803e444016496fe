package frontend

import "strings"

// Frontend/SendAction vocabulary
const (
	ActionPlay         = "PLAY"
	ActionPause        = "PAUSE"
	ActionNext         = "JUMPFFWD"
	ActionPrevious     = "JUMPRWND"
	ActionVolumeUp     = "VOLUMEUP"
	ActionVolumeDown   = "VOLUMEDOWN"
	ActionSetVolume    = "SETVOLUME"
	ActionMute         = "MUTE"
	ActionSeekAbsolute = "SEEKABSOLUTE"
	ActionEscape       = "ESCAPE"
)

// TurnOffAction is one of the frontend's configurable system event slots
type TurnOffAction string

// TurnOffNone disables turn off
const TurnOffNone TurnOffAction = "none"

// TurnOffOptions lists every accepted turn off setting
var TurnOffOptions = []TurnOffAction{
	"SYSEVENT01", "SYSEVENT02", "SYSEVENT03", "SYSEVENT04", "SYSEVENT05",
	"SYSEVENT06", "SYSEVENT07", "SYSEVENT08", "SYSEVENT09", "SYSEVENT10",
	TurnOffNone,
}

// ParseTurnOff validates a turn off setting. Unknown values map to none.
func ParseTurnOff(s string) (TurnOffAction, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TurnOffNone, true
	}
	for _, opt := range TurnOffOptions {
		if strings.EqualFold(string(opt), s) {
			return opt, true
		}
	}
	return TurnOffNone, false
}
