package config

import "github.com/sweeney/squeeze-sensor/internal/logic"

// Action names a user action bound to a gesture.
type Action string

const (
	ActionNone          Action = "none"
	ActionCamera        Action = "camera"
	ActionFlashlight    Action = "flashlight"
	ActionBrowser       Action = "browser"
	ActionDialer        Action = "dialer"
	ActionEmail         Action = "email"
	ActionMessages      Action = "messages"
	ActionPlayPause     Action = "play_pause"
	ActionPreviousTrack Action = "previous_track"
	ActionNextTrack     Action = "next_track"
	ActionVolumeUp      Action = "volume_up"
	ActionVolumeDown    Action = "volume_down"
	ActionScreenshot    Action = "screenshot"
	ActionScreenToggle  Action = "screen_toggle"
)

var knownActions = map[Action]bool{
	ActionNone:          true,
	ActionCamera:        true,
	ActionFlashlight:    true,
	ActionBrowser:       true,
	ActionDialer:        true,
	ActionEmail:         true,
	ActionMessages:      true,
	ActionPlayPause:     true,
	ActionPreviousTrack: true,
	ActionNextTrack:     true,
	ActionVolumeUp:      true,
	ActionVolumeDown:    true,
	ActionScreenshot:    true,
	ActionScreenToggle:  true,
}

// Known reports whether a is in the action catalogue.
func (a Action) Known() bool {
	return knownActions[a]
}

// ActionFor returns the action bound to kind. Unknown kinds map to ActionNone.
func (f File) ActionFor(kind logic.GestureKind) Action {
	switch kind {
	case logic.GestureShortSqueeze:
		return Action(f.Actions.Short)
	case logic.GestureLongSqueeze:
		return Action(f.Actions.Long)
	}
	return ActionNone
}

// ActionFor resolves kind against the active configuration.
// With nothing loaded every gesture maps to ActionNone.
func (s *Store) ActionFor(kind logic.GestureKind) Action {
	f, ok := s.File()
	if !ok {
		return ActionNone
	}
	return f.ActionFor(kind)
}
