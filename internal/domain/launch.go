package domain

import (
	"regexp"
	"strings"
)

const maxRoomNameLen = 100

var (
	roomNameDisallowed = regexp.MustCompile(`[^a-z0-9-]`)
	edgeDashes         = regexp.MustCompile(`^-+|-+$`)
)

// LaunchParams: параметры, с которыми вкладка открыла встречу.
type LaunchParams struct {
	RoomName    string
	OwnerID     string
	DisplayName string
	ReturnURL   string
}

// SanitizeRoomName keeps lowercase letters, digits and inner dashes.
func SanitizeRoomName(name string) string {
	s := roomNameDisallowed.ReplaceAllString(strings.ToLower(name), "")
	s = edgeDashes.ReplaceAllString(s, "")
	if len(s) > maxRoomNameLen {
		s = s[:maxRoomNameLen]
	}
	return s
}

// Normalize sanitizes the room name and trims the other fields.
func (p LaunchParams) Normalize() LaunchParams {
	return LaunchParams{
		RoomName:    SanitizeRoomName(p.RoomName),
		OwnerID:     strings.TrimSpace(p.OwnerID),
		DisplayName: strings.TrimSpace(p.DisplayName),
		ReturnURL:   strings.TrimSpace(p.ReturnURL),
	}
}

func (p LaunchParams) Validate() error {
	if p.RoomName == "" {
		return ErrMissingRoom
	}
	return nil
}

// AnalyticsEnabled reports whether the tab carries enough identity to be recorded.
func (p LaunchParams) AnalyticsEnabled() bool {
	return p.RoomName != "" && p.OwnerID != ""
}
