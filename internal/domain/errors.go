package domain

import "errors"

var (
	ErrMissingRoom     = errors.New("room name is required")
	ErrMissingOwner    = errors.New("owner id is required")
	ErrSessionEnded    = errors.New("meeting session already ended")
	ErrParticipantLeft = errors.New("participant already left")
)
