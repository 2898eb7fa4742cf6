package autopatcher

import "errors"

var (
	ErrNoManifest      = errors.New("autopatcher: no manifest configured")
	ErrBadManifest     = errors.New("autopatcher: malformed manifest")
	ErrCheckInProgress = errors.New("autopatcher: check already in progress")
	ErrDetached        = errors.New("autopatcher: component detached")
)
