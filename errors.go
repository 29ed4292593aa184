package robot

import "errors"

var (
	// Configuration errors.
	ErrNoBaseURL   = errors.New("robot: no base URL configured")
	ErrNoSecretKey = errors.New("robot: no secret key configured")
	ErrNoEngine    = errors.New("robot: no automation engine configured")
	ErrNoServiceID = errors.New("robot: no service id supplied")

	// Mode errors.
	ErrLocalTracking = errors.New("robot: cannot track a remote job with a local engine configured")
)
