package models

import "errors"

// ErrCollaboratorUnavailable marks failures of an external service that retrying
// on the next post or day will not fix, such as rejected credentials.
var ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
