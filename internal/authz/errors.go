package authz

import "errors"

// ErrAccessDenied is returned by callers that need an error value for a
// deny decision. It never reveals whether the denial came from a missing
// resource or an insufficient role.
var ErrAccessDenied = errors.New("authz: access denied")
