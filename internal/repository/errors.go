package repository

import "errors"

// ErrMissingUserScope is returned when a repository operation is called
// without the owning user's id. Per-user isolation is enforced here, at
// the lowest query layer, so a missing scope is a programming defect and
// fails the operation loudly instead of degrading to a cross-user query.
var ErrMissingUserScope = errors.New("operation requires an owning user scope")
