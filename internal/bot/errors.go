package bot

import "errors"

// ErrBadCallback is returned for a callback token that does not match
// the kind:arg grammar.
var ErrBadCallback = errors.New("bot: malformed callback token")
