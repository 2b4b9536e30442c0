package route

import "errors"

// ErrNoBuilder is returned by New when cfg.Builder is nil.
var ErrNoBuilder = errors.New("route: builder required")
