package inic

import "errors"

// errShortPayload is returned by this package's decode helpers when a
// received payload is too short to contain the expected fixed fields.
var errShortPayload = errors.New("inic: payload too short")
