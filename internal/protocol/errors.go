package protocol

import "errors"

var (
	ErrShortFrame      = errors.New("protocol: connection closed before a complete frame")
	ErrBodyTooLarge    = errors.New("protocol: declared body length too large")
	ErrBodyNotJSON    = errors.New("protocol: body is not JSON-serializable")
	ErrUnexpectedType = errors.New("protocol: unexpected response type")
)
