package flif

import "errors"

// Stream and usage errors reported by the decoder. Callers classify them with
// errors.Is; the decoder wraps them with positional detail.
var (
	ErrInvalidHeader        = errors.New("flif: invalid header")
	ErrStreamTruncated      = errors.New("flif: stream truncated")
	ErrInvalidSymbolContext = errors.New("flif: invalid symbol context")
	ErrChecksumMismatch     = errors.New("flif: checksum mismatch")
	ErrIndexOutOfRange      = errors.New("flif: frame index out of range")
	ErrInvalidOption        = errors.New("flif: invalid option")
	ErrConfigLocked         = errors.New("flif: decoder already started")
	ErrAlreadyDecoded       = errors.New("flif: decoder already used")
	ErrClosed               = errors.New("flif: decoder closed")
)
