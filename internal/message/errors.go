package message

import "errors"

// ErrContentTooLarge is returned by NewMessage when data exceeds ContentMax.
var ErrContentTooLarge = errors.New("message: content exceeds maximum size")
