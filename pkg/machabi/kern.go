package machabi

import (
	"errors"
	"fmt"
)

// KernReturn is a kern_return_t. Non-zero values are errors.
type KernReturn int32

const KernSuccess KernReturn = 0

// Return codes produced by generated stubs.
const (
	MigTypeError     KernReturn = -300
	MigReplyMismatch KernReturn = -301
	MigRemoteError   KernReturn = -302
	MigBadID         KernReturn = -303
	MigBadArguments  KernReturn = -304
	MigNoReply       KernReturn = -305
	MigException     KernReturn = -306
	MigArrayTooLarge KernReturn = -307
	MigServerDied    KernReturn = -308
	MigTrailerError  KernReturn = -309
)

var kernNames = map[KernReturn]string{
	KernSuccess:      "KERN_SUCCESS",
	MigTypeError:     "MIG_TYPE_ERROR",
	MigReplyMismatch: "MIG_REPLY_MISMATCH",
	MigRemoteError:   "MIG_REMOTE_ERROR",
	MigBadID:         "MIG_BAD_ID",
	MigBadArguments:  "MIG_BAD_ARGUMENTS",
	MigNoReply:       "MIG_NO_REPLY",
	MigException:     "MIG_EXCEPTION",
	MigArrayTooLarge: "MIG_ARRAY_TOO_LARGE",
	MigServerDied:    "MIG_SERVER_DIED",
	MigTrailerError:  "MIG_TRAILER_ERROR",
}

func (kr KernReturn) Error() string {
	if name, ok := kernNames[kr]; ok {
		return name
	}
	return fmt.Sprintf("kern_return_t %d", int32(kr))
}

// Err returns nil for KernSuccess and kr otherwise.
func (kr KernReturn) Err() error {
	if kr == KernSuccess {
		return nil
	}
	return kr
}

// ErrArrayTooLarge is returned when an argument exceeds its array bound.
var ErrArrayTooLarge error = MigArrayTooLarge

// Code converts an error back to a return code for a reply.
func Code(err error) KernReturn {
	if err == nil {
		return KernSuccess
	}
	var kr KernReturn
	if errors.As(err, &kr) {
		return kr
	}
	return MigRemoteError
}
