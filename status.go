package lagonlike

// AbiStatus is the status code returned from every guest ABI call.
type AbiStatus int32

const (
	AbiOK                 AbiStatus = 0 // Success
	AbiError              AbiStatus = 1 // Generic error
	AbiErrInvalidArgument AbiStatus = 2 // Invalid argument passed
	AbiErrInvalidHandle   AbiStatus = 3 // Unknown store or endpoint
	AbiErrBufferLength    AbiStatus = 4 // Guest buffer too small
	AbiErrUnsupported     AbiStatus = 5 // Operation not supported
)

// HandleInvalid is the handle value for a name that resolves to
// nothing (e.g. an environment store that was never registered). It is
// distinct from AbiErrInvalidHandle, which covers using a handle that
// does not exist.
const HandleInvalid = 4294967295 - 1
