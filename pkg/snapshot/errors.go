package snapshot

import (
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/wire"

	"github.com/Jayson-Furr/UTXOTools/pkg/encoding"
)

// FormatError reports malformed or inconsistent snapshot bytes. Offset is
// the byte position the problem was detected at, or -1 when unknown.
type FormatError struct {
	Offset int64
	Msg    string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("snapshot: format error at byte %d: %s", e.Offset, e.Msg)
	}
	return fmt.Sprintf("snapshot: format error: %s", e.Msg)
}

func (e *FormatError) Unwrap() error { return e.Err }

// VersionError reports a snapshot whose version field is outside the
// supported set.
type VersionError struct {
	Found     uint16
	Supported []uint16
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("snapshot: unsupported version %d (supported: %v)", e.Found, e.Supported)
}

// ValidationReason tags the semantic check a ValidationError failed.
type ValidationReason string

const (
	ReasonCountMismatch  ValidationReason = "count_mismatch"
	ReasonInvalidTxid    ValidationReason = "invalid_txid"
	ReasonInvalidScript  ValidationReason = "invalid_script"
	ReasonInvalidAmount  ValidationReason = "invalid_amount"
	ReasonTruncated      ValidationReason = "truncated"
	ReasonUnknownNetwork ValidationReason = "unknown_network"
	ReasonUnknownMagic   ValidationReason = "unknown_magic"
)

// ValidationError reports a snapshot that parsed but failed a semantic
// check, or a write request the format cannot represent.
type ValidationError struct {
	Reason ValidationReason
	Msg    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("snapshot: validation failed (%s): %s", e.Reason, e.Msg)
}

// classifyCodecError sorts an error returned by the codec layers into the
// taxonomy: EOFs become truncation format errors, codec rejections become
// format errors at the given offset, and anything else is an I/O failure
// surfaced unchanged.
func classifyCodecError(err error, offset int64, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &FormatError{Offset: offset, Msg: fmt.Sprintf("truncated %s", what), Err: err}
	}

	var msgErr *wire.MessageError
	if errors.Is(err, encoding.ErrCompactSizeRange) ||
		errors.Is(err, encoding.ErrVarIntOverflow) ||
		errors.As(err, &msgErr) {
		return &FormatError{Offset: offset, Msg: fmt.Sprintf("%s: %v", what, err), Err: err}
	}

	return err
}
