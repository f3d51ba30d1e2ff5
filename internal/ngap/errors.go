package ngap

import (
	"fmt"

	"github.com/gholtzap/amf/internal/ngap/aper"
)

// DecodeErrorKind classifies codec decode failures.
type DecodeErrorKind uint8

const (
	DecodeShortBuffer DecodeErrorKind = iota
	DecodeUnknownPduType
	DecodeMissingMandatoryIe
	DecodeUnsupportedFragmentedLength
	DecodeUnknownNodeTypeTag
	DecodeInvalidLength
)

// DecodeError reports why an octet buffer could not be decoded into a PDU.
// The offending PDU is dropped; the carrying association stays open.
type DecodeError struct {
	Kind DecodeErrorKind
	Tag  uint8  // PDU type or CHOICE tag, for UnknownPduType/UnknownNodeTypeTag
	IeID uint16 // for MissingMandatoryIe
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case DecodeShortBuffer:
		return "ngap: decode: short buffer"
	case DecodeUnknownPduType:
		return fmt.Sprintf("ngap: decode: unknown PDU type 0x%02x", e.Tag)
	case DecodeMissingMandatoryIe:
		return fmt.Sprintf("ngap: decode: missing mandatory IE %d", e.IeID)
	case DecodeUnsupportedFragmentedLength:
		return "ngap: decode: fragmented length not supported"
	case DecodeUnknownNodeTypeTag:
		return fmt.Sprintf("ngap: decode: unknown RAN node type tag %d", e.Tag)
	case DecodeInvalidLength:
		return "ngap: decode: invalid length"
	}
	return "ngap: decode error"
}

func decodeShort() *DecodeError { return &DecodeError{Kind: DecodeShortBuffer} }

func decodeLengthError(err error) *DecodeError {
	if err == aper.ErrFragmentedLength {
		return &DecodeError{Kind: DecodeUnsupportedFragmentedLength}
	}
	return decodeShort()
}

// EncodeErrorKind classifies codec encode failures.
type EncodeErrorKind uint8

const (
	EncodeUnsupportedMessage EncodeErrorKind = iota
	EncodeFieldOutOfRange
)

// EncodeError reports why a PDU value could not be serialized.
type EncodeError struct {
	Kind   EncodeErrorKind
	Detail string
}

func (e *EncodeError) Error() string {
	switch e.Kind {
	case EncodeUnsupportedMessage:
		return fmt.Sprintf("ngap: encode: unsupported message: %s", e.Detail)
	case EncodeFieldOutOfRange:
		return fmt.Sprintf("ngap: encode: field out of range: %s", e.Detail)
	}
	return "ngap: encode error"
}

// ProtocolErrorKind classifies handler-level protocol failures.
type ProtocolErrorKind uint8

const (
	ProtocolRanNotFound ProtocolErrorKind = iota
	ProtocolTaiRejected
	ProtocolProcedureNotSupported
)

// ProtocolError reports a procedure-level failure. Where the procedure
// permits, it becomes an NGAP unsuccessful outcome on the wire; otherwise
// it is logged and dropped.
type ProtocolError struct {
	Kind ProtocolErrorKind
	Addr string // peer address, for RanNotFound
}

func (e *ProtocolError) Error() string {
	switch e.Kind {
	case ProtocolRanNotFound:
		return fmt.Sprintf("ngap: no RAN context for peer %s", e.Addr)
	case ProtocolTaiRejected:
		return "ngap: no supported TAI matches AMF configuration"
	case ProtocolProcedureNotSupported:
		return "ngap: procedure not supported"
	}
	return "ngap: protocol error"
}
