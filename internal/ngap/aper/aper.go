// Package aper implements the aligned-PER encoding primitives shared by
// the NGAP codec: length determinants, PLMN identity triplets and the
// 3-octet hex fields (TAC, NR cell identity prefixes) that ride on them.
package aper

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrShortBuffer is returned when a determinant or field runs past
	// the end of the input.
	ErrShortBuffer = errors.New("aper: short buffer")

	// ErrFragmentedLength is returned for the fragmented length form
	// (first octet 0xC1 or above), which the codec does not support.
	ErrFragmentedLength = errors.New("aper: fragmented length not supported")
)

// DecodeLength reads an APER length determinant from the start of data.
// It returns the length and the number of octets consumed.
func DecodeLength(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrShortBuffer
	}

	switch {
	case data[0] < 0x80:
		return int(data[0]), 1, nil
	case data[0] < 0xC0:
		if len(data) < 2 {
			return 0, 0, ErrShortBuffer
		}
		return int(data[0]&0x3F)<<8 | int(data[1]), 2, nil
	case data[0] == 0xC0:
		// Three-octet outer-PDU form. 0xC1 and above mark fragmented
		// lengths, which are not supported.
		if len(data) < 3 {
			return 0, 0, ErrShortBuffer
		}
		return int(data[1])<<8 | int(data[2]), 3, nil
	default:
		return 0, 0, ErrFragmentedLength
	}
}

// EncodeLength appends an APER length determinant to buf. Values below
// 128 use the single-octet form, values below 16384 the two-octet form.
// Larger values use the three-octet outer-PDU form (0xC0, high, low).
func EncodeLength(buf []byte, length int) []byte {
	switch {
	case length < 128:
		return append(buf, byte(length))
	case length < 16384:
		return append(buf, 0x80|byte(length>>8)&0x3F, byte(length))
	default:
		return append(buf, 0xC0, byte(length>>8), byte(length))
	}
}

// EncodePlmn packs MCC/MNC digit strings into the 3GPP nibble-swapped
// 3-octet wire form. MCC must be exactly three decimal digits, MNC two
// or three.
func EncodePlmn(buf []byte, mcc, mnc string) ([]byte, error) {
	mccDigits, err := decimalDigits(mcc)
	if err != nil || len(mccDigits) != 3 {
		return nil, fmt.Errorf("aper: invalid mcc %q", mcc)
	}
	mncDigits, err := decimalDigits(mnc)
	if err != nil || len(mncDigits) < 2 || len(mncDigits) > 3 {
		return nil, fmt.Errorf("aper: invalid mnc %q", mnc)
	}

	buf = append(buf, mccDigits[1]<<4|mccDigits[0])
	if len(mncDigits) == 2 {
		buf = append(buf, 0xF0|mccDigits[2])
	} else {
		buf = append(buf, mncDigits[2]<<4|mccDigits[2])
	}
	buf = append(buf, mncDigits[1]<<4|mncDigits[0])
	return buf, nil
}

// DecodePlmn unpacks a 3-octet nibble-swapped PLMN identity into MCC and
// MNC digit strings. A 0xF filler nibble in octet 1 marks a 2-digit MNC.
func DecodePlmn(data []byte) (mcc, mnc string, err error) {
	if len(data) < 3 {
		return "", "", ErrShortBuffer
	}

	mcc = fmt.Sprintf("%d%d%d", data[0]&0x0F, data[0]>>4, data[1]&0x0F)

	d3 := data[1] >> 4
	if d3 == 0x0F {
		mnc = fmt.Sprintf("%d%d", data[2]&0x0F, data[2]>>4)
	} else {
		mnc = fmt.Sprintf("%d%d%d", data[2]&0x0F, data[2]>>4, d3)
	}
	return mcc, mnc, nil
}

// EncodeHexOctets appends the octets named by a hex string (e.g. a TAC
// "010203" or gNB identifier) to buf.
func EncodeHexOctets(buf []byte, s string) ([]byte, error) {
	octets, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("aper: invalid hex field %q: %w", s, err)
	}
	return append(buf, octets...), nil
}

// HexString renders octets as the lowercase hex form used for TACs and
// node identifiers.
func HexString(data []byte) string {
	return hex.EncodeToString(data)
}

func decimalDigits(s string) ([]byte, error) {
	digits := make([]byte, 0, len(s))
	for _, c := range s {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("non-decimal digit %q", c)
		}
		digits = append(digits, byte(c-'0'))
	}
	return digits, nil
}
