package doomslug

import (
	"encoding/binary"
	"errors"

	"github.com/shardstake/gtos/common"
)

// ErrShortApprovalBytes is returned by DecodeApproval when the input ends
// before a required field has been read.
var ErrShortApprovalBytes = errors.New("doomslug: approval bytes truncated")

// referenceHashFlag / noReferenceHashFlag distinguish whether
// ReferenceHash is present without needing a second length-tagged field.
const (
	noReferenceHashFlag byte = 0
	referenceHashFlag   byte = 1
)

const fixedApprovalPrefixLen = common.HashLength + 1 + 8 + 1 + common.AddressLength

// EncodeApproval serializes an approval to the fixed, byte-deterministic
// layout two independent implementations must agree on bit-for-bit:
//
//	32 bytes   ParentHash
//	1 byte     HasReferenceHash flag (0 or 1)
//	0|32 bytes ReferenceHash, present only if the flag above is 1
//	8 bytes    TargetHeight, little-endian
//	1 byte     IsEndorsement flag (0 or 1)
//	20 bytes   AccountID
//	remainder  Signature
//
// This mirrors the fixed-field-then-remainder discipline the chain's
// transaction codec uses, adapted to Doomslug's fixed-width hash, height,
// and account fields; only the trailing signature is variable-length.
func EncodeApproval(a Approval) []byte {
	size := fixedApprovalPrefixLen + len(a.Signature)
	if a.HasReferenceHash {
		size += common.HashLength
	}
	buf := make([]byte, 0, size)
	buf = append(buf, a.ParentHash[:]...)
	if a.HasReferenceHash {
		buf = append(buf, referenceHashFlag)
		buf = append(buf, a.ReferenceHash[:]...)
	} else {
		buf = append(buf, noReferenceHashFlag)
	}
	var heightBytes [8]byte
	binary.LittleEndian.PutUint64(heightBytes[:], a.TargetHeight)
	buf = append(buf, heightBytes[:]...)
	if a.IsEndorsement {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, a.AccountID[:]...)
	buf = append(buf, a.Signature...)
	return buf
}

// DecodeApproval parses the layout produced by EncodeApproval. The
// signature field is whatever bytes remain after the fixed-width fields are
// consumed, since its length is scheme-dependent (the signer, not the wire
// format, fixes its size).
func DecodeApproval(data []byte) (Approval, error) {
	var a Approval
	if len(data) < common.HashLength+1 {
		return a, ErrShortApprovalBytes
	}
	copy(a.ParentHash[:], data[:common.HashLength])
	data = data[common.HashLength:]

	flag := data[0]
	data = data[1:]
	if flag == referenceHashFlag {
		if len(data) < common.HashLength {
			return a, ErrShortApprovalBytes
		}
		a.HasReferenceHash = true
		copy(a.ReferenceHash[:], data[:common.HashLength])
		data = data[common.HashLength:]
	}

	if len(data) < 8+1+common.AddressLength {
		return a, ErrShortApprovalBytes
	}
	a.TargetHeight = binary.LittleEndian.Uint64(data[:8])
	data = data[8:]

	a.IsEndorsement = data[0] == 1
	data = data[1:]

	a.AccountID = common.BytesToAddress(data[:common.AddressLength])
	data = data[common.AddressLength:]

	a.Signature = append([]byte(nil), data...)
	return a, nil
}
