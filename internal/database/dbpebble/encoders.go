package dbpebble

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Key builders. The first variable-length part is u8-length-prefixed so
// prefix iteration over one key never bleeds into a neighbour.

func keyWith(prefix byte, k []byte, suffixes ...[]byte) []byte {
	if len(k) > 0xff {
		panic(fmt.Sprintf("key too long: %d", len(k)))
	}
	out := make([]byte, 0, 2+len(k))
	out = append(out, prefix, byte(len(k)))
	out = append(out, k...)
	for _, s := range suffixes {
		out = append(out, s...)
	}
	return out
}

func u64be(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff
}

// Value encoding: u32-length-prefixed byte fields, fixed-width scalars.

var errShortValue = errors.New("short value")

func putBytes(buf, b []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func takeBytes(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, errShortValue
	}
	n := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < n {
		return nil, nil, errShortValue
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, buf[n:], nil
}

func putU64(buf []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, v)
}

func takeU64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, errShortValue
	}
	return binary.BigEndian.Uint64(buf[:8]), buf[8:], nil
}

func putI64(buf []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(v))
}

func takeI64(buf []byte) (int64, []byte, error) {
	v, rest, err := takeU64(buf)
	return int64(v), rest, err
}

func putBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func takeBool(buf []byte) (bool, []byte, error) {
	if len(buf) < 1 {
		return false, nil, errShortValue
	}
	return buf[0] != 0, buf[1:], nil
}

/* record encodings */

type ingressKeyRec struct {
	StartBlock     uint64
	Decommissioned bool
	LastScanned    int64
}

func encodeIngressKey(r ingressKeyRec) []byte {
	buf := putU64(nil, r.StartBlock)
	buf = putBool(buf, r.Decommissioned)
	return putI64(buf, r.LastScanned)
}

func decodeIngressKey(buf []byte) (r ingressKeyRec, err error) {
	if r.StartBlock, buf, err = takeU64(buf); err != nil {
		return
	}
	if r.Decommissioned, buf, err = takeBool(buf); err != nil {
		return
	}
	r.LastScanned, _, err = takeI64(buf)
	return
}

type invocationRec struct {
	IngressKey     []byte
	StartBlock     uint64
	LastActive     int64
	Decommissioned bool
}

func encodeInvocation(r invocationRec) []byte {
	buf := putBytes(nil, r.IngressKey)
	buf = putU64(buf, r.StartBlock)
	buf = putI64(buf, r.LastActive)
	return putBool(buf, r.Decommissioned)
}

func decodeInvocation(buf []byte) (r invocationRec, err error) {
	if r.IngressKey, buf, err = takeBytes(buf); err != nil {
		return
	}
	if r.StartBlock, buf, err = takeU64(buf); err != nil {
		return
	}
	if r.LastActive, buf, err = takeI64(buf); err != nil {
		return
	}
	r.Decommissioned, _, err = takeBool(buf)
	return
}

type rngRec struct {
	AccountPubkey []byte
	InvocationID  string
	StartBlock    uint64
	State         []byte
	Retired       bool
}

func encodeRng(r rngRec) []byte {
	buf := putBytes(nil, r.AccountPubkey)
	buf = putBytes(buf, []byte(r.InvocationID))
	buf = putU64(buf, r.StartBlock)
	buf = putBytes(buf, r.State)
	return putBool(buf, r.Retired)
}

func decodeRng(buf []byte) (r rngRec, err error) {
	if r.AccountPubkey, buf, err = takeBytes(buf); err != nil {
		return
	}
	var id []byte
	if id, buf, err = takeBytes(buf); err != nil {
		return
	}
	r.InvocationID = string(id)
	if r.StartBlock, buf, err = takeU64(buf); err != nil {
		return
	}
	if r.State, buf, err = takeBytes(buf); err != nil {
		return
	}
	r.Retired, _, err = takeBool(buf)
	return
}

type outputRec struct {
	Payload      []byte
	InvocationID string
	CreatedAt    int64
}

func encodeOutput(r outputRec) []byte {
	buf := putBytes(nil, r.Payload)
	buf = putBytes(buf, []byte(r.InvocationID))
	return putI64(buf, r.CreatedAt)
}

func decodeOutput(buf []byte) (r outputRec, err error) {
	if r.Payload, buf, err = takeBytes(buf); err != nil {
		return
	}
	var id []byte
	if id, buf, err = takeBytes(buf); err != nil {
		return
	}
	r.InvocationID = string(id)
	r.CreatedAt, _, err = takeI64(buf)
	return
}

type reportRec struct {
	Report     []byte
	ValidFrom  int64
	ValidUntil int64
	CreatedAt  int64
}

func encodeReport(r reportRec) []byte {
	buf := putBytes(nil, r.Report)
	buf = putI64(buf, r.ValidFrom)
	buf = putI64(buf, r.ValidUntil)
	return putI64(buf, r.CreatedAt)
}

func decodeReport(buf []byte) (r reportRec, err error) {
	if r.Report, buf, err = takeBytes(buf); err != nil {
		return
	}
	if r.ValidFrom, buf, err = takeI64(buf); err != nil {
		return
	}
	if r.ValidUntil, buf, err = takeI64(buf); err != nil {
		return
	}
	r.CreatedAt, _, err = takeI64(buf)
	return
}
