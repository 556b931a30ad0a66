package database

import (
	"crypto/sha256"
	"encoding/binary"
)

// Canonical binary forms used for idempotency hashing. Every variable
// length field is u32-length-prefixed so distinct record sets can never
// collide on concatenation boundaries.

func appendBytes(buf []byte, b []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// PayloadHash is the per-record half of the output idempotency key
// (block index, invocation id, payload hash).
func PayloadHash(rec *ETxOutRecord) []byte {
	h := sha256.New()
	var buf []byte
	buf = appendBytes(buf, rec.SearchKey)
	buf = appendBytes(buf, rec.Payload)
	h.Write(buf)
	return h.Sum(nil)
}

// ContentHash digests a whole AddBlockData call. A retried write with the
// same hash is a no-op; the same block index with a different hash is a
// divergent ingest and rejected.
func ContentHash(blockIndex uint64, outputs []*ETxOutRecord, rngUpdates []*RngUpdate) []byte {
	h := sha256.New()
	var buf []byte
	buf = binary.BigEndian.AppendUint64(buf, blockIndex)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(outputs)))
	for _, o := range outputs {
		buf = appendBytes(buf, o.SearchKey)
		buf = appendBytes(buf, o.Payload)
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(rngUpdates)))
	for _, u := range rngUpdates {
		buf = appendBytes(buf, u.AccountPubkey)
		buf = appendBytes(buf, u.State)
		buf = binary.BigEndian.AppendUint64(buf, u.StartBlock)
	}
	h.Write(buf)
	return h.Sum(nil)
}
