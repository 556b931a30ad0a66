package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHashDeterministic(t *testing.T) {
	outputs := []*ETxOutRecord{{SearchKey: []byte{1, 2}, Payload: []byte{3}}}
	updates := []*RngUpdate{{AccountPubkey: []byte{9}, State: []byte{8}, StartBlock: 4}}

	a := ContentHash(7, outputs, updates)
	b := ContentHash(7, outputs, updates)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestContentHashSensitivity(t *testing.T) {
	outputs := []*ETxOutRecord{{SearchKey: []byte{1, 2}, Payload: []byte{3}}}

	base := ContentHash(7, outputs, nil)
	assert.NotEqual(t, base, ContentHash(8, outputs, nil), "block index matters")
	assert.NotEqual(t, base, ContentHash(7, nil, nil), "outputs matter")
	assert.NotEqual(t, base,
		ContentHash(7, []*ETxOutRecord{{SearchKey: []byte{1}, Payload: []byte{2, 3}}}, nil),
		"field boundaries are length prefixed")
}

func TestPayloadHashIgnoresBlockIndex(t *testing.T) {
	a := PayloadHash(&ETxOutRecord{SearchKey: []byte{1}, Payload: []byte{2}, BlockIndex: 5})
	b := PayloadHash(&ETxOutRecord{SearchKey: []byte{1}, Payload: []byte{2}, BlockIndex: 9})
	assert.Equal(t, a, b, "payload identity is search key and payload only")

	c := PayloadHash(&ETxOutRecord{SearchKey: []byte{1}, Payload: []byte{3}})
	assert.NotEqual(t, a, c)
}
