// Package wschannel implements swap.Channel over a websocket hub. One Hub
// serves a wall cluster; every process dials it with a fixed rank and runs
// barrier rounds through it.
//
// Messages are CBOR payloads behind a fixed binary header.
package wschannel

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/fxamacker/cbor/v2"
)

var ErrBadFrame = errors.New("libwall: bad channel frame")

const (
	frameMagic      uint16 = 0x574C // "WL"
	protocolVersion uint8  = 1
	headerSize             = 8
)

type messageType uint8

const (
	msgHello messageType = iota + 1
	msgCandidacy
	msgCandidates
	msgValue
)

type helloPayload struct {
	Rank int `cbor:"1,keyasint"`
}

type candidacyPayload struct {
	Round     uint64 `cbor:"1,keyasint"`
	Candidate bool   `cbor:"2,keyasint"`
}

type candidatesPayload struct {
	Round uint64 `cbor:"1,keyasint"`
	Ranks []int  `cbor:"2,keyasint"`
}

type valuePayload struct {
	Round uint64 `cbor:"1,keyasint"`
	Data  []byte `cbor:"2,keyasint"`
}

// encodeFrame prepends the binary header to the CBOR-encoded payload.
//
// Wire layout:
//
//	[0:2]  magic   (big-endian uint16)
//	[2]    version (uint8)
//	[3]    type    (uint8)
//	[4:8]  length  (little-endian uint32, payload bytes)
func encodeFrame(msgType messageType, payload any) ([]byte, error) {
	data, err := cbor.Marshal(payload)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint16(frame[0:2], frameMagic)
	frame[2] = protocolVersion
	frame[3] = byte(msgType)
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(data)))
	copy(frame[headerSize:], data)
	return frame, nil
}

func decodeFrame(frame []byte) (messageType, []byte, error) {
	if len(frame) < headerSize {
		return 0, nil, ErrBadFrame
	}
	if binary.BigEndian.Uint16(frame[0:2]) != frameMagic || frame[2] != protocolVersion {
		return 0, nil, ErrBadFrame
	}
	length := binary.LittleEndian.Uint32(frame[4:8])
	if len(frame) != headerSize+int(length) {
		return 0, nil, ErrBadFrame
	}
	return messageType(frame[3]), frame[headerSize:], nil
}

func decodePayload(data []byte, out any) error {
	decoder := cbor.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(out); err != nil {
		return errors.Join(ErrBadFrame, err)
	}
	return nil
}
