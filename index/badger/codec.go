package badger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/poiesic/vecload/core"
	"github.com/poiesic/vecload/index"
)

// encodePoint serializes a vector and its payload.
// Layout: uint32 dimension, dimension little-endian float32 values, JSON payload.
func encodePoint(vector []float32, payload core.Payload) ([]byte, error) {
	var payloadBytes []byte
	if payload != nil {
		var err error
		payloadBytes, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
	}

	buf := make([]byte, 4+4*len(vector)+len(payloadBytes))
	binary.LittleEndian.PutUint32(buf, uint32(len(vector)))
	offset := 4
	for _, v := range vector {
		binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v))
		offset += 4
	}
	copy(buf[offset:], payloadBytes)
	return buf, nil
}

// decodeVector reads the vector part of an encoded point.
func decodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: point value too short", index.ErrRequestFailed)
	}
	dim := int(binary.LittleEndian.Uint32(data))
	if len(data) < 4+4*dim {
		return nil, fmt.Errorf("%w: point value truncated", index.ErrRequestFailed)
	}
	vector := make([]float32, dim)
	offset := 4
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
	}
	return vector, nil
}

// decodePoint reads an encoded point.
func decodePoint(data []byte) ([]float32, core.Payload, error) {
	vector, err := decodeVector(data)
	if err != nil {
		return nil, nil, err
	}
	rest := data[4+4*len(vector):]
	if len(rest) == 0 {
		return vector, nil, nil
	}
	var payload core.Payload
	if err := json.Unmarshal(rest, &payload); err != nil {
		return nil, nil, fmt.Errorf("decode payload: %w", err)
	}
	return vector, payload, nil
}
