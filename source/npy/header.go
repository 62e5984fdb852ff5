// Package npy reads and writes NumPy .npy files holding 2-D little-endian
// float32 arrays. Readers memory-map the file and hand out zero-copy row views.
package npy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidFormat indicates a file that is not a supported .npy array.
	ErrInvalidFormat = errors.New("invalid npy file")

	magic = []byte("\x93NUMPY")
)

const (
	// Only little-endian float32 in C order is supported.
	float32Descr = "<f4"
	headerAlign  = 64
)

// header is the parsed preamble of an .npy file.
type header struct {
	descr        string
	fortranOrder bool
	shape        []int
	dataOffset   int
}

// parseHeader decodes the magic, version and dictionary header.
// Versions 1.0, 2.0 and 3.0 are accepted.
func parseHeader(data []byte) (*header, error) {
	if len(data) < 10 || !bytes.Equal(data[:6], magic) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidFormat)
	}

	major := data[6]
	var headerLen, prefix int
	switch major {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(data[8:10]))
		prefix = 10
	case 2, 3:
		if len(data) < 12 {
			return nil, fmt.Errorf("%w: truncated preamble", ErrInvalidFormat)
		}
		headerLen = int(binary.LittleEndian.Uint32(data[8:12]))
		prefix = 12
	default:
		return nil, fmt.Errorf("%w: unsupported version %d.%d", ErrInvalidFormat, major, data[7])
	}
	if len(data) < prefix+headerLen {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidFormat)
	}

	h, err := parseDict(string(data[prefix : prefix+headerLen]))
	if err != nil {
		return nil, err
	}
	h.dataOffset = prefix + headerLen
	return h, nil
}

// parseDict reads the Python literal dictionary of the header, e.g.
// {'descr': '<f4', 'fortran_order': False, 'shape': (1000, 384), }
func parseDict(s string) (*header, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, fmt.Errorf("%w: header is not a dictionary", ErrInvalidFormat)
	}

	h := &header{}
	descr, ok := dictValue(s, "descr")
	if !ok {
		return nil, fmt.Errorf("%w: missing descr", ErrInvalidFormat)
	}
	h.descr = strings.Trim(descr, `'"`)

	order, ok := dictValue(s, "fortran_order")
	if !ok {
		return nil, fmt.Errorf("%w: missing fortran_order", ErrInvalidFormat)
	}
	h.fortranOrder = order == "True"

	shape, ok := dictValue(s, "shape")
	if !ok {
		return nil, fmt.Errorf("%w: missing shape", ErrInvalidFormat)
	}
	shape = strings.TrimSuffix(strings.TrimPrefix(shape, "("), ")")
	for _, part := range strings.Split(shape, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(part, "L"))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad shape element %q", ErrInvalidFormat, part)
		}
		h.shape = append(h.shape, n)
	}
	return h, nil
}

// dictValue returns the raw value text following 'key': in a header dictionary.
func dictValue(s, key string) (string, bool) {
	idx := strings.Index(s, "'"+key+"'")
	if idx < 0 {
		idx = strings.Index(s, `"`+key+`"`)
		if idx < 0 {
			return "", false
		}
	}
	rest := strings.TrimSpace(s[idx+len(key)+2:])
	rest, ok := strings.CutPrefix(rest, ":")
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)

	if strings.HasPrefix(rest, "(") {
		end := strings.Index(rest, ")")
		if end < 0 {
			return "", false
		}
		return rest[:end+1], true
	}
	end := strings.IndexAny(rest, ",}")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// validate checks that the header describes a C-order 2-D float32 array.
func (h *header) validate() error {
	if h.descr != float32Descr {
		return fmt.Errorf("%w: dtype %q, want %q", ErrInvalidFormat, h.descr, float32Descr)
	}
	if h.fortranOrder {
		return fmt.Errorf("%w: fortran order is not supported", ErrInvalidFormat)
	}
	if len(h.shape) != 2 {
		return fmt.Errorf("%w: shape %v is not 2-D", ErrInvalidFormat, h.shape)
	}
	return nil
}

// encodeHeader builds a version 1.0 preamble for a rows x dim float32 array,
// padded so the data starts on a 64-byte boundary.
func encodeHeader(rows, dim int) []byte {
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d), }", float32Descr, rows, dim)
	unpadded := 10 + len(dict) + 1 // preamble + dict + trailing newline
	padding := (headerAlign - unpadded%headerAlign) % headerAlign
	headerLen := len(dict) + padding + 1

	buf := make([]byte, 10+headerLen)
	copy(buf, magic)
	buf[6] = 1
	buf[7] = 0
	binary.LittleEndian.PutUint16(buf[8:10], uint16(headerLen))
	offset := 10 + copy(buf[10:], dict)
	for i := 0; i < padding; i++ {
		buf[offset+i] = ' '
	}
	buf[len(buf)-1] = '\n'
	return buf
}
