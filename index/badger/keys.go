package badger

import (
	"encoding/binary"
)

// Key prefixes for index data
const (
	collectionPrefix = "idxcol:"
	pointPrefix      = "idxpt:"
)

// makeCollectionKey generates the key holding a collection's configuration.
func makeCollectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

// makePointPrefix generates the key prefix shared by all points of a collection.
// Format: prefix + uint16 name length + name, so no collection's prefix is a
// prefix of another's.
func makePointPrefix(name string) []byte {
	buf := make([]byte, len(pointPrefix)+2+len(name))
	offset := copy(buf, pointPrefix)
	binary.BigEndian.PutUint16(buf[offset:], uint16(len(name)))
	offset += 2
	copy(buf[offset:], name)
	return buf
}

// makePointKey generates the key of one point.
// Ids are big-endian so iteration returns points in id order.
func makePointKey(prefix []byte, id uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], id)
	return buf
}

// pointIDFromKey extracts the id from a point key.
func pointIDFromKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}
