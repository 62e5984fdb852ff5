package badger

import (
	"encoding/binary"

	"github.com/poiesic/vecload/core"
)

// Key prefixes for different data types
const (
	jobRecordPrefix  = "jobrec:"
	jobIDSeq         = "jobrecseq"
	checkpointPrefix = "chkpt:"
)

// makeJobKey generates a key for a job record by ID.
// Format: prefix + big-endian id, so iteration returns jobs in ID order.
func makeJobKey(id core.JobID) []byte {
	buf := make([]byte, len(jobRecordPrefix)+8)
	offset := copy(buf, jobRecordPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeCheckpointPrefix returns the key prefix shared by every checkpoint of
// a collection. Format: prefix + uint16 name length + name.
func makeCheckpointPrefix(collection string) []byte {
	buf := make([]byte, len(checkpointPrefix)+2+len(collection))
	offset := copy(buf, checkpointPrefix)
	binary.BigEndian.PutUint16(buf[offset:], uint16(len(collection)))
	copy(buf[offset+2:], collection)
	return buf
}

// makeCheckpointKey generates a key for a load checkpoint.
// Format: collection prefix + big-endian job id.
func makeCheckpointKey(jobID core.JobID, collection string) []byte {
	prefix := makeCheckpointPrefix(collection)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(jobID))
	return buf
}
