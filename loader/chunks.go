package loader

import "github.com/poiesic/vecload/core"

// PlanChunks partitions [0, total) into contiguous ranges of at most size rows.
func PlanChunks(total, size int) []core.ChunkRange {
	return planChunksFrom(0, total, size)
}

// planChunksFrom partitions [start, total) the same way.
func planChunksFrom(start, total, size int) []core.ChunkRange {
	if size <= 0 || start >= total {
		return nil
	}
	start = max(start, 0)
	ranges := make([]core.ChunkRange, 0, (total-start+size-1)/size)
	for offset := start; offset < total; offset += size {
		ranges = append(ranges, core.ChunkRange{Offset: offset, End: min(offset+size, total)})
	}
	return ranges
}
