package partition

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// Count is the fixed number of logical partitions stale work is grouped by.
const Count = 256

// For returns the partition of a stream. All stale buckets of one stream land
// in the same partition, so a single worker recomputes them in order.
func For(streamID uuid.UUID) int {
	h := fnv.New32a()
	h.Write(streamID[:])
	return int(h.Sum32() % Count)
}
