package util

import (
	"encoding/binary"
	"hash/fnv"
)

func HashId(vertexId uint64) uint64 {
	inputBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(inputBytes, vertexId)

	algorithm := fnv.New64a()
	algorithm.Write(inputBytes)
	return algorithm.Sum64()
}

// PartitionOf returns the logical worker owning vertexId.
func PartitionOf(vertexId uint64, numWorkers uint32) uint32 {
	if numWorkers == 0 {
		return 0
	}
	return uint32(HashId(vertexId) % uint64(numWorkers))
}
