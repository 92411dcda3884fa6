package suballoc

import (
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/voxenlabs/voxen/memutils"
)

// BuildStatsString produces a JSON snapshot of the allocator for diagnostic
// dumps. With detailedMap set, every pool's chunks and blocks are included.
func (a *Allocator) BuildStatsString(detailedMap bool) []byte {
	writer := jwriter.NewWriter()

	rootObj := writer.Object()

	var total memutils.DetailedStatistics
	total.Clear()
	a.AddDetailedStatistics(&total)

	totalObj := rootObj.Name("Total").Object()
	writeDetailedStatistics(&totalObj, &total)
	totalObj.End()

	poolsObj := rootObj.Name("Pools").Object()
	for typeIndex, p := range a.pools {
		poolObj := poolsObj.Name(strconv.Itoa(typeIndex)).Object()
		p.writeJson(&poolObj, detailedMap)
		poolObj.End()
	}
	poolsObj.End()

	rootObj.End()
	return writer.Bytes()
}

func writeDetailedStatistics(json *jwriter.ObjectState, stats *memutils.DetailedStatistics) {
	json.Name("ChunkCount").Int(stats.ChunkCount)
	json.Name("ChunkBytes").Int(stats.ChunkBytes)
	json.Name("AllocationCount").Int(stats.AllocationCount)
	json.Name("AllocationBytes").Int(stats.AllocationBytes)
	json.Name("UnusedRangeCount").Int(stats.UnusedRangeCount)
	if stats.AllocationCount > 1 {
		json.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		json.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}
	if stats.UnusedRangeCount > 1 {
		json.Name("UnusedRangeSizeMin").Int(stats.UnusedRangeSizeMin)
		json.Name("UnusedRangeSizeMax").Int(stats.UnusedRangeSizeMax)
	}
}

func (p *pool) writeJson(json *jwriter.ObjectState, detailedMap bool) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	json.Name("GrowthSize").Int(p.growthSize)
	json.Name("HostVisible").Bool(p.hostVisible)

	chunksObj := json.Name("Chunks").Object()
	for chunkIndex, c := range p.chunks {
		chunkObj := chunksObj.Name(strconv.Itoa(chunkIndex)).Object()
		chunkObj.Name("TotalBytes").Int(c.size)
		chunkObj.Name("UnusedBytes").Int(c.sumFreeSize())

		if detailedMap {
			blocksObj := chunkObj.Name("Blocks").Object()
			for blockIndex := 0; blockIndex < len(c.blocks); blockIndex++ {
				blockObj := blocksObj.Name(strconv.Itoa(blockIndex)).Object()
				blockObj.Name("Offset").Int(c.blocks[blockIndex].offset)
				blockObj.Name("Size").Int(c.blocks[blockIndex].size)
				blockObj.Name("Free").Bool(c.blocks[blockIndex].free)
				blockObj.End()
			}
			blocksObj.End()
		}
		chunkObj.End()
	}
	chunksObj.End()
}
