package suballoc

import (
	"encoding/json"
	"math/rand"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/voxenlabs/voxen/gpu"
	"github.com/voxenlabs/voxen/gpu/gputest"
)

func testAllocator(t *testing.T, config gputest.Config, options CreateOptions) (*gputest.Device, *Allocator) {
	t.Helper()

	device := gputest.NewDevice(config)
	allocator, err := New(device, options)
	require.NoError(t, err)
	return device, allocator
}

func TestAllocRoundTrip(t *testing.T) {
	_, allocator := testAllocator(t, gputest.Config{}, CreateOptions{})
	defer allocator.FreeAll()

	handle, err := allocator.Alloc(AllocRequest{Size: 100, Usage: UsageStaging})
	require.NoError(t, err)
	require.Equal(t, 100, handle.Size())
	require.NotNil(t, handle.Ptr())

	before := snapshotStats(allocator, 1)
	allocator.Free(handle)

	handle2, err := allocator.Alloc(AllocRequest{Size: 100, Usage: UsageStaging})
	require.NoError(t, err)
	after := snapshotStats(allocator, 1)
	allocator.Free(handle2)

	// Free then re-alloc of the same size must restore the exact layout.
	require.Equal(t, before, after)
	require.NoError(t, allocator.Validate())
}

// DetailedStatsSnapshot is the comparable subset of pool statistics used by
// the round-trip tests.
type DetailedStatsSnapshot struct {
	ChunkCount       int
	ChunkBytes       int
	AllocationCount  int
	AllocationBytes  int
	UnusedRangeCount int
	FreeSize         int
}

func snapshotStats(allocator *Allocator, typeIndex int) DetailedStatsSnapshot {
	stats := allocator.PoolStatistics(typeIndex)
	return DetailedStatsSnapshot{
		ChunkCount:       stats.ChunkCount,
		ChunkBytes:       stats.ChunkBytes,
		AllocationCount:  stats.AllocationCount,
		AllocationBytes:  stats.AllocationBytes,
		UnusedRangeCount: stats.UnusedRangeCount,
		FreeSize:         allocator.SumFreeSize(typeIndex),
	}
}

func TestAllocNoOverlap(t *testing.T) {
	_, allocator := testAllocator(t, gputest.Config{}, CreateOptions{InitialGrowthSize: 4096})
	defer allocator.FreeAll()

	var handles []BlockHandle
	for i := 0; i < 20; i++ {
		handle, err := allocator.Alloc(AllocRequest{Size: 100 + i*10, Usage: UsageStaging})
		require.NoError(t, err)
		handles = append(handles, handle)
	}

	for i := 0; i < len(handles); i++ {
		for j := i + 1; j < len(handles); j++ {
			if handles[i].Memory() != handles[j].Memory() {
				continue
			}
			iEnd := handles[i].Offset() + handles[i].Size()
			jEnd := handles[j].Offset() + handles[j].Size()
			overlaps := handles[i].Offset() < jEnd && handles[j].Offset() < iEnd
			require.False(t, overlaps, "blocks %d and %d overlap", i, j)
		}
	}
	require.NoError(t, allocator.Validate())

	for _, handle := range handles {
		allocator.Free(handle)
	}
	require.NoError(t, allocator.Validate())
}

func TestAllocAlignment(t *testing.T) {
	_, allocator := testAllocator(t, gputest.Config{}, CreateOptions{})
	defer allocator.FreeAll()

	for _, alignment := range []int{1, 16, 64, 4096} {
		handle, err := allocator.Alloc(AllocRequest{Size: 10, Alignment: alignment, Usage: UsageStaging})
		require.NoError(t, err)
		require.Zero(t, handle.Offset()%alignment)
	}

	_, err := allocator.Alloc(AllocRequest{Size: 10, Alignment: 100, Usage: UsageStaging})
	require.Error(t, err)
}

func TestFreeCoalesces(t *testing.T) {
	_, allocator := testAllocator(t, gputest.Config{}, CreateOptions{InitialGrowthSize: 4096})
	defer allocator.FreeAll()

	a, err := allocator.Alloc(AllocRequest{Size: 256, Usage: UsageStaging})
	require.NoError(t, err)
	b, err := allocator.Alloc(AllocRequest{Size: 256, Usage: UsageStaging})
	require.NoError(t, err)
	c, err := allocator.Alloc(AllocRequest{Size: 256, Usage: UsageStaging})
	require.NoError(t, err)

	// Free the outer two first, leaving free-used-free, then the middle one.
	// All three must merge with the chunk tail into one region.
	allocator.Free(a)
	allocator.Free(c)
	stats := allocator.PoolStatistics(1)
	require.Equal(t, 2, stats.UnusedRangeCount)

	allocator.Free(b)
	stats = allocator.PoolStatistics(1)
	require.Equal(t, 1, stats.UnusedRangeCount)
	require.Equal(t, 0, stats.AllocationCount)
	require.NoError(t, allocator.Validate())
}

func TestGrowthMonotonic(t *testing.T) {
	_, allocator := testAllocator(t, gputest.Config{}, CreateOptions{InitialGrowthSize: 1024})
	defer allocator.FreeAll()

	require.Equal(t, 1024, allocator.GrowthSize(1))

	// A small request still doubles the growth size when it forces a new
	// chunk.
	_, err := allocator.Alloc(AllocRequest{Size: 100, Usage: UsageStaging})
	require.NoError(t, err)
	require.Equal(t, 2048, allocator.GrowthSize(1))

	// A request larger than the current growth size jumps to its power of
	// two.
	_, err = allocator.Alloc(AllocRequest{Size: 5000, Usage: UsageStaging})
	require.NoError(t, err)
	require.Equal(t, 8192, allocator.GrowthSize(1))

	// Requests served from existing chunks leave the growth size alone.
	_, err = allocator.Alloc(AllocRequest{Size: 100, Usage: UsageStaging})
	require.NoError(t, err)
	require.Equal(t, 8192, allocator.GrowthSize(1))
}

func TestFindMemoryTypeIndex(t *testing.T) {
	_, allocator := testAllocator(t, gputest.Config{}, CreateOptions{})

	deviceLocal, err := allocator.FindMemoryTypeIndex(0, gpu.MemoryPropertyDeviceLocal)
	require.NoError(t, err)
	require.Equal(t, 0, deviceLocal)

	staging, err := allocator.FindMemoryTypeIndex(0, gpu.MemoryPropertyHostVisible|gpu.MemoryPropertyHostCoherent)
	require.NoError(t, err)
	require.Equal(t, 1, staging)

	// Excluding the only suitable type via the bitmask must fail.
	_, err = allocator.FindMemoryTypeIndex(0b01, gpu.MemoryPropertyHostVisible)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNoSuitableMemoryType))
}

func TestAllocNoSuitableMemoryType(t *testing.T) {
	_, allocator := testAllocator(t, gputest.Config{
		MemoryTypes: []gpu.MemoryType{
			{PropertyFlags: gpu.MemoryPropertyDeviceLocal, HeapIndex: 0},
		},
	}, CreateOptions{})

	_, err := allocator.Alloc(AllocRequest{Size: 100, Usage: UsageStaging})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNoSuitableMemoryType))
}

func TestAllocOutOfDeviceMemory(t *testing.T) {
	_, allocator := testAllocator(t, gputest.Config{
		HeapLimits: []int{0, 4096},
	}, CreateOptions{InitialGrowthSize: 1024})
	defer allocator.FreeAll()

	// One growth of 2048 fits the 4096-byte heap; the next one cannot.
	_, err := allocator.Alloc(AllocRequest{Size: 2000, Usage: UsageStaging})
	require.NoError(t, err)

	_, err = allocator.Alloc(AllocRequest{Size: 2000, Usage: UsageStaging})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrOutOfDeviceMemory))
}

func TestAllocRejectsBadRequests(t *testing.T) {
	_, allocator := testAllocator(t, gputest.Config{}, CreateOptions{})

	_, err := allocator.Alloc(AllocRequest{Size: 0, Usage: UsageStaging})
	require.Error(t, err)

	_, err = allocator.Alloc(AllocRequest{Size: -5, Usage: UsageStaging})
	require.Error(t, err)
}

func TestCreateOptionsRejectsBadGrowth(t *testing.T) {
	device := gputest.NewDevice(gputest.Config{})
	_, err := New(device, CreateOptions{InitialGrowthSize: 1000})
	require.Error(t, err)
}

func TestAllocConcurrent(t *testing.T) {
	_, allocator := testAllocator(t, gputest.Config{}, CreateOptions{InitialGrowthSize: 4096})
	defer allocator.FreeAll()

	const workers = 8
	const iterations = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))

			var held []BlockHandle
			for i := 0; i < iterations; i++ {
				if len(held) > 0 && rng.Intn(2) == 0 {
					last := len(held) - 1
					allocator.Free(held[last])
					held = held[:last]
					continue
				}

				handle, err := allocator.Alloc(AllocRequest{
					Size:      1 + rng.Intn(2048),
					Alignment: 1 << rng.Intn(7),
					Usage:     UsageStaging,
				})
				if err != nil {
					t.Error(err)
					return
				}
				held = append(held, handle)
			}
			for _, handle := range held {
				allocator.Free(handle)
			}
		}(int64(w))
	}
	wg.Wait()

	require.NoError(t, allocator.Validate())
	stats := allocator.PoolStatistics(1)
	require.Equal(t, 0, stats.AllocationCount)
}

func TestBuildStatsString(t *testing.T) {
	_, allocator := testAllocator(t, gputest.Config{}, CreateOptions{})
	defer allocator.FreeAll()

	handle, err := allocator.Alloc(AllocRequest{Size: 100, Usage: UsageStaging})
	require.NoError(t, err)
	defer allocator.Free(handle)

	statsString := allocator.BuildStatsString(true)
	require.True(t, json.Valid(statsString))

	var parsed struct {
		Total struct {
			ChunkCount      int
			AllocationCount int
		}
		Pools map[string]struct {
			GrowthSize  int
			HostVisible bool
		}
	}
	require.NoError(t, json.Unmarshal(statsString, &parsed))
	require.Equal(t, 1, parsed.Total.ChunkCount)
	require.Equal(t, 1, parsed.Total.AllocationCount)
	require.Len(t, parsed.Pools, 2)
	require.True(t, parsed.Pools["1"].HostVisible)
}

func TestBufferRoundTrip(t *testing.T) {
	device, allocator := testAllocator(t, gputest.Config{}, CreateOptions{})
	defer allocator.FreeAll()

	buffer, err := NewBuffer(device, allocator, 512, gpu.BufferUsageTransferSrc, UsageStaging)
	require.NoError(t, err)

	payload := buffer.Bytes()
	require.Len(t, payload, 512)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.Equal(t, payload, gputest.Contents(buffer.Raw()))

	buffer.Destroy()
	buffer.Destroy() // second destroy is a no-op

	stats := allocator.PoolStatistics(1)
	require.Equal(t, 0, stats.AllocationCount)
}
