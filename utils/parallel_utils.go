package utils

import (
	"runtime"
	"sync"
)

type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

// NewParallelPartition picks the parallel degree from a process limit (0 means all
// CPUs), never using more buckets than there are items
func NewParallelPartition(ProcLimit, maxIndex int) (pm *PartitionMap) {
	var (
		NP = ProcLimit
	)
	if NP <= 0 {
		NP = runtime.NumCPU()
	}
	if NP > maxIndex {
		NP = maxIndex
	}
	if NP < 1 {
		NP = 1
	}
	return NewPartitionMap(NP, maxIndex)
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// This routine splits one dimension into c.ParallelDegree pieces, with a maximum imbalance of one item
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}

// Run executes fn once per bucket, one go routine each, and waits for all of them
func (pm *PartitionMap) Run(fn func(bucket, kMin, kMax int)) {
	var (
		wg sync.WaitGroup
	)
	if pm.ParallelDegree == 1 {
		kMin, kMax := pm.GetBucketRange(0)
		fn(0, kMin, kMax)
		return
	}
	for np := 0; np < pm.ParallelDegree; np++ {
		kMin, kMax := pm.GetBucketRange(np)
		wg.Add(1)
		go func(np, kMin, kMax int) {
			defer wg.Done()
			fn(np, kMin, kMax)
		}(np, kMin, kMax)
	}
	wg.Wait()
}
