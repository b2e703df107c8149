package ecs

import (
	"container/heap"
	"fmt"
)

// EntityHandle addresses a slot in the entity pool. Generation invalidates
// stale handles once the slot has been freed and reused.
type EntityHandle struct {
	Index      uint32
	Generation uint32
}

func (h EntityHandle) String() string {
	return fmt.Sprintf("%d:%d", h.Index, h.Generation)
}

// EntityPool manages entity allocation with generational indices. Freed slots
// are kept in a min-heap so the lowest freed index is always reused first.
type EntityPool struct {
	generations []uint32
	alive       []bool
	freeList    indexHeap
	live        int
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 0, 1024),
		alive:       make([]bool, 0, 1024),
		freeList:    make(indexHeap, 0, 256),
	}
}

// Create allocates a slot. A reused slot gets its generation bumped; a fresh
// slot starts at generation 0.
func (p *EntityPool) Create() EntityHandle {
	p.live++
	if p.freeList.Len() > 0 {
		idx := heap.Pop(&p.freeList).(uint32)
		p.generations[idx]++
		p.alive[idx] = true
		return EntityHandle{Index: idx, Generation: p.generations[idx]}
	}
	idx := uint32(len(p.generations))
	p.generations = append(p.generations, 0)
	p.alive = append(p.alive, true)
	return EntityHandle{Index: idx}
}

func (p *EntityPool) Alive(h EntityHandle) bool {
	if int(h.Index) >= len(p.generations) {
		return false
	}
	return p.alive[h.Index] && p.generations[h.Index] == h.Generation
}

func (p *EntityPool) Destroy(h EntityHandle) error {
	if !p.Alive(h) {
		return fmt.Errorf("destroy %s: %w", h, ErrInvalidHandle)
	}
	p.alive[h.Index] = false
	heap.Push(&p.freeList, h.Index)
	p.live--
	return nil
}

// Len returns the number of live entities.
func (p *EntityPool) Len() int { return p.live }

// Cap returns the number of slots ever allocated.
func (p *EntityPool) Cap() int { return len(p.generations) }

// Reset frees every slot. Generations are kept so handles issued before the
// reset never validate again.
func (p *EntityPool) Reset() {
	p.freeList = p.freeList[:0]
	for i := range p.alive {
		p.alive[i] = false
		p.freeList = append(p.freeList, uint32(i))
	}
	heap.Init(&p.freeList)
	p.live = 0
}

type indexHeap []uint32

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(uint32)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
