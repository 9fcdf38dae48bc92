package core

import (
	"container/heap"
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// JobItem pairs an admitted job with the QoS it was admitted under.
type JobItem struct {
	Job Job
	QoS QoS
}

// JobQueue defines the interface for the executors' admission queues.
type JobQueue interface {
	Push(j Job, qos QoS)
	Pop() (JobItem, bool)
	Len() int
	IsEmpty() bool
	Clear() // Clear all jobs from the queue
}

// =============================================================================
// FIFOJobQueue: Unbounded FIFO admission queue
// =============================================================================

type FIFOJobQueue struct {
	mu   sync.Mutex
	jobs []JobItem
}

func NewFIFOJobQueue() *FIFOJobQueue {
	return &FIFOJobQueue{
		jobs: make([]JobItem, 0, defaultQueueCap),
	}
}

func (q *FIFOJobQueue) Push(j Job, qos QoS) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, JobItem{Job: j, QoS: qos})
}

func (q *FIFOJobQueue) Pop() (JobItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return JobItem{}, false
	}

	item := q.jobs[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.jobs[0] = JobItem{}
	q.jobs = q.jobs[1:]
	q.maybeCompactLocked()

	return item, true
}

// maybeCompactLocked reallocates the backing array when most of it is dead
// space left behind by Pop's re-slicing.
func (q *FIFOJobQueue) maybeCompactLocked() {
	n := len(q.jobs)
	c := cap(q.jobs)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.jobs = make([]JobItem, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]JobItem, n, newCap)
	copy(newSlice, q.jobs)
	q.jobs = newSlice
}

func (q *FIFOJobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func (q *FIFOJobQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all jobs from the queue and releases references
func (q *FIFOJobQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = make([]JobItem, 0, defaultQueueCap)
}

// =============================================================================
// PriorityJobQueue: Min-Heap based queue with Stability (FIFO within a QoS)
// =============================================================================

type priorityItem struct {
	JobItem
	sequence uint64 // For stability
	index    int    // For heap
}

// priorityHeap implements heap.Interface
type priorityHeap []*priorityItem

func (h priorityHeap) Len() int { return len(h) }

// Less implements priority logic: High QoS first, then Small sequence first (FIFO)
func (h priorityHeap) Less(i, j int) bool {
	// Highest QoS first (e.g., Interactive > Background)
	if h[i].QoS > h[j].QoS {
		return true
	}
	if h[i].QoS < h[j].QoS {
		return false
	}
	// Same QoS: earlier sequence first (FIFO)
	return h[i].sequence < h[j].sequence
}

func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *priorityHeap) Push(x interface{}) {
	n := len(*h)
	item := x.(*priorityItem)
	item.index = n
	*h = append(*h, item)
}

func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // Avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

type PriorityJobQueue struct {
	mu           sync.Mutex
	pq           priorityHeap
	nextSequence uint64
}

func NewPriorityJobQueue() *PriorityJobQueue {
	return &PriorityJobQueue{
		pq: make(priorityHeap, 0, defaultQueueCap),
	}
}

func (q *PriorityJobQueue) Push(j Job, qos QoS) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := &priorityItem{
		JobItem:  JobItem{Job: j, QoS: qos},
		sequence: q.nextSequence,
	}
	q.nextSequence++

	heap.Push(&q.pq, item)
}

func (q *PriorityJobQueue) Pop() (JobItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pq) == 0 {
		return JobItem{}, false
	}

	item := heap.Pop(&q.pq).(*priorityItem)
	return item.JobItem, true
}

func (q *PriorityJobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}

func (q *PriorityJobQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all jobs from the queue and releases references
func (q *PriorityJobQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pq = make(priorityHeap, 0, defaultQueueCap)
	heap.Init(&q.pq)
	q.nextSequence = 0
}
