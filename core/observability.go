package core

// ExecutorStats represents runtime observability state for an executor.
type ExecutorStats struct {
	Name     string
	Type     string
	Pending  int
	Running  int
	Rejected int64
	Closed   bool
}

// PoolStats represents runtime observability state for a dispatch pool.
type PoolStats struct {
	ID      string
	Workers int
	Queued  int
	Active  int
	Running bool
}
