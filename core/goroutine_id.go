package core

import "runtime"

// currentGoroutineID parses the current goroutine's id out of its stack
// header ("goroutine 123 [running]:"). The affinity executor's worker pins
// itself to an OS thread, so the worker's goroutine id doubles as the stable
// thread identity reported to callers and tests.
func currentGoroutineID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	var id uint64
	for i := len("goroutine "); i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			break
		}
		id = id*10 + uint64(b[i]-'0')
	}
	return id
}
