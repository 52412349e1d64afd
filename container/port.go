package container

import (
	"math/rand"
	"sync"
)

const (
	MinRPCPort = 49152
	MaxRPCPort = 65534
)

var (
	portMu    sync.Mutex
	allocated = make(map[int]struct{})
)

// AllocateUniquePort picks a random port in [MinRPCPort, MaxRPCPort] that this
// process has not handed out before. Other processes are not coordinated with,
// so collisions across concurrently running test binaries remain possible.
func AllocateUniquePort() int {
	portMu.Lock()
	defer portMu.Unlock()

	span := MaxRPCPort - MinRPCPort + 1
	if len(allocated) >= span {
		// every port was used once, start over
		allocated = make(map[int]struct{})
	}

	for {
		port := MinRPCPort + rand.Intn(span)
		if _, ok := allocated[port]; ok {
			continue
		}
		allocated[port] = struct{}{}
		return port
	}
}
