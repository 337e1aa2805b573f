package ports

import (
	"fmt"
	"math/rand"
	"net"
)

// FindAvailable returns startPort if it is free, otherwise probes
// random ports in [startPort, startPort+1000] and returns the first
// one that binds.
func FindAvailable(startPort int) (int, error) {
	if available(startPort) {
		return startPort, nil
	}

	maxPort := startPort + 1000
	if maxPort > 65535 {
		maxPort = 65535
	}
	if maxPort <= startPort {
		return 0, fmt.Errorf("port %d unavailable and no room to probe above it", startPort)
	}

	const attempts = 50
	for i := 0; i < attempts; i++ {
		candidate := startPort + rand.Intn(maxPort-startPort+1)
		if available(candidate) {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("no available port found in %d-%d after %d attempts", startPort, maxPort, attempts)
}

func available(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}
