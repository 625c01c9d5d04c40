// Package dblock serialises test binaries that share the integration database.
// go test runs packages in parallel, and the service tests truncate tables the
// repository tests write to.
package dblock

import (
	"net"
	"time"
)

const lockAddr = "127.0.0.1:45432"

// Acquire blocks until this process holds the lock and returns its release func.
func Acquire() func() {
	for {
		ln, err := net.Listen("tcp", lockAddr)
		if err == nil {
			return func() { ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
