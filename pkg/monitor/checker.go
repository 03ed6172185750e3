package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"
)

// Check dials host:port over TCP and reports reachability, the connect time
// in seconds, and a human-readable reason on failure. A successful dial is
// closed immediately, nothing is written to the remote side.
func Check(ctx context.Context, host string, port int, timeout time.Duration) (bool, float64, string) {
	start := time.Now()

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		var netErr net.Error
		switch {
		case errors.As(err, &netErr) && netErr.Timeout():
			return false, 0, fmt.Sprintf("Connection timeout after %gs", timeout.Seconds())
		case errors.Is(err, syscall.ECONNREFUSED):
			return false, 0, "Connection refused"
		default:
			return false, 0, err.Error()
		}
	}
	conn.Close()

	return true, time.Since(start).Seconds(), ""
}
