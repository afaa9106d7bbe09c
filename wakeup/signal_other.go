//go:build !linux

package wakeup

import (
	"fmt"
	"os"
)

// osSender is the non-Linux fallback: best-effort delivery through the
// standard os.Signal machinery, which on most non-Linux targets Go
// actually supports sending (unlike arbitrary real-time signals).
type osSender struct{}

// NewOSSender returns the platform's real Sender.
func NewOSSender() Sender { return osSender{} }

func (osSender) Send(pid int32, _ SignalKind, _ int) error {
	if pid <= 0 {
		return fmt.Errorf("wakeup: refusing to signal invalid pid %d", pid)
	}
	proc, err := os.FindProcess(int(pid))
	if err != nil {
		return err
	}
	return proc.Signal(os.Interrupt)
}
