package wakeup

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// osSender delivers a real SIGUSR1 to the target pid via unix.Kill. The
// slot hint isn't part of the signal itself (a Unix signal carries no
// payload); the receiving backend re-derives which slot woke it by
// comparing backend[self].position against head once it wakes.
type osSender struct{}

// NewOSSender returns the platform's real Sender.
func NewOSSender() Sender { return osSender{} }

func (osSender) Send(pid int32, _ SignalKind, _ int) error {
	if pid <= 0 {
		return fmt.Errorf("wakeup: refusing to signal invalid pid %d", pid)
	}
	return unix.Kill(int(pid), unix.SIGUSR1)
}
