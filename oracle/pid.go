package oracle

import (
	"hash/fnv"
	"sync"

	"github.com/teris-io/shortid"
)

// pidABC mirrors the teacher's short-identifier alphabet shape (64
// characters, matching shortid's own default length expectations).
const pidABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	pidGenMu sync.Mutex
	pidGen   = shortid.MustNew(1, pidABC, 0)
)

// GenPID returns a simulated backend pid for an in-process harness: a
// shortid-generated opaque identifier folded down to a non-negative
// int32, standing in for a real OS self_pid() the way Memory's callers
// otherwise have to invent one by hand.
func GenPID() int32 {
	pidGenMu.Lock()
	id := pidGen.MustGenerate()
	pidGenMu.Unlock()

	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int32(h.Sum32() & 0x7fffffff)
}
