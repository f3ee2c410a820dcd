package asyncio

import (
	"fmt"
	"strings"
)

// framed is implemented by every *Task[R] so DumpCallstack can walk a chain
// of awaiters without itself needing a type parameter.
type framed interface {
	Runner
	frame() (file string, line int, id HandleID)
	parentRunner() Runner
}

// DumpCallstack renders the chain of tasks awaiting one another back to the
// caller, innermost first, as "file:line (handle N)" entries. It only sees
// parent links recorded by [Await], so a task scheduled but never awaited
// by anyone appears as a chain of one.
func DumpCallstack(ctx *TaskContext) string {
	var b strings.Builder
	r := ctx.s.selfRunner()
	for {
		f, ok := r.(framed)
		if !ok {
			break
		}
		file, line, id := f.frame()
		fmt.Fprintf(&b, "%s:%d (handle %d)\n", file, line, id)
		parent := f.parentRunner()
		if parent == nil {
			break
		}
		r = parent
	}
	return b.String()
}
