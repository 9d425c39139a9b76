//go:build !unix

package watch

import (
	"fmt"
	"syscall"
)

func signalName(sig syscall.Signal) string {
	return fmt.Sprintf("SIG%d", int(sig))
}
