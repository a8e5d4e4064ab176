package goplus

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/utrading/utrading-finnhub-stream/pkg/logger"
)

const maxStackDepth = 32

// Recover 捕获 panic 并记录调用栈，只能在 defer 中直接调用
func Recover() {
	r := recover()
	if r == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "panic: %v\ncallers:\n", r)
	for i := 2; i <= maxStackDepth; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fmt.Fprintf(&sb, "%s:%d\n", file, line)
	}

	logger.Error().Msg(sb.String())
}
