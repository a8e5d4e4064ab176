package sigproc

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utrading/utrading-finnhub-stream/pkg/goplus"
	"github.com/utrading/utrading-finnhub-stream/pkg/logger"
)

const DefaultTimeout = 30 * time.Second

type HandlerFunc func(os.Signal)

var exit = os.Exit

// GracefulShutdown 收到 SIGINT/SIGTERM/SIGQUIT 后执行 shutdown
// shutdown 返回或超时后退出进程，期间再收到信号立即退出
func GracefulShutdown(shutdown HandlerFunc) {
	GracefulShutdownTimeout(DefaultTimeout, shutdown)
}

func GracefulShutdownTimeout(timeout time.Duration, shutdown HandlerFunc) {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	goplus.Go(func() {
		waitAndExit(sigChan, timeout, shutdown)
	})
}

func waitAndExit(sigChan <-chan os.Signal, timeout time.Duration, shutdown HandlerFunc) {
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")

	done := make(chan struct{})
	goplus.Go(func() {
		defer close(done)
		shutdown(sig)
	})

	select {
	case <-done:
		logger.Info().Msg("shutdown complete")
	case <-time.After(timeout):
		logger.Warn().Dur("timeout", timeout).Msg("shutdown timed out")
	case sig = <-sigChan:
		logger.Warn().Str("signal", sig.String()).Msg("received second signal, exit now")
	}

	logger.Close()
	exit(0)
}
