package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"github.com/tckz/visitor-counter/internal/config"
	"github.com/tckz/visitor-counter/internal/counter"
	"github.com/tckz/visitor-counter/internal/handler"
	"github.com/tckz/visitor-counter/internal/log"
	"go.uber.org/zap"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optShutdownTimeout = flag.Duration("shutdown-timeout", 10*time.Second, "Time to wait for in-flight requests on shutdown")
)

func init() {
	godotenv.Load()

	flag.Parse()

	// Until the configured level is known, log at info.
	logger = log.Must(log.NewSugared(myName, "info"))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("*** config.Load: %v", err)
	}

	logger = log.Must(log.NewSugared(myName, cfg.LogLevel))
	logger.Infof("ver=%s, args=%s, backend=%s, table=%s", version, os.Args, cfg.Backend, cfg.Table)

	// One store client per process, shared by every invocation.
	c, err := counter.Open(context.Background(), cfg)
	if err != nil {
		logger.Fatalf("*** counter.Open: %v", err)
	}
	defer c.Close()

	h := handler.New(c, logger)

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		lambda.Start(h.HandleLambda)
		return
	}

	if err := serve(h, cfg.Port); err != nil {
		logger.Errorf("*** serve: %v", err)
	}
	logger.Infof("done")
}

func serve(h *handler.CounterHandler, port string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	chErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", srv.Addr)
		chErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-chErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Infof("Received signal, shutting down")
	}

	sctx, scancel := context.WithTimeout(context.Background(), *optShutdownTimeout)
	defer scancel()
	return srv.Shutdown(sctx)
}
