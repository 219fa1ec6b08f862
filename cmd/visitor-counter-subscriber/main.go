package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/tckz/visitor-counter/internal/config"
	"github.com/tckz/visitor-counter/internal/counter"
	"github.com/tckz/visitor-counter/internal/handler"
	"github.com/tckz/visitor-counter/internal/log"
	"github.com/tckz/visitor-counter/internal/marker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Counts visits delivered as Pub/Sub messages: one message, one increment.

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optWorkers      = flag.Int("workers", 4, "Number of Receive loops")
	optSubscription = flag.String("subscription", "", "subscription name")
	optMarkerTTL    = flag.Duration("marker-ttl", 10*time.Minute, "How long a processed message id is remembered")
)

func init() {
	godotenv.Load()

	flag.Parse()

	// Until the configured level is known, log at info.
	logger = log.Must(log.NewSugared(myName, "info"))
}

func main() {
	if *optSubscription == "" {
		logger.Fatalf("*** --subscription must be specified.")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("*** config.Load: %v", err)
	}

	logger = log.Must(log.NewSugared(myName, cfg.LogLevel))
	logger.Infof("ver=%s, args=%s", version, os.Args)
	defer logger.Infof("done")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Fatalf("*** pubsub.NewClient: %v", err)
	}
	defer cl.Close()

	c, err := counter.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("*** counter.Open: %v", err)
	}
	defer c.Close()

	var processMarker marker.ProcessMarker
	if cfg.RedisAddr == "" {
		processMarker = marker.NewLocalMarker(*optMarkerTTL)
	} else {
		rc := counter.NewRedisClient(cfg)
		defer rc.Close()
		processMarker = marker.NewRedisMarker(rc, cfg.Table, *optMarkerTTL)
	}

	h := handler.New(c, logger)

	eg, ctx := errgroup.WithContext(ctx)
	for i := 0; i < *optWorkers; i++ {
		eg.Go(func() error {
			subs := cl.Subscription(*optSubscription)
			return subs.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
				if h.HandleEvent(ctx, processMarker, msg.ID) {
					msg.Ack()
				} else {
					msg.Nack()
				}
			})
		})
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Infof("Received signal: %v", s)
	case <-ctx.Done():
	}
	cancel()

	logger.Infof("Waiting goroutines exit")
	if err := eg.Wait(); err != nil {
		logger.Errorf("Wait: %v", err)
	}

	{
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		v, _ := c.Get(ctx)
		logger.Infof("Counter=%d", v)
	}
}
