package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/tckz/visitor-counter/internal/config"
	"github.com/tckz/visitor-counter/internal/counter"
	"github.com/tckz/visitor-counter/internal/log"
	"github.com/tckz/visitor-counter/internal/verify"
	"github.com/tckz/visitor-counter/internal/visit"
	vh "github.com/tckz/vegetahelper"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
)

// Publishes visit events for visitor-counter-subscriber at a given rate, then
// checks that the counter rose by the number of events the broker accepted.

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optRate = &vh.RateFlag{
		Rate: &vegeta.Rate{
			Freq: 30,
			Per:  1 * time.Second,
		}}
	optDuration   = flag.Duration("duration", 10*time.Second, "Duration of the test [0 = forever]")
	optOutput     = flag.String("output", "", "/path/to/results.bin or 'stdout', empty to discard")
	optWorkers    = flag.Uint64("workers", vegeta.DefaultWorkers, "Number of workers")
	optConfirmers = flag.Int("confirmers", 30, "Number of goroutines waiting for publish results")
	optTopic      = flag.String("topic", "", "topic name")
	optSettle     = flag.Duration("settle", 30*time.Second, "How long to wait for the subscriber to count every event, 0 to skip the check")
)

func init() {
	godotenv.Load()

	flag.Var(optRate, "rate", "Number of requests per time unit")
	flag.Parse()

	logger = log.Must(log.NewSugared(myName, "info"))
}

type nopWriteCloser struct {
	io.Writer
}

func (c nopWriteCloser) Close() error {
	return nil
}

func openResultFile(out string) (io.WriteCloser, error) {
	switch out {
	case "":
		return &nopWriteCloser{io.Discard}, nil
	case "stdout":
		return &nopWriteCloser{os.Stdout}, nil
	default:
		return os.Create(out)
	}
}

func main() {
	if *optTopic == "" {
		logger.Fatalf("*** --topic must be specified.")
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

	c, err := counter.Open(ctx, cfg)
	if err != nil {
		logger.Fatalf("*** counter.Open: %v", err)
	}
	defer c.Close()

	before, err := c.Get(ctx)
	if err != nil {
		logger.Fatalf("*** Get: %v", err)
	}

	cl, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Fatalf("*** pubsub.NewClient: %v", err)
	}
	defer cl.Close()

	topic := cl.Topic(*optTopic)
	topic.PublishSettings.NumGoroutines = *optConfirmers
	defer topic.Stop()

	// Not tied to ctx: events already handed to the topic are still confirmed after SIGINT.
	p := visit.NewPublisher(context.Background(), func(ctx context.Context, data []byte) visit.Result {
		return topic.Publish(ctx, &pubsub.Message{Data: data})
	}, *optConfirmers)

	atk := vh.NewAttacker(func(ctx context.Context) (result *vh.HitResult, retErr error) {
		if err := p.Publish(ctx); err != nil {
			if errors.Is(err, visit.ErrStopped) {
				// A publish was rejected; stop the attack instead of piling up errors.
				cancel()
			}
			return nil, err
		}
		return result, nil
	}, vh.WithWorkers(*optWorkers))
	res := atk.Attack(ctx, *optRate.Rate, *optDuration, "visitor-counter-publish")

	out, err := openResultFile(*optOutput)
	if err != nil {
		logger.Fatal(err)
	}
	defer out.Close()
	enc := vegeta.NewEncoder(out)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT)

loop:
	for {
		select {
		case s := <-sig:
			logger.Infof("Received signal: %s", s)
			cancel()
			// keep loop until 'res' is closed.
		case r, ok := <-res:
			if !ok {
				break loop
			}
			if err := enc.Encode(r); err != nil {
				logger.Errorf("*** Encode: %v", err)
				cancel()
			}
		}
	}

	logger.Infof("waiting goroutines for res.Get exit")
	published, err := p.Wait()
	if err != nil {
		logger.Errorf("Wait: %v", err)
	}
	logger.Infof("published=%d", published)

	if *optSettle == 0 {
		return
	}

	sctx, scancel := context.WithTimeout(context.Background(), *optSettle)
	defer scancel()
	after, err := verify.Settle(sctx, c, before+published, time.Second)
	if err != nil {
		logger.Fatalf("*** Settle: %v", err)
	}

	if after != before+published {
		// More than expected is another publisher or a redelivery counted twice.
		logger.Errorf("*** count went from %d to %d, want %d", before, after, before+published)
		scancel()
		out.Close()
		os.Exit(1)
	}
	logger.Infof("count went from %d to %d", before, after)
}
