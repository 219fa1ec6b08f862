package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/tckz/visitor-counter/internal/log"
	"github.com/tckz/visitor-counter/internal/verify"
	vh "github.com/tckz/vegetahelper"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
)

// Hits a deployed counter concurrently and checks that every returned count
// is distinct and that they form one run without gaps.

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

// maxLogged bounds the duplicates and gaps written to the log.
const maxLogged = 20

var (
	optRate = &vh.RateFlag{
		Rate: &vegeta.Rate{
			Freq: 30,
			Per:  1 * time.Second,
		}}
	optDuration = flag.Duration("duration", 10*time.Second, "Duration of the test [0 = forever]")
	optOutput   = flag.String("output", "", "/path/to/results.bin or 'stdout', empty to discard")
	optWorkers  = flag.Uint64("workers", vegeta.DefaultWorkers, "Number of workers")
	optLogLevel = flag.String("log-level", "info", "info|warn|error")
	optTarget   = flag.String("target", "", "URL of the counter")
	optAudience = flag.String("audience", "", "aud of the ID token sent with each request, empty for none")
	optTimeout  = flag.Duration("timeout", 10*time.Second, "Timeout of each request")
)

func init() {
	godotenv.Load()

	flag.Var(optRate, "rate", "Number of requests per time unit")
	flag.Parse()

	logger = log.Must(log.NewSugared(myName, *optLogLevel))
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

func newHTTPClient(ctx context.Context) (*http.Client, error) {
	if *optAudience == "" {
		return &http.Client{Timeout: *optTimeout}, nil
	}

	// The caller must be a service account; see GOOGLE_APPLICATION_CREDENTIALS.
	ts, err := idtoken.NewTokenSource(ctx, *optAudience)
	if err != nil {
		return nil, fmt.Errorf("idtoken.NewTokenSource: %w", err)
	}

	cl := oauth2.NewClient(ctx, ts)
	cl.Timeout = *optTimeout
	return cl, nil
}

func hit(ctx context.Context, cl *http.Client, tracker *verify.Tracker) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *optTarget, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := cl.Do(req)
	if err != nil {
		tracker.Fail()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		tracker.Fail()
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("status=%d", resp.StatusCode)
	}

	var body struct {
		Count *int64 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Count == nil {
		tracker.Fail()
		return fmt.Errorf("unexpected body: %v", err)
	}

	tracker.Record(*body.Count)
	return nil
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)

	if *optTarget == "" {
		logger.Fatalf("*** --target must be specified.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cl, err := newHTTPClient(ctx)
	if err != nil {
		logger.Fatalf("*** newHTTPClient: %v", err)
	}

	tracker := verify.NewTracker()
	atk := vh.NewAttacker(func(ctx context.Context) (result *vh.HitResult, retErr error) {
		if err := hit(ctx, cl, tracker); err != nil {
			return nil, err
		}
		return result, nil
	}, vh.WithWorkers(*optWorkers))
	res := atk.Attack(ctx, *optRate.Rate, *optDuration, "visitor-counter")

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
				break loop
			}
		}
	}

	cancel()

	s := tracker.Summary()
	if !s.OK() {
		logger.With(
			zap.Int64s("duplicates", s.Duplicates[:min(len(s.Duplicates), maxLogged)]),
			zap.Stringers("gaps", s.Gaps[:min(len(s.Gaps), maxLogged)]),
		).Errorf("*** not serialized: %s", s)
		out.Close()
		os.Exit(1)
	}
	logger.Infof("serialized: %s", s)
}
