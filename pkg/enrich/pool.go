package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultItemTimeout is the wall-clock budget one document gets before it is
// abandoned.
const DefaultItemTimeout = 10 * time.Second

// TaskKind selects the parser applied to a fetched document.
type TaskKind int

const (
	TaskArticle TaskKind = iota
	TaskImage
)

// Task is one external reference to enrich.
type Task struct {
	URL  string
	Kind TaskKind
}

// Record is one successful enrichment, keyed by the normalized URL. Exactly
// one of Article and Image is set, matching the task kind.
type Record struct {
	URL     string
	Article *Article
	Image   *Image
}

// Stats counts pool activity. Individual item failures are expected and
// silent; these counters are how their rate stays observable.
type Stats struct {
	Submitted int64
	Succeeded int64
	Failed    int64
	TimedOut  int64
}

// PanicError wraps a panic raised inside a worker as an error.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Pool is a fixed-size worker pool that fetches and parses external
// documents. Results are produced in completion order, not submission order;
// consumers correlate them by the URL field of each record.
type Pool struct {
	workers int
	timeout time.Duration
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewPool creates a pool. Non-positive workers defaults to the available
// parallelism; a non-positive timeout defaults to DefaultItemTimeout.
func NewPool(workers int, timeout time.Duration, fetcher *Fetcher, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if timeout <= 0 {
		timeout = DefaultItemTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{workers: workers, timeout: timeout, fetcher: fetcher, logger: logger}
}

// Process runs every task through the pool and blocks until the pool drains.
// A task that times out, fails, or parses to an empty document is dropped;
// one failing item never fails the batch. Process itself errs only when the
// context is cancelled before the pool drains.
func (p *Pool) Process(ctx context.Context, tasks []Task) ([]Record, Stats, error) {
	var stats Stats
	if len(tasks) == 0 {
		return nil, stats, nil
	}
	stats.Submitted = int64(len(tasks))

	taskCh := make(chan Task, len(tasks))
	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	var (
		mu      sync.Mutex
		records []Record
		wg      sync.WaitGroup
	)

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-taskCh:
					if !ok {
						return
					}
					record, err := p.runTask(ctx, task)
					switch {
					case err == nil:
						atomic.AddInt64(&stats.Succeeded, 1)
						mu.Lock()
						records = append(records, *record)
						mu.Unlock()
					case errors.Is(err, context.DeadlineExceeded):
						atomic.AddInt64(&stats.TimedOut, 1)
						p.logger.Debug("enrichment item timed out", "url", task.URL)
					default:
						atomic.AddInt64(&stats.Failed, 1)
						p.logger.Debug("enrichment item dropped", "url", task.URL, "error", err)
					}
				}
			}
		}()
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return records, stats, err
	}
	return records, stats, nil
}

// runTask fetches and parses one document under the per-item timeout. Panics
// inside the fetch or parse are recovered into errors so a hostile document
// cannot take the pool down.
func (p *Pool) runTask(ctx context.Context, task Task) (record *Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, StackTrace: string(debug.Stack())}
			p.logger.Error("recovered from panic in enrichment worker", "url", task.URL, "panic", r)
		}
	}()

	itemCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	normalized := NormalizeURL(task.URL)
	body, err := p.fetcher.Fetch(itemCtx, normalized)
	if err != nil {
		// Surface the timeout distinctly; every other failure is equal.
		if itemCtx.Err() != nil && ctx.Err() == nil {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}

	switch task.Kind {
	case TaskArticle:
		article, err := ParseArticle(body, normalized)
		if err != nil {
			return nil, err
		}
		return &Record{URL: normalized, Article: article}, nil
	case TaskImage:
		img, err := DecodeImage(body, normalized)
		if err != nil {
			return nil, err
		}
		return &Record{URL: normalized, Image: img}, nil
	default:
		return nil, fmt.Errorf("unknown task kind %d", task.Kind)
	}
}
