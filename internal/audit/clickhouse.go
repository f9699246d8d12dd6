package audit

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const (
	bufferSize    = 10_000
	flushInterval = 100 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
)

// ClickHouseRecorder writes audit entries to ClickHouse asynchronously.
// Record() is non-blocking; entries are buffered and batch-inserted in a
// background goroutine. Sink failures are reported through errHook so
// observability subscribers can alert on them without failing any tool call.
type ClickHouseRecorder struct {
	conn    driver.Conn
	buffer  chan *Entry
	done    chan struct{}
	flushed chan struct{} // closed by flushLoop when it returns
	errHook func(error)
	logger  *zap.Logger
}

// NewClickHouseRecorder connects to ClickHouse and starts the flush loop.
// errHook may be nil.
func NewClickHouseRecorder(dsn string, errHook func(error), logger *zap.Logger) (*ClickHouseRecorder, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	if errHook == nil {
		errHook = func(error) {}
	}

	r := &ClickHouseRecorder{
		conn:    conn,
		buffer:  make(chan *Entry, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		errHook: errHook,
		logger:  logger,
	}

	go r.flushLoop()
	return r, nil
}

// Record queues an entry for async insertion. Non-blocking: drops the entry
// if the buffer is full.
func (r *ClickHouseRecorder) Record(e *Entry) {
	select {
	case r.buffer <- e:
	default:
		r.logger.Warn("audit buffer full, dropping entry",
			zap.String("request_id", e.RequestID),
		)
		r.errHook(errBufferFull)
	}
}

// Close signals the flush loop to drain remaining entries and waits for it.
// Safe to call once.
func (r *ClickHouseRecorder) Close() {
	close(r.done)
	<-r.flushed
}

func (r *ClickHouseRecorder) flushLoop() {
	defer close(r.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*Entry, 0, flushBatch)

	for {
		select {
		case e := <-r.buffer:
			batch = append(batch, e)
			if len(batch) >= flushBatch {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-r.done:
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case e := <-r.buffer:
					batch = append(batch, e)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				r.flush(batch)
			}
			return
		}
	}
}

func (r *ClickHouseRecorder) flush(entries []*Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO audit_log (
			request_id, actor, action, target_type, target_id,
			outcome, timestamp, metadata
		)
	`)
	if err != nil {
		r.logger.Error("audit prepare batch failed", zap.Error(err))
		r.errHook(err)
		return
	}

	for _, e := range entries {
		if err := batch.Append(
			e.RequestID,
			e.Actor,
			e.Action,
			e.TargetType,
			e.TargetID,
			e.Outcome,
			e.Timestamp,
			e.Metadata,
		); err != nil {
			r.logger.Error("audit append entry failed",
				zap.String("request_id", e.RequestID),
				zap.Error(err),
			)
			r.errHook(err)
		}
	}

	if err := batch.Send(); err != nil {
		r.logger.Error("audit batch send failed",
			zap.Int("batch_size", len(entries)),
			zap.Error(err),
		)
		r.errHook(err)
	}
}

var errBufferFull = bufferFullError{}

type bufferFullError struct{}

func (bufferFullError) Error() string { return "audit buffer full" }
