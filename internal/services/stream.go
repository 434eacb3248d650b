package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlx/internal/shared"
	"golang.org/x/time/rate"
)

// StreamStatus classifies a [StreamMessage].
type StreamStatus int

const (
	StreamEvent        StreamStatus = iota // Payload holds one raw event
	StreamConnected                        // a connection was established
	StreamDisconnected                     // the connection failed; Err and RetryIn are set
	StreamResync                           // reconnected after a gap; events may have been missed
	StreamClosed                           // the stream stopped for good
)

func (s StreamStatus) String() string {
	switch s {
	case StreamEvent:
		return "event"
	case StreamConnected:
		return "connected"
	case StreamDisconnected:
		return "disconnected"
	case StreamResync:
		return "resync"
	case StreamClosed:
		return "closed"
	default:
		return fmt.Sprintf("StreamStatus(%d)", int(s))
	}
}

// StreamMessage is one item delivered by [Stream.Messages].
type StreamMessage struct {
	Status  StreamStatus
	Payload []byte
	Err     error
	Attempt int
	RetryIn time.Duration
}

// Source yields raw event payloads from one open connection.
type Source interface {
	Next() ([]byte, error)
	Close() error
}

// Dialer opens a [Source]. Implementations must make Next return once ctx is cancelled.
type Dialer interface {
	Dial(ctx context.Context) (Source, error)
	Name() string
}

// Backoff produces exponentially growing delays capped at Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	next    time.Duration
}

// Next returns the current delay and doubles the following one.
func (b *Backoff) Next() time.Duration {
	if b.next == 0 {
		b.next = b.Initial
	}
	d := b.next
	b.next = min(b.next*2, b.Max)
	return d
}

// Reset starts over from Initial.
func (b *Backoff) Reset() {
	b.next = 0
}

// StreamOpts configures reconnection.
type StreamOpts struct {
	Reconnect      bool
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Limiter        *rate.Limiter // caps connection attempts; default burst 3, one per 5s
	Buffer         int
}

// DefaultStreamOpts reconnects with 1s..30s backoff.
func DefaultStreamOpts() StreamOpts {
	return StreamOpts{Reconnect: true, BackoffInitial: time.Second, BackoffMax: 30 * time.Second}
}

// StreamOptsFromConfig reads the [stream] section of the config.
func StreamOptsFromConfig(c shared.StreamConfig) StreamOpts {
	return StreamOpts{
		Reconnect:      c.Reconnect,
		BackoffInitial: c.BackoffInitial.Duration,
		BackoffMax:     c.BackoffMax.Duration,
	}
}

// Stream keeps a single live connection to the event channel open and reconnects on failure.
//
// Messages are delivered in arrival order on one channel, which is closed after [Stream.Close]
// or when the stream gives up.
type Stream struct {
	dialer  Dialer
	opts    StreamOpts
	limiter *rate.Limiter
	logger  *log.Logger

	out    chan StreamMessage
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewStream creates a stream over dialer. It does not connect until [Stream.Start].
func NewStream(dialer Dialer, opts StreamOpts, logger *log.Logger) *Stream {
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = time.Second
	}
	if opts.BackoffMax < opts.BackoffInitial {
		opts.BackoffMax = opts.BackoffInitial
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(5*time.Second), 3)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Stream{
		dialer:  dialer,
		opts:    opts,
		limiter: limiter,
		logger:  logger.With("transport", dialer.Name()),
		out:     make(chan StreamMessage, opts.Buffer),
		done:    make(chan struct{}),
	}
}

// Start connects in the background and returns the message channel.
func (s *Stream) Start(ctx context.Context) <-chan StreamMessage {
	s.once.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		go s.run(ctx)
	})
	return s.out
}

// Messages returns the channel returned by [Stream.Start].
func (s *Stream) Messages() <-chan StreamMessage {
	return s.out
}

// Close stops the stream and waits for the connection to be released.
func (s *Stream) Close() {
	started := true
	s.once.Do(func() {
		started = false
		close(s.out)
		close(s.done)
	})
	if !started {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.out)

	backoff := Backoff{Initial: s.opts.BackoffInitial, Max: s.opts.BackoffMax}
	connectedBefore := false
	attempt := 0

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			s.emitFinal(ctx, err)
			return
		}
		attempt++

		src, err := s.dialer.Dial(ctx)
		if err == nil {
			backoff.Reset()
			s.logger.Info("stream connected", "attempt", attempt)
			if !s.emit(ctx, StreamMessage{Status: StreamConnected, Attempt: attempt}) {
				src.Close()
				return
			}
			if connectedBefore && !s.emit(ctx, StreamMessage{Status: StreamResync, Attempt: attempt}) {
				src.Close()
				return
			}
			connectedBefore = true
			attempt = 0

			err = s.pump(ctx, src)
			src.Close()
		}

		if ctx.Err() != nil {
			s.emitFinal(ctx, ctx.Err())
			return
		}

		if !errors.Is(err, shared.ErrTransport) {
			err = fmt.Errorf("%w: %v", shared.ErrTransport, err)
		}

		if !s.opts.Reconnect {
			s.logger.Error("stream lost", "err", err)
			s.emit(ctx, StreamMessage{Status: StreamClosed, Err: err})
			return
		}

		wait := backoff.Next()
		s.logger.Warn("stream lost, reconnecting", "err", err, "retry_in", wait)
		if !s.emit(ctx, StreamMessage{Status: StreamDisconnected, Err: err, Attempt: attempt, RetryIn: wait}) {
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.emitFinal(ctx, ctx.Err())
			return
		case <-timer.C:
		}
	}
}

func (s *Stream) pump(ctx context.Context, src Source) error {
	for {
		payload, err := src.Next()
		if err != nil {
			return err
		}
		if len(payload) == 0 {
			continue
		}
		if !s.emit(ctx, StreamMessage{Status: StreamEvent, Payload: payload}) {
			return ctx.Err()
		}
	}
}

// emit delivers m unless the stream is being torn down.
func (s *Stream) emit(ctx context.Context, m StreamMessage) bool {
	select {
	case s.out <- m:
		return true
	case <-ctx.Done():
		return false
	}
}

// emitFinal reports the terminal state without blocking a consumer that has gone away.
func (s *Stream) emitFinal(_ context.Context, err error) {
	select {
	case s.out <- StreamMessage{Status: StreamClosed, Err: fmt.Errorf("%w: %v", shared.ErrStreamClosed, err)}:
	default:
	}
	s.logger.Info("stream closed")
}

// streamURL appends the api_key query parameter the event stream authenticates with.
func streamURL(base, path, apiKey string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return base + path + sep + "api_key=" + url.QueryEscape(apiKey)
}
