package connactor

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/jonboulle/clockwork"
)

// ListenerConfig configures Serve.
type ListenerConfig struct {
	Listener net.Listener
	Sink     EventSink
	Logger   *slog.Logger
	Clock    clockwork.Clock

	TicketBuffer int
}

func (c *ListenerConfig) Validate() error {
	if c.Listener == nil {
		return errors.New("listener is required")
	}
	if c.Sink == nil {
		return errors.New("sink is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Serve accepts connections on cfg.Listener until ctx is cancelled, spawning
// one Actor per connection. It closes the listener on return. Grounded on
// indexer/pkg/server's accept-loop-plus-shutdown-goroutine shape, adapted
// from an HTTP server to a raw TCP accept loop.
func Serve(ctx context.Context, cfg ListenerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := cfg.Logger
	defer cfg.Listener.Close()

	go func() {
		<-ctx.Done()
		cfg.Listener.Close()
	}()

	for {
		conn, err := cfg.Listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				log.Info("listener closed: context cancelled")
				return nil
			default:
				log.Error("accept failed", "error", err)
				return err
			}
		}

		actor, err := New(Config{
			Conn:         conn,
			Sink:         cfg.Sink,
			Logger:       log,
			Clock:        cfg.Clock,
			TicketBuffer: cfg.TicketBuffer,
		})
		if err != nil {
			log.Error("failed to construct connection actor", "error", err)
			conn.Close()
			continue
		}

		go safeRun(log, actor, ctx)
	}
}

// safeRun wraps one connection actor's Run with panic recovery so a bug in
// one connection's handling can't take down every other connection,
// mirroring geoip/view.go's safeRefresh wrapper around its refresh ticker.
func safeRun(log *slog.Logger, actor *Actor, ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("connection actor panicked", "panic", r)
		}
	}()
	if err := actor.Run(ctx); err != nil {
		log.Error("connection actor exited with error", "error", err)
	}
}
