// Package publisher sends computed trip results to NATS so other services
// can consume them.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/tripmcp/pkg/monitoring"
	"github.com/NERVsystems/tripmcp/pkg/tracing"
)

// Connection states reported through Options.OnStatus.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusClosed       = "closed"
)

// Options configures a NATSPublisher.
type Options struct {
	URL           string
	Name          string
	SubjectPrefix string
	Logger        *slog.Logger
	// OnStatus is called whenever the connection state changes.
	OnStatus func(status string, err error)
}

// NATSPublisher publishes JSON results on <prefix>.<mode>.
type NATSPublisher struct {
	nc       *nats.Conn
	prefix   string
	logger   *slog.Logger
	onStatus func(string, error)
}

// NewNATSPublisher connects to NATS. The connection reconnects on its own;
// state changes are logged and reported to OnStatus.
func NewNATSPublisher(opts Options) (*NATSPublisher, error) {
	if opts.URL == "" {
		return nil, errors.New("nats url is required")
	}
	p := &NATSPublisher{
		prefix:   strings.Trim(opts.SubjectPrefix, "."),
		logger:   opts.Logger,
		onStatus: opts.OnStatus,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "publisher")
	if p.prefix == "" {
		p.prefix = "trips.carbon"
	}
	name := opts.Name
	if name == "" {
		name = "tripmcp"
	}

	nc, err := nats.Connect(opts.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.logger.Warn("nats disconnected", "error", err)
			p.report(StatusDisconnected, err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			p.logger.Info("nats reconnected", "url", c.ConnectedUrlRedacted())
			p.report(StatusConnected, nil)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			p.logger.Info("nats closed")
			p.report(StatusClosed, nil)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	p.nc = nc
	p.report(StatusConnected, nil)
	p.logger.Info("nats connected", "url", nc.ConnectedUrlRedacted(), "subject_prefix", p.prefix)
	return p, nil
}

func (p *NATSPublisher) report(status string, err error) {
	if p.onStatus != nil {
		p.onStatus(status, err)
	}
}

// Subject returns the subject results for mode are published on.
func (p *NATSPublisher) Subject(mode string) string {
	return p.prefix + "." + subjectToken(mode)
}

// PublishResult marshals v and publishes it on the mode's subject with the
// caller's trace context in the message headers.
func (p *NATSPublisher) PublishResult(ctx context.Context, mode string, v any) error {
	subject := p.Subject(mode)
	ctx, span := tracing.StartSpan(ctx, "publisher.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String(tracing.AttrPublishSubject, subject),
		attribute.String(tracing.AttrTripMode, mode),
	)

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(msg.Header))

	start := time.Now()
	err = p.nc.PublishMsg(msg)
	monitoring.RecordPublish(time.Since(start), err == nil)
	if err != nil {
		tracing.RecordError(ctx, err)
		monitoring.RecordError("publisher", "publish")
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	p.logger.Debug("published result", "subject", subject, "bytes", len(data))
	return nil
}

// Ping round-trips to the server.
func (p *NATSPublisher) Ping(ctx context.Context) error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats %s", strings.ToLower(p.nc.Status().String()))
	}
	return p.nc.FlushWithContext(ctx)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("nats drain failed", "error", err)
		p.nc.Close()
	}
}

// headerCarrier adapts NATS headers to the OpenTelemetry TextMapCarrier.
type headerCarrier nats.Header

func (c headerCarrier) Get(key string) string { return nats.Header(c).Get(key) }

func (c headerCarrier) Set(key, val string) { nats.Header(c).Set(key, val) }

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

func subjectToken(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	// NATS tokens cannot contain spaces, wildcards or dots
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
