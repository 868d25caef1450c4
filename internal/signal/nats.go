package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/five82/lotwatch/internal/logfields"
	"github.com/five82/lotwatch/internal/syncstore"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "lotwatch"

// Subjects names the NATS subjects under one prefix.
type Subjects struct {
	Revalidate string
	Optimistic string
}

// SubjectsFor returns <prefix>.revalidate and <prefix>.optimistic.
func SubjectsFor(prefix string) Subjects {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return Subjects{
		Revalidate: prefix + ".revalidate",
		Optimistic: prefix + ".optimistic",
	}
}

// Connect dials NATS with reconnects enabled and connection events logged.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("lotwatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// Bridge relays revalidation and optimistic patch messages from NATS onto a Bus.
type Bridge struct {
	bus      *Bus
	subjects Subjects
	logger   *slog.Logger
	subs     []*nats.Subscription
}

// NewBridge builds an unsubscribed bridge; call Subscribe to start relaying.
func NewBridge(bus *Bus, prefix string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{bus: bus, subjects: SubjectsFor(prefix), logger: logger}
}

// Subscribe attaches the bridge to conn.
func (b *Bridge) Subscribe(conn *nats.Conn) error {
	if conn == nil {
		return fmt.Errorf("nats connection is nil")
	}
	for _, subject := range []string{b.subjects.Revalidate, b.subjects.Optimistic} {
		sub, err := conn.Subscribe(subject, b.Handle)
		if err != nil {
			_ = b.Close()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
	}
	b.logger.Info("nats bridge subscribed",
		"revalidate", b.subjects.Revalidate,
		"optimistic", b.subjects.Optimistic)
	return nil
}

// Handle dispatches one message. Malformed payloads are logged and dropped.
func (b *Bridge) Handle(msg *nats.Msg) {
	if msg == nil {
		return
	}
	switch msg.Subject {
	case b.subjects.Revalidate:
		payload, err := DecodeRevalidate(msg.Data)
		if err != nil {
			b.logger.Warn("dropping revalidate message", logfields.Subject(msg.Subject), logfields.Error(err))
			return
		}
		b.bus.Revalidate(payload.Force)
	case b.subjects.Optimistic:
		patch, err := DecodePatch(msg.Data)
		if err != nil {
			b.logger.Warn("dropping optimistic message", logfields.Subject(msg.Subject), logfields.Error(err))
			return
		}
		b.logger.Debug("optimistic patch received",
			logfields.PatchKey(patch.IdempotencyKey()),
			logfields.PatchKind(string(patch.Kind())))
		b.bus.Optimistic(patch)
	default:
		b.logger.Debug("ignoring message", logfields.Subject(msg.Subject))
	}
}

// Close unsubscribes from every subject.
func (b *Bridge) Close() error {
	var errs []error
	for _, sub := range b.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	b.subs = nil
	return errors.Join(errs...)
}

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
}

var _ Conn = (*nats.Conn)(nil)

// Publisher sends revalidation requests and optimistic patches to other
// lotwatch processes.
type Publisher struct {
	conn     Conn
	subjects Subjects
	newKey   func() string
}

// NewPublisher returns a publisher on conn under prefix.
func NewPublisher(conn Conn, prefix string) *Publisher {
	return &Publisher{conn: conn, subjects: SubjectsFor(prefix), newKey: uuid.NewString}
}

// Revalidate publishes a revalidation request.
func (p *Publisher) Revalidate(force bool) error {
	data, err := json.Marshal(RevalidatePayload{Force: force})
	if err != nil {
		return fmt.Errorf("encode revalidate: %w", err)
	}
	return p.publish(p.subjects.Revalidate, data)
}

// Patch publishes patch, generating an idempotency key when it has none.
// It returns the key used.
func (p *Publisher) Patch(patch syncstore.Patch) (string, error) {
	switch v := patch.(type) {
	case syncstore.DeltaPatch:
		if v.Key == "" {
			v.Key = p.newKey()
		}
		patch = v
	case syncstore.CreatePatch:
		if v.Key == "" {
			v.Key = p.newKey()
		}
		patch = v
	}
	data, err := EncodePatch(patch)
	if err != nil {
		return "", err
	}
	if err := p.publish(p.subjects.Optimistic, data); err != nil {
		return "", err
	}
	return patch.IdempotencyKey(), nil
}

func (p *Publisher) publish(subject string, data []byte) error {
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := p.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	return nil
}
