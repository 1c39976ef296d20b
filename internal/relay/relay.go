// Package relay republishes normalized run events to NATS so dashboards
// and graders can follow a run without holding their own backend stream.
package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/secdrill/phishwatch/internal/stream"
)

// publisher is the slice of *nats.Conn the relay needs.
type publisher interface {
	Publish(subj string, data []byte) error
}

// Relay forwards events for one or more runs onto
// <prefix>.run.<runID>.<kind> subjects.
type Relay struct {
	nc     publisher
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// Connect dials the NATS server and returns a ready relay.
func Connect(url, prefix string, logger *zap.Logger) (*Relay, error) {
	if prefix == "" {
		prefix = "phishwatch"
	}
	nc, err := nats.Connect(url,
		nats.Name("phishwatch-relay"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect relay: %w", err)
	}
	return &Relay{nc: nc, conn: nc, prefix: prefix, logger: logger}, nil
}

// Forward publishes one event. Failures are logged and returned but a
// caller may keep forwarding; the relay is best-effort by design of the
// live view, which never depends on it.
func (r *Relay) Forward(runID string, ev stream.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal relay event: %w", err)
	}
	subj := Subject(r.prefix, runID, ev.Kind)
	if err := r.nc.Publish(subj, data); err != nil {
		r.logger.Warn("relay publish failed",
			zap.String("subject", subj),
			zap.Error(err))
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	return nil
}

// Close flushes pending publishes and drops the connection.
func (r *Relay) Close() {
	if r.conn == nil {
		return
	}
	_ = r.conn.Flush()
	r.conn.Close()
}

// Subject builds the relay subject for a run event. Token characters
// NATS reserves are replaced so a hostile run ID cannot widen the subject.
func Subject(prefix, runID string, kind stream.Kind) string {
	return prefix + ".run." + sanitizeToken(runID) + "." + string(kind)
}

func sanitizeToken(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '_'
		}
		return r
	}, s)
}
