package cadsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/internal/domain/protocol"
	"github.com/okian/cadhub/pkg/logger"
)

// ErrHandshake means the hub did not acknowledge identification.
var ErrHandshake = errors.New("hub did not acknowledge gh_connect")

// Simulator is a connected CAD client. Writes happen only on the Run
// goroutine.
type Simulator struct {
	cfg  Config
	conn *websocket.Conn
	log  logger.Logger

	mu     sync.Mutex
	schema model.Schema
	stats  Stats
}

// Dial connects to the hub's push channel.
func Dial(ctx context.Context, cfg Config) (*Simulator, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if len(cfg.Schema) == 0 {
		cfg.Schema = DefaultSchema()
	}
	dialer := websocket.Dialer{HandshakeTimeout: cfg.Timeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	return &Simulator{
		cfg:    cfg,
		conn:   conn,
		log:    logger.Get().Named("cadsim"),
		schema: cfg.Schema.Clone(),
	}, nil
}

// Schema returns the simulator's current parameter values.
func (s *Simulator) Schema() model.Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema.Clone()
}

// Stats returns traffic counters.
func (s *Simulator) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run identifies, registers the schema, publishes initial geometry and
// then serves updates until ctx is cancelled or the hub goes away.
func (s *Simulator) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
	defer stop()
	defer func() { _ = s.conn.Close() }()

	if err := s.handshake(ctx); err != nil {
		return err
	}
	if err := s.emit(protocol.EventGHParamsRegister, protocol.GHParamsRegister{Params: s.schemaJSON()}); err != nil {
		return err
	}
	if err := s.sendGeometry(ctx, ""); err != nil {
		return err
	}

	for {
		env, err := s.read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := s.handle(ctx, env); err != nil {
			return err
		}
	}
}

func (s *Simulator) handshake(ctx context.Context) error {
	if err := s.emit(protocol.EventGHConnect, protocol.GHConnect{ClientType: "grasshopper"}); err != nil {
		return err
	}
	// params_init from the connect greeting may arrive first.
	for {
		env, err := s.read()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrHandshake, err)
		}
		if env.Event == protocol.EventGHConnectAck {
			s.log.Info(ctx, "identified as CAD client", logger.String("url", s.cfg.URL))
			return nil
		}
	}
}

func (s *Simulator) handle(ctx context.Context, env protocol.Envelope) error {
	switch env.Event {
	case protocol.EventParamsToGH:
		var msg protocol.ParamsToGH
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			s.log.Warn(ctx, "malformed params_to_gh", logger.Error(err))
			return nil
		}
		s.apply(msg.Params)
		s.log.Info(ctx, "applied update",
			logger.String("request_id", msg.RequestID), logger.Int("params", len(msg.Params)))
		if s.cfg.SolveDelay > 0 {
			select {
			case <-time.After(s.cfg.SolveDelay):
			case <-ctx.Done():
				return nil
			}
		}
		return s.sendGeometry(ctx, msg.RequestID)
	case protocol.EventParamsAck, protocol.EventGeometryAck:
		s.mu.Lock()
		s.stats.Acks++
		s.mu.Unlock()
		s.log.Debug(ctx, "hub acknowledged", logger.String("event", env.Event))
	case protocol.EventError:
		s.log.Warn(ctx, "hub reported error", logger.String("data", string(env.Data)))
	}
	return nil
}

// apply sets known parameters, clamping them into their bounds the way a
// slider would.
func (s *Simulator) apply(u model.ParameterUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accepted, _ := s.schema.Filter(u, true)
	s.schema = s.schema.Apply(accepted)
	s.stats.UpdatesApplied++
}

func (s *Simulator) sendGeometry(ctx context.Context, requestID string) error {
	if requestID == "" {
		requestID = "gh-" + uuid.NewString()[:8]
	}
	schema := s.Schema()
	geometry, err := json.Marshal(BoxGeometry(schema, s.cfg.Material))
	if err != nil {
		return fmt.Errorf("encode geometry: %w", err)
	}
	if err := s.emit(protocol.EventGHGeometry, protocol.GHGeometry{
		RequestID: requestID,
		Geometry:  geometry,
		Params:    s.schemaJSON(),
	}); err != nil {
		return err
	}
	s.mu.Lock()
	s.stats.GeometrySent++
	s.mu.Unlock()
	s.log.Debug(ctx, "geometry sent", logger.String("request_id", requestID))
	return nil
}

func (s *Simulator) schemaJSON() json.RawMessage {
	b, _ := json.Marshal(s.Schema())
	return b
}

func (s *Simulator) emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if err := s.conn.WriteJSON(protocol.Envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

func (s *Simulator) read() (protocol.Envelope, error) {
	var env protocol.Envelope
	if err := s.conn.ReadJSON(&env); err != nil {
		return env, err
	}
	return env, nil
}
