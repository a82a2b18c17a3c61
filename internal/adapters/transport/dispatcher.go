// Package transport delivers parameter updates to the CAD side: over live
// push channels when any CAD client is connected, otherwise by one HTTP
// POST to the configured listener. A single call never uses both.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/internal/domain/protocol"
	"github.com/okian/cadhub/pkg/logger"
	"github.com/okian/cadhub/pkg/metrics"
)

const maxErrorBody = 200

// Outcome names the transport that carried an update.
type Outcome string

const (
	DeliveredViaPush Outcome = "delivered-via-push"
	DeliveredViaHTTP Outcome = "delivered-via-http"
)

// CADPusher is the part of the client registry the dispatcher needs.
type CADPusher interface {
	CADClients() []string
	SendAll(ids []string, msg []byte) int
}

// fallbackBody is the payload the CAD listener expects.
type fallbackBody struct {
	RequestID string                `json:"request_id"`
	Params    model.ParameterUpdate `json:"params"`
}

// Dispatcher is the TransportDispatcher.
type Dispatcher struct {
	cad         CADPusher
	listenerURL string
	timeout     time.Duration
	httpClient  *http.Client
	log         logger.Logger
}

// NewDispatcher creates a dispatcher pushing through cad.
func NewDispatcher(cad CADPusher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cad:        cad,
		timeout:    10 * time.Second,
		httpClient: &http.Client{},
		log:        logger.Get().Named("transport"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver sends params for requestID to the CAD side.
func (d *Dispatcher) Deliver(ctx context.Context, requestID string, params model.ParameterUpdate) (Outcome, error) {
	if ids := d.cad.CADClients(); len(ids) > 0 {
		return d.push(ctx, ids, requestID, params)
	}
	return d.post(ctx, requestID, params)
}

func (d *Dispatcher) push(ctx context.Context, ids []string, requestID string, params model.ParameterUpdate) (Outcome, error) {
	msg, err := protocol.Encode(protocol.ParamsToGH{RequestID: requestID, Params: params})
	if err != nil {
		return "", d.fail(ctx, requestID, &DeliveryError{Transport: "push", Cause: err})
	}
	sent := d.cad.SendAll(ids, msg)
	if sent == 0 {
		// Fire-and-forget: a full buffer or a client that just left is not
		// a failed delivery.
		d.log.Warn(ctx, "params_to_gh reached no CAD client",
			logger.String("request_id", requestID), logger.Int("targets", len(ids)))
	}
	metrics.RecordDelivery("push")
	metrics.RecordPushMessage(protocol.EventParamsToGH)
	d.log.Debug(ctx, "params pushed to CAD",
		logger.String("request_id", requestID), logger.Int("sent", sent))
	return DeliveredViaPush, nil
}

func (d *Dispatcher) post(ctx context.Context, requestID string, params model.ParameterUpdate) (Outcome, error) {
	if strings.TrimSpace(d.listenerURL) == "" {
		return "", d.fail(ctx, requestID, &DeliveryError{Transport: "http", Cause: ErrNoListener})
	}
	body, err := json.Marshal(fallbackBody{RequestID: requestID, Params: params})
	if err != nil {
		return "", d.fail(ctx, requestID, &DeliveryError{Transport: "http", Cause: err})
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.listenerURL, bytes.NewReader(body))
	if err != nil {
		return "", d.fail(ctx, requestID, &DeliveryError{Transport: "http", Cause: err})
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", d.fail(ctx, requestID, &DeliveryError{Transport: "http", Cause: err})
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		cause := fmt.Errorf("listener answered %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		return "", d.fail(ctx, requestID, &DeliveryError{Transport: "http", StatusCode: resp.StatusCode, Cause: cause})
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	metrics.RecordDelivery("http")
	d.log.Debug(ctx, "params posted to CAD listener", logger.String("request_id", requestID))
	return DeliveredViaHTTP, nil
}

func (d *Dispatcher) fail(ctx context.Context, requestID string, err *DeliveryError) error {
	metrics.RecordDeliveryError()
	d.log.Warn(ctx, "delivery to CAD failed",
		logger.String("request_id", requestID), logger.String("transport", err.Transport), logger.Error(err))
	return err
}
