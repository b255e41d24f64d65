// Package protocol implements the Control Protocol (C5): it dispatches
// inbound request frames to the state core and log-view cache, enforces the
// busy gate, and formats replies. The wire framing itself (packet id,
// length-prefixing) is a separate concern, owned by the connector.
package protocol

import (
	"context"
	"encoding/json"

	"github.com/infrasonar/rapp/internal/logging"
	"github.com/infrasonar/rapp/internal/metrics"
	"github.com/infrasonar/rapp/internal/runtime"
	"github.com/infrasonar/rapp/internal/state"
)

// Request and reply type codes, fixed by the external wire contract.
const (
	TypePing   byte = 0x40
	TypeRead   byte = 0x41
	TypePush   byte = 0x42
	TypeUpdate byte = 0x43
	TypeLog    byte = 0x44

	TypeRes          byte = 0x50
	TypeNoAC         byte = 0x51 // reserved
	TypeNoConnection byte = 0x52 // reserved
	TypeBusy         byte = 0x53
	TypeErr          byte = 0x54
)

// Frame is one decoded request or reply: a type byte, a packet id the
// reply must echo, and a raw JSON payload (possibly empty).
type Frame struct {
	Type    byte
	PktID   uint32
	Payload []byte
}

// logRequest is the LOG request payload shape.
type logRequest struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
}

// errReply is the ERR reply payload shape.
type errReply struct {
	Reason string `json:"reason"`
}

// Dispatcher routes inbound frames to the state core and log-view cache.
type Dispatcher struct {
	core *state.Core
	gate *runtime.Gate
	log  *logging.Logger
}

// NewDispatcher creates a Dispatcher bound to core, checking gate's held
// state for busy-rejection.
func NewDispatcher(core *state.Core, gate *runtime.Gate, log *logging.Logger) *Dispatcher {
	return &Dispatcher{core: core, gate: gate, log: log}
}

// Handle processes one inbound frame and returns the reply frame to send,
// or nil if the request type is unhandled (logged and silently dropped).
func (d *Dispatcher) Handle(ctx context.Context, req Frame) *Frame {
	switch req.Type {
	case TypePing, TypeRead, TypePush, TypeUpdate, TypeLog:
	default:
		d.log.Warn("unhandled request type, dropping", "type", req.Type, "pkt_id", req.PktID)
		return nil
	}

	if d.gate.Held() {
		metrics.BusyRejections.Inc()
		return &Frame{Type: TypeBusy, PktID: req.PktID}
	}

	switch req.Type {
	case TypePing:
		return &Frame{Type: TypeRes, PktID: req.PktID}

	case TypeRead:
		doc, err := d.core.Get()
		if err != nil {
			return errFrame(req.PktID, err)
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return errFrame(req.PktID, err)
		}
		return &Frame{Type: TypeRes, PktID: req.PktID, Payload: payload}

	case TypePush:
		var incoming state.DeclaredState
		if err := json.Unmarshal(req.Payload, &incoming); err != nil {
			metrics.ReconciliationsTotal.WithLabelValues("malformed").Inc()
			return errFrame(req.PktID, err)
		}
		if err := d.core.Set(ctx, &incoming); err != nil {
			metrics.ReconciliationsTotal.WithLabelValues("error").Inc()
			return errFrame(req.PktID, err)
		}
		metrics.ReconciliationsTotal.WithLabelValues("ok").Inc()
		return &Frame{Type: TypeRes, PktID: req.PktID}

	case TypeUpdate:
		go func() {
			bg := context.Background()
			if err := d.core.Update(bg, true, false); err != nil {
				d.log.Error("update request failed", "error", err)
			}
		}()
		return &Frame{Type: TypeRes, PktID: req.PktID}

	case TypeLog:
		var lr logRequest
		if err := json.Unmarshal(req.Payload, &lr); err != nil {
			return errFrame(req.PktID, err)
		}
		page, err := d.core.GetLog(ctx, lr.Name, lr.Start)
		if err != nil {
			return errFrame(req.PktID, err)
		}
		payload, err := json.Marshal(page)
		if err != nil {
			return errFrame(req.PktID, err)
		}
		return &Frame{Type: TypeRes, PktID: req.PktID, Payload: payload}
	}
	return nil
}

func errFrame(pktID uint32, err error) *Frame {
	payload, _ := json.Marshal(errReply{Reason: err.Error()})
	return &Frame{Type: TypeErr, PktID: pktID, Payload: payload}
}
