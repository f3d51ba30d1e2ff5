// Package nas defines the boundary between the NGAP core and the NAS
// MM/SM subsystem. The core never decodes NAS payloads; it hands uplink
// PDUs across this interface and receives downlink PDUs back through the
// NGAP server's SendDownlink.
package nas

import (
	"go.uber.org/zap"

	"github.com/gholtzap/amf/internal/ngap/message"
)

// Handler receives NAS payloads extracted from NGAP uplink procedures.
type Handler interface {
	// HandleUplink is invoked once per Initial UE Message (and, when the
	// procedure is wired, per Uplink NAS Transport) with the opaque NAS
	// PDU and the radio identifiers the response must be routed by.
	HandleUplink(amfUeNgapID uint64, ranUeNgapID uint64, nasPdu []byte, tai message.Tai)
}

// NopHandler logs and drops uplink NAS PDUs. Used when no NAS stack is
// attached.
type NopHandler struct {
	Logger *zap.Logger
}

// HandleUplink implements Handler.
func (h *NopHandler) HandleUplink(amfUeNgapID, ranUeNgapID uint64, nasPdu []byte, tai message.Tai) {
	if h.Logger == nil {
		return
	}
	h.Logger.Debug("NAS uplink dropped (no NAS subsystem attached)",
		zap.Uint64("amf_ue_ngap_id", amfUeNgapID),
		zap.Uint64("ran_ue_ngap_id", ranUeNgapID),
		zap.Int("nas_pdu_len", len(nasPdu)),
		zap.String("tac", tai.Tac),
	)
}
