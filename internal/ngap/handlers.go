package ngap

import (
	stdcontext "context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gholtzap/amf/internal/config"
	amfcontext "github.com/gholtzap/amf/internal/context"
	"github.com/gholtzap/amf/internal/metrics"
	"github.com/gholtzap/amf/internal/nas"
	"github.com/gholtzap/amf/internal/ngap/message"
)

// Persister receives context snapshots after every create or update.
// Removals (UE context release, association close) are not persisted.
// Persistence failures are logged and do not fail the triggering procedure.
type Persister interface {
	SaveRanContext(ctx stdcontext.Context, rc amfcontext.RanContext) error
	SaveUeContext(ctx stdcontext.Context, uc amfcontext.UeContext) error
}

// Handlers transforms decoded NGAP requests into context mutations and
// response PDUs. All methods run synchronously on the caller's goroutine;
// apart from the optional persister writes they do no I/O.
type Handlers struct {
	cfg        *config.Config
	ranContext *amfcontext.RanContextManager
	ueContext  *amfcontext.UeContextManager
	nasHandler nas.Handler
	persister  Persister
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewHandlers creates the procedure handler set. nasHandler and persister
// may be nil.
func NewHandlers(
	cfg *config.Config,
	ranContext *amfcontext.RanContextManager,
	ueContext *amfcontext.UeContextManager,
	nasHandler nas.Handler,
	persister Persister,
	logger *zap.Logger,
) *Handlers {
	if nasHandler == nil {
		nasHandler = &nas.NopHandler{Logger: logger}
	}
	return &Handlers{
		cfg:        cfg,
		ranContext: ranContext,
		ueContext:  ueContext,
		nasHandler: nasHandler,
		persister:  persister,
		logger:     logger,
		tracer:     otel.Tracer("amf-ngap"),
	}
}

// Handle dispatches one decoded PDU from the association at addr. A non-nil
// response PDU must be encoded and written back on the same association.
func (h *Handlers) Handle(ctx stdcontext.Context, pdu *message.Pdu, addr string) (*message.Pdu, error) {
	switch pdu.Type {
	case message.PduInitiatingMessage:
		switch pdu.Value.Kind {
		case message.KindNgSetupRequest:
			return h.handleNgSetupRequest(ctx, pdu.Value.NgSetupRequest, addr)
		case message.KindInitialUeMessage:
			return nil, h.handleInitialUeMessage(ctx, pdu.Value.InitialUeMessage, addr)
		case message.KindUplinkNasTransport:
			metrics.RecordNgapPdu("uplink-nas-transport", "dropped")
			h.logger.Debug("Uplink NAS Transport dropped", zap.String("peer", addr))
			return nil, nil
		default:
			metrics.RecordNgapPdu("unknown", "dropped")
			h.logger.Warn("Unsupported initiating message dropped",
				zap.Uint8("procedure_code", pdu.ProcedureCode),
				zap.String("peer", addr),
			)
			return nil, nil
		}
	case message.PduSuccessfulOutcome:
		h.logger.Debug("Successful outcome dropped",
			zap.Uint8("procedure_code", pdu.ProcedureCode),
			zap.String("peer", addr),
		)
		return nil, nil
	case message.PduUnsuccessfulOutcome:
		h.logger.Debug("Unsuccessful outcome dropped",
			zap.Uint8("procedure_code", pdu.ProcedureCode),
			zap.String("peer", addr),
		)
		return nil, nil
	}
	return nil, &ProtocolError{Kind: ProtocolProcedureNotSupported}
}

// handleNgSetupRequest validates the announced tracking areas against the
// AMF's PLMN support list and either registers the RAN node or answers
// with an NG Setup Failure.
func (h *Handlers) handleNgSetupRequest(ctx stdcontext.Context, req *message.NgSetupRequest, addr string) (*message.Pdu, error) {
	ctx, span := h.tracer.Start(ctx, "Handlers.NgSetupRequest")
	defer span.End()

	ranID := ranIDFor(&req.GlobalRanNodeID)
	span.SetAttributes(attribute.String("ran_id", ranID))

	h.logger.Info("Processing NG Setup Request",
		zap.String("ran_id", ranID),
		zap.String("peer", addr),
		zap.Int("supported_tas", len(req.SupportedTaList)),
	)

	if !h.validateSupportedTaList(req.SupportedTaList) {
		h.logger.Warn("TAI validation failed for RAN node",
			zap.String("ran_id", ranID),
			zap.String("peer", addr),
		)
		metrics.RecordNgapPdu("ng-setup", "rejected")

		ttw := uint8(10)
		return &message.Pdu{
			Type:          message.PduUnsuccessfulOutcome,
			ProcedureCode: message.ProcedureCodeNGSetup,
			Criticality:   message.CriticalityReject,
			Value: message.MessageValue{
				Kind: message.KindNgSetupFailure,
				NgSetupFailure: &message.NgSetupFailure{
					Cause:      message.Cause{Type: message.CauseTypeTransport, Value: 0},
					TimeToWait: &ttw,
				},
			},
		}, nil
	}

	ranName := req.RanNodeName
	if ranName == "" {
		ranName = ranID
	}

	ranCtx := amfcontext.RanContext{
		RanID:            ranID,
		RanName:          ranName,
		Addr:             addr,
		State:            amfcontext.RanStateConnected,
		SupportedTaList:  req.SupportedTaList,
		DefaultPagingDrx: req.DefaultPagingDrx,
	}
	h.ranContext.Update(ranCtx)
	h.persistRan(ctx, ranCtx)
	metrics.ConnectedRanNodes.Set(float64(h.ranContext.ConnectedCount()))
	metrics.RecordNgapPdu("ng-setup", "success")

	h.logger.Info("RAN node registered",
		zap.String("ran_id", ranID),
		zap.String("ran_name", ranName),
		zap.String("peer", addr),
	)

	return &message.Pdu{
		Type:          message.PduSuccessfulOutcome,
		ProcedureCode: message.ProcedureCodeNGSetup,
		Criticality:   message.CriticalityReject,
		Value: message.MessageValue{
			Kind:            message.KindNgSetupResponse,
			NgSetupResponse: h.ngSetupResponse(),
		},
	}, nil
}

// handleInitialUeMessage creates a UE context for the new radio connection
// and hands the contained NAS PDU to the NAS subsystem. No NGAP response
// is produced.
func (h *Handlers) handleInitialUeMessage(ctx stdcontext.Context, msg *message.InitialUeMessage, addr string) error {
	ctx, span := h.tracer.Start(ctx, "Handlers.InitialUeMessage")
	defer span.End()

	ranCtx, ok := h.ranContext.GetByAddr(addr)
	if !ok {
		metrics.RecordNgapPdu("initial-ue-message", "rejected")
		return &ProtocolError{Kind: ProtocolRanNotFound, Addr: addr}
	}

	amfUeNgapID := h.ueContext.AllocateAmfUeNgapID()
	span.SetAttributes(
		attribute.Int64("amf_ue_ngap_id", int64(amfUeNgapID)),
		attribute.String("ran_id", ranCtx.RanID),
	)

	ueCtx := h.ueContext.Create(amfUeNgapID)
	ranUeNgapID := msg.RanUeNgapID
	ueCtx.RanUeNgapID = &ranUeNgapID
	ueCtx.State = amfcontext.UeStateConnected
	tai := msg.UserLocationInfo.Tai
	ueCtx.Tai = &tai
	if msg.UserLocationInfo.NrCgi != nil {
		ueCtx.Ecgi = msg.UserLocationInfo.NrCgi.NrCellIdentity
	}
	ueCtx.RanID = ranCtx.RanID
	h.ueContext.Update(ueCtx)
	h.persistUe(ctx, ueCtx)

	if ranCtx.State == amfcontext.RanStateConnected {
		ranCtx.State = amfcontext.RanStateActive
		h.ranContext.Update(ranCtx)
		h.persistRan(ctx, ranCtx)
	}

	metrics.UeContexts.Set(float64(len(h.ueContext.All())))
	metrics.RecordNgapPdu("initial-ue-message", "success")

	h.logger.Info("UE context created",
		zap.Uint64("amf_ue_ngap_id", amfUeNgapID),
		zap.Uint64("ran_ue_ngap_id", msg.RanUeNgapID),
		zap.String("ran_id", ranCtx.RanID),
		zap.String("tac", tai.Tac),
	)

	h.nasHandler.HandleUplink(amfUeNgapID, msg.RanUeNgapID, msg.NasPdu, tai)
	return nil
}

// ReleaseUeContext removes a UE context on behalf of the SBI surface or
// the NAS subsystem.
func (h *Handlers) ReleaseUeContext(amfUeNgapID uint64) bool {
	_, ok := h.ueContext.Remove(amfUeNgapID)
	if ok {
		metrics.UeContexts.Set(float64(len(h.ueContext.All())))
		h.logger.Info("UE context released", zap.Uint64("amf_ue_ngap_id", amfUeNgapID))
	}
	return ok
}

// HandleAssociationClose tears down the RAN context registered for addr
// and every UE context it owns.
func (h *Handlers) HandleAssociationClose(addr string) {
	ranCtx, ok := h.ranContext.GetByAddr(addr)
	if !ok {
		return
	}

	h.ranContext.Remove(ranCtx.RanID)
	removed := h.ueContext.RemoveByRan(ranCtx.RanID)
	metrics.ConnectedRanNodes.Set(float64(h.ranContext.ConnectedCount()))
	metrics.UeContexts.Set(float64(len(h.ueContext.All())))

	h.logger.Info("RAN context removed on association close",
		zap.String("ran_id", ranCtx.RanID),
		zap.String("peer", addr),
		zap.Int("ue_contexts_removed", len(removed)),
	)
}

// ranIDFor derives the stable RAN identifier used as the primary context
// key: "{mcc}_{node-type}_{node-id-hex}".
func ranIDFor(id *message.GlobalRanNodeId) string {
	return fmt.Sprintf("%s_%s_%s", id.PlmnIdentity.Mcc, id.NodeType, id.NodeID)
}

// validateSupportedTaList requires every announced tracking area to match
// at least one configured (PLMN, TAC) pair. An empty list is invalid.
func (h *Handlers) validateSupportedTaList(taList []message.SupportedTaItem) bool {
	if len(taList) == 0 {
		return false
	}

	for _, ta := range taList {
		found := false
		for _, plmnSupport := range h.cfg.AMF.PlmnSupportList {
			for _, tai := range plmnSupport.TaiList {
				for _, bp := range ta.BroadcastPlmn {
					if tai.TAC == ta.Tac &&
						tai.PlmnID.MCC == bp.PlmnIdentity.Mcc &&
						tai.PlmnID.MNC == bp.PlmnIdentity.Mnc {
						found = true
						break
					}
				}
				if found {
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ngSetupResponse populates the NG Setup Response from configuration.
func (h *Handlers) ngSetupResponse() *message.NgSetupResponse {
	resp := &message.NgSetupResponse{
		AmfName:             h.cfg.AMF.Name,
		RelativeAmfCapacity: h.cfg.AMF.RelativeCapacity,
	}

	for _, g := range h.cfg.AMF.GuamiList {
		resp.ServedGuamiList = append(resp.ServedGuamiList, message.ServedGuami{
			PlmnIdentity: message.PlmnIdentity{Mcc: g.PlmnID.MCC, Mnc: g.PlmnID.MNC},
			AmfRegionID:  g.AmfRegionID,
			AmfSetID:     g.AmfSetID,
			AmfPointer:   g.AmfPointer,
		})
	}

	for _, ps := range h.cfg.AMF.PlmnSupportList {
		item := message.PlmnSupportItem{
			PlmnIdentity: message.PlmnIdentity{Mcc: ps.PlmnID.MCC, Mnc: ps.PlmnID.MNC},
		}
		for _, s := range ps.SNssaiList {
			item.SliceSupport = append(item.SliceSupport, message.SNssai{Sst: s.SST, Sd: s.SD})
		}
		resp.PlmnSupportList = append(resp.PlmnSupportList, item)
	}

	return resp
}

func (h *Handlers) persistRan(ctx stdcontext.Context, rc amfcontext.RanContext) {
	if h.persister == nil {
		return
	}
	if err := h.persister.SaveRanContext(ctx, rc); err != nil {
		h.logger.Warn("Failed to persist RAN context",
			zap.String("ran_id", rc.RanID),
			zap.Error(err),
		)
	}
}

func (h *Handlers) persistUe(ctx stdcontext.Context, uc amfcontext.UeContext) {
	if h.persister == nil {
		return
	}
	if err := h.persister.SaveUeContext(ctx, uc); err != nil {
		h.logger.Warn("Failed to persist UE context",
			zap.Uint64("amf_ue_ngap_id", uc.AmfUeNgapID),
			zap.Error(err),
		)
	}
}
