package ngap

import (
	stdcontext "context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gholtzap/amf/internal/config"
	amfcontext "github.com/gholtzap/amf/internal/context"
	"github.com/gholtzap/amf/internal/ngap/message"
)

type captureNas struct {
	mu     sync.Mutex
	amfIDs []uint64
	ranIDs []uint64
	pdus   [][]byte
	tais   []message.Tai
}

func (c *captureNas) HandleUplink(amfUeNgapID, ranUeNgapID uint64, nasPdu []byte, tai message.Tai) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.amfIDs = append(c.amfIDs, amfUeNgapID)
	c.ranIDs = append(c.ranIDs, ranUeNgapID)
	c.pdus = append(c.pdus, nasPdu)
	c.tais = append(c.tais, tai)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AMF.Name = "amf-test"
	cfg.AMF.PlmnSupportList = []config.PlmnSupport{
		{
			PlmnID:     config.PlmnID{MCC: "208", MNC: "93"},
			SNssaiList: []config.SNssai{{SST: 1}},
			TaiList: []config.Tai{
				{PlmnID: config.PlmnID{MCC: "208", MNC: "93"}, TAC: "010203"},
				{PlmnID: config.PlmnID{MCC: "208", MNC: "93"}, TAC: "000001"},
			},
		},
	}
	return cfg
}

func newTestHandlers(t *testing.T) (*Handlers, *amfcontext.RanContextManager, *amfcontext.UeContextManager, *captureNas) {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	ranContext := amfcontext.NewRanContextManager()
	ueContext := amfcontext.NewUeContextManager()
	capture := &captureNas{}
	h := NewHandlers(testConfig(), ranContext, ueContext, capture, nil, logger)
	return h, ranContext, ueContext, capture
}

func ngSetupPdu(req *message.NgSetupRequest) *message.Pdu {
	return &message.Pdu{
		Type:          message.PduInitiatingMessage,
		ProcedureCode: message.ProcedureCodeNGSetup,
		Criticality:   message.CriticalityReject,
		Value:         message.MessageValue{Kind: message.KindNgSetupRequest, NgSetupRequest: req},
	}
}

func initialUePdu(ranUeNgapID uint64, nasPdu []byte, tac string) *message.Pdu {
	return &message.Pdu{
		Type:          message.PduInitiatingMessage,
		ProcedureCode: message.ProcedureCodeInitialUEMessage,
		Criticality:   message.CriticalityIgnore,
		Value: message.MessageValue{
			Kind: message.KindInitialUeMessage,
			InitialUeMessage: &message.InitialUeMessage{
				RanUeNgapID: ranUeNgapID,
				NasPdu:      nasPdu,
				UserLocationInfo: message.UserLocationInfo{
					Tai: message.Tai{
						PlmnIdentity: message.PlmnIdentity{Mcc: "208", Mnc: "93"},
						Tac:          tac,
					},
				},
				RrcEstablishmentCause: 3,
			},
		},
	}
}

func TestNgSetupCreatesRanContext(t *testing.T) {
	h, ranContext, _, _ := newTestHandlers(t)

	resp, err := h.Handle(stdcontext.Background(), ngSetupPdu(gnbSetupRequest()), "10.0.0.1:38412")
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, message.PduSuccessfulOutcome, resp.Type)
	require.Equal(t, message.KindNgSetupResponse, resp.Value.Kind)
	assert.Equal(t, "amf-test", resp.Value.NgSetupResponse.AmfName)
	assert.Equal(t, uint8(255), resp.Value.NgSetupResponse.RelativeAmfCapacity)
	require.Len(t, resp.Value.NgSetupResponse.ServedGuamiList, 1)
	require.Len(t, resp.Value.NgSetupResponse.PlmnSupportList, 1)

	ranCtx, ok := ranContext.GetByAddr("10.0.0.1:38412")
	require.True(t, ok)
	assert.Equal(t, "208_gnb_01020304", ranCtx.RanID)
	assert.Equal(t, amfcontext.RanStateConnected, ranCtx.State)
	assert.Equal(t, uint32(32), ranCtx.DefaultPagingDrx)
	require.Len(t, ranCtx.SupportedTaList, 1)
}

func TestNgSetupRejectsUnknownTac(t *testing.T) {
	h, ranContext, _, _ := newTestHandlers(t)

	req := gnbSetupRequest()
	req.SupportedTaList[0].Tac = "ffffff"

	resp, err := h.Handle(stdcontext.Background(), ngSetupPdu(req), "10.0.0.1:38412")
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, message.PduUnsuccessfulOutcome, resp.Type)
	require.Equal(t, message.KindNgSetupFailure, resp.Value.Kind)
	failure := resp.Value.NgSetupFailure
	assert.Equal(t, message.CauseTypeTransport, failure.Cause.Type)
	assert.Equal(t, uint8(0), failure.Cause.Value)
	require.NotNil(t, failure.TimeToWait)
	assert.Equal(t, uint8(10), *failure.TimeToWait)

	_, ok := ranContext.GetByAddr("10.0.0.1:38412")
	assert.False(t, ok)
}

func TestNgSetupRejectsEmptyTaList(t *testing.T) {
	h, ranContext, _, _ := newTestHandlers(t)

	req := gnbSetupRequest()
	req.SupportedTaList = nil

	resp, err := h.Handle(stdcontext.Background(), ngSetupPdu(req), "10.0.0.1:38412")
	require.NoError(t, err)
	require.Equal(t, message.KindNgSetupFailure, resp.Value.Kind)

	_, ok := ranContext.GetByAddr("10.0.0.1:38412")
	assert.False(t, ok)
}

func TestInitialUeMessageWithoutNgSetup(t *testing.T) {
	h, _, ueContext, _ := newTestHandlers(t)

	resp, err := h.Handle(stdcontext.Background(), initialUePdu(42, []byte{0x7E}, "000001"), "10.0.0.9:38412")
	assert.Nil(t, resp)

	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, ProtocolRanNotFound, protoErr.Kind)
	assert.Equal(t, "10.0.0.9:38412", protoErr.Addr)
	assert.Empty(t, ueContext.All())
}

func TestInitialUeMessageCreatesUeContext(t *testing.T) {
	h, ranContext, ueContext, capture := newTestHandlers(t)
	addr := "10.0.0.1:38412"

	_, err := h.Handle(stdcontext.Background(), ngSetupPdu(gnbSetupRequest()), addr)
	require.NoError(t, err)

	nasPdu := []byte{0x7E, 0x00, 0x41, 0x79, 0x00}
	resp, err := h.Handle(stdcontext.Background(), initialUePdu(42, nasPdu, "000001"), addr)
	require.NoError(t, err)
	assert.Nil(t, resp)

	ueCtx, ok := ueContext.Get(1)
	require.True(t, ok, "first allocation must be AMF-UE-NGAP-ID 1")
	require.NotNil(t, ueCtx.RanUeNgapID)
	assert.Equal(t, uint64(42), *ueCtx.RanUeNgapID)
	assert.Equal(t, amfcontext.UeStateConnected, ueCtx.State)
	assert.Equal(t, "208_gnb_01020304", ueCtx.RanID)
	require.NotNil(t, ueCtx.Tai)
	assert.Equal(t, "000001", ueCtx.Tai.Tac)

	// First UE procedure moves the RAN node to Active.
	ranCtx, ok := ranContext.GetByAddr(addr)
	require.True(t, ok)
	assert.Equal(t, amfcontext.RanStateActive, ranCtx.State)

	require.Len(t, capture.amfIDs, 1)
	assert.Equal(t, uint64(1), capture.amfIDs[0])
	assert.Equal(t, uint64(42), capture.ranIDs[0])
	assert.Equal(t, nasPdu, capture.pdus[0])
	assert.Equal(t, "000001", capture.tais[0].Tac)
}

func TestConcurrentNgSetupFromDistinctPeers(t *testing.T) {
	h, ranContext, _, _ := newTestHandlers(t)

	reqA := gnbSetupRequest()
	reqB := gnbSetupRequest()
	reqB.GlobalRanNodeID.NodeID = "0a0b0c0d"

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := h.Handle(stdcontext.Background(), ngSetupPdu(reqA), "10.0.0.1:38412")
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := h.Handle(stdcontext.Background(), ngSetupPdu(reqB), "10.0.0.2:38412")
		assert.NoError(t, err)
	}()
	wg.Wait()

	ctxA, ok := ranContext.GetByAddr("10.0.0.1:38412")
	require.True(t, ok)
	ctxB, ok := ranContext.GetByAddr("10.0.0.2:38412")
	require.True(t, ok)
	assert.NotEqual(t, ctxA.RanID, ctxB.RanID)
	assert.Equal(t, amfcontext.RanStateConnected, ctxA.State)
	assert.Equal(t, amfcontext.RanStateConnected, ctxB.State)
}

func TestUplinkNasTransportDropped(t *testing.T) {
	h, _, _, _ := newTestHandlers(t)

	pdu := &message.Pdu{
		Type:          message.PduInitiatingMessage,
		ProcedureCode: message.ProcedureCodeUplinkNASTransport,
		Criticality:   message.CriticalityIgnore,
		Value:         message.MessageValue{Kind: message.KindUplinkNasTransport, UplinkNasTransport: &message.UplinkNasTransport{}},
	}

	resp, err := h.Handle(stdcontext.Background(), pdu, "10.0.0.1:38412")
	assert.NoError(t, err)
	assert.Nil(t, resp)
}

func TestAssociationCloseDropsContexts(t *testing.T) {
	h, ranContext, ueContext, _ := newTestHandlers(t)
	addr := "10.0.0.1:38412"

	_, err := h.Handle(stdcontext.Background(), ngSetupPdu(gnbSetupRequest()), addr)
	require.NoError(t, err)
	_, err = h.Handle(stdcontext.Background(), initialUePdu(7, []byte{0x7E}, "000001"), addr)
	require.NoError(t, err)

	h.HandleAssociationClose(addr)

	_, ok := ranContext.GetByAddr(addr)
	assert.False(t, ok)
	assert.Empty(t, ueContext.All())
}

func TestReleaseUeContext(t *testing.T) {
	h, _, ueContext, _ := newTestHandlers(t)
	addr := "10.0.0.1:38412"

	_, err := h.Handle(stdcontext.Background(), ngSetupPdu(gnbSetupRequest()), addr)
	require.NoError(t, err)
	_, err = h.Handle(stdcontext.Background(), initialUePdu(7, []byte{0x7E}, "000001"), addr)
	require.NoError(t, err)

	assert.True(t, h.ReleaseUeContext(1))
	assert.False(t, h.ReleaseUeContext(1))
	assert.Empty(t, ueContext.All())
}
