package ngap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gholtzap/amf/internal/ngap/message"
)

func gnbSetupRequest() *message.NgSetupRequest {
	return &message.NgSetupRequest{
		GlobalRanNodeID: message.GlobalRanNodeId{
			NodeType:       message.RanNodeGNB,
			PlmnIdentity:   message.PlmnIdentity{Mcc: "208", Mnc: "93"},
			NodeID:         "01020304",
			GnbIDBitLength: 32,
		},
		SupportedTaList: []message.SupportedTaItem{
			{
				Tac: "010203",
				BroadcastPlmn: []message.BroadcastPlmnItem{
					{
						PlmnIdentity: message.PlmnIdentity{Mcc: "208", Mnc: "93"},
						SliceSupport: []message.SNssai{{Sst: 0}},
					},
				},
			},
		},
		DefaultPagingDrx: 32,
	}
}

func TestNgSetupRequestRoundTrip(t *testing.T) {
	pdu := &message.Pdu{
		Type:          message.PduInitiatingMessage,
		ProcedureCode: message.ProcedureCodeNGSetup,
		Criticality:   message.CriticalityReject,
		Value: message.MessageValue{
			Kind:           message.KindNgSetupRequest,
			NgSetupRequest: gnbSetupRequest(),
		},
	}

	encoded, err := Encode(pdu)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, pdu, decoded)
}

func TestNgSetupRequestRoundTripWithRanNodeName(t *testing.T) {
	req := gnbSetupRequest()
	req.RanNodeName = "gnb-paris-01"

	pdu := &message.Pdu{
		Type:          message.PduInitiatingMessage,
		ProcedureCode: message.ProcedureCodeNGSetup,
		Criticality:   message.CriticalityReject,
		Value:         message.MessageValue{Kind: message.KindNgSetupRequest, NgSetupRequest: req},
	}

	encoded, err := Encode(pdu)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "gnb-paris-01", decoded.Value.NgSetupRequest.RanNodeName)
	assert.Equal(t, pdu, decoded)
}

func TestNgSetupRequestRawVector(t *testing.T) {
	// NGSetupRequest: PLMN 208/93, gNB id 01020304, one TA
	// (TAC 010203, PLMN 208/93, SST 0), paging DRX 32.
	raw := []byte{
		0x00, 0x15, 0x00, 0x25, // initiating, NG Setup, reject, length 37
		0x00, 0x00, 0x03, // extension bit, 3 IEs
		0x00, 0x1B, 0x00, 0x09, // GlobalRANNodeID
		0x00, 0x02, 0xF8, 0x39, 0x00, 0x01, 0x02, 0x03, 0x04,
		0x00, 0x66, 0x00, 0x0C, // SupportedTAList
		0x00, 0x00, 0x01, 0x02, 0x03, 0x00, 0x02, 0xF8, 0x39, 0x00, 0x00, 0x00,
		0x00, 0x15, 0x00, 0x01, 0x20, // DefaultPagingDRX = 32
	}

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, message.KindNgSetupRequest, decoded.Value.Kind)

	req := decoded.Value.NgSetupRequest
	assert.Equal(t, message.RanNodeGNB, req.GlobalRanNodeID.NodeType)
	assert.Equal(t, "208", req.GlobalRanNodeID.PlmnIdentity.Mcc)
	assert.Equal(t, "93", req.GlobalRanNodeID.PlmnIdentity.Mnc)
	assert.Equal(t, "01020304", req.GlobalRanNodeID.NodeID)
	assert.Equal(t, uint8(32), req.GlobalRanNodeID.GnbIDBitLength)
	require.Len(t, req.SupportedTaList, 1)
	assert.Equal(t, "010203", req.SupportedTaList[0].Tac)
	require.Len(t, req.SupportedTaList[0].BroadcastPlmn, 1)
	bp := req.SupportedTaList[0].BroadcastPlmn[0]
	assert.Equal(t, "208", bp.PlmnIdentity.Mcc)
	assert.Equal(t, "93", bp.PlmnIdentity.Mnc)
	require.Len(t, bp.SliceSupport, 1)
	assert.Equal(t, uint8(0), bp.SliceSupport[0].Sst)
	assert.Equal(t, uint32(32), req.DefaultPagingDrx)
}

func TestNgSetupResponseRoundTrip(t *testing.T) {
	pdu := &message.Pdu{
		Type:          message.PduSuccessfulOutcome,
		ProcedureCode: message.ProcedureCodeNGSetup,
		Criticality:   message.CriticalityReject,
		Value: message.MessageValue{
			Kind: message.KindNgSetupResponse,
			NgSetupResponse: &message.NgSetupResponse{
				AmfName: "amf-1",
				ServedGuamiList: []message.ServedGuami{
					{
						PlmnIdentity: message.PlmnIdentity{Mcc: "208", Mnc: "93"},
						AmfRegionID:  "01",
						AmfSetID:     "0001",
						AmfPointer:   "00",
					},
				},
				RelativeAmfCapacity: 255,
				PlmnSupportList: []message.PlmnSupportItem{
					{
						PlmnIdentity: message.PlmnIdentity{Mcc: "208", Mnc: "93"},
						SliceSupport: []message.SNssai{{Sst: 1}},
					},
				},
			},
		},
	}

	encoded, err := Encode(pdu)
	require.NoError(t, err)
	assert.Equal(t, byte(0x20), encoded[0]&0xE0)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, pdu, decoded)
}

func TestNgSetupFailureRoundTrip(t *testing.T) {
	ttw := uint8(10)
	tests := []struct {
		name    string
		failure *message.NgSetupFailure
	}{
		{
			name: "with_time_to_wait",
			failure: &message.NgSetupFailure{
				Cause:      message.Cause{Type: message.CauseTypeTransport, Value: 0},
				TimeToWait: &ttw,
			},
		},
		{
			name: "without_time_to_wait",
			failure: &message.NgSetupFailure{
				Cause: message.Cause{Type: message.CauseTypeMisc, Value: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdu := &message.Pdu{
				Type:          message.PduUnsuccessfulOutcome,
				ProcedureCode: message.ProcedureCodeNGSetup,
				Criticality:   message.CriticalityReject,
				Value:         message.MessageValue{Kind: message.KindNgSetupFailure, NgSetupFailure: tt.failure},
			}

			encoded, err := Encode(pdu)
			require.NoError(t, err)

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, pdu, decoded)
		})
	}
}

func TestInitialUeMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *message.InitialUeMessage
	}{
		{
			name: "tai_only",
			msg: &message.InitialUeMessage{
				RanUeNgapID: 42,
				NasPdu:      []byte{0x7E, 0x00, 0x41, 0x79},
				UserLocationInfo: message.UserLocationInfo{
					Tai: message.Tai{
						PlmnIdentity: message.PlmnIdentity{Mcc: "208", Mnc: "93"},
						Tac:          "000001",
					},
				},
				RrcEstablishmentCause: 3,
			},
		},
		{
			name: "with_nr_cgi",
			msg: &message.InitialUeMessage{
				RanUeNgapID: 0xFFFFFFFF,
				NasPdu:      []byte{0x7E},
				UserLocationInfo: message.UserLocationInfo{
					Tai: message.Tai{
						PlmnIdentity: message.PlmnIdentity{Mcc: "999", Mnc: "999"},
						Tac:          "ffffff",
					},
					NrCgi: &message.NrCgi{
						PlmnIdentity:   message.PlmnIdentity{Mcc: "999", Mnc: "999"},
						NrCellIdentity: "0000000010ab",
					},
				},
				RrcEstablishmentCause: 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdu := &message.Pdu{
				Type:          message.PduInitiatingMessage,
				ProcedureCode: message.ProcedureCodeInitialUEMessage,
				Criticality:   message.CriticalityIgnore,
				Value:         message.MessageValue{Kind: message.KindInitialUeMessage, InitialUeMessage: tt.msg},
			}

			encoded, err := Encode(pdu)
			require.NoError(t, err)

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, pdu, decoded)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	var decErr *DecodeError

	_, err := Decode([]byte{0x01, 0x02})
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, DecodeShortBuffer, decErr.Kind)

	// Five random octets: declared value length overruns the buffer.
	_, err = Decode([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, DecodeInvalidLength, decErr.Kind)

	_, err = Decode([]byte{0x60, 0x15, 0x00, 0x00})
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, DecodeUnknownPduType, decErr.Kind)
}

func TestDecodeUnknownProcedure(t *testing.T) {
	decoded, err := Decode([]byte{0x00, 0x63, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, message.KindUnknown, decoded.Value.Kind)
	assert.Equal(t, uint8(0x63), decoded.ProcedureCode)
}

func TestDecodeMissingMandatoryIe(t *testing.T) {
	// NG Setup Request with an empty IE container.
	_, err := Decode([]byte{0x00, 0x15, 0x00, 0x03, 0x00, 0x00, 0x00})

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, DecodeMissingMandatoryIe, decErr.Kind)
	assert.Equal(t, message.IDGlobalRANNodeID, decErr.IeID)
}

func TestDecodeUnknownNodeType(t *testing.T) {
	// Node type tag 9 is outside the six-variant CHOICE.
	raw := []byte{
		0x00, 0x15, 0x00, 0x10,
		0x00, 0x00, 0x01,
		0x00, 0x1B, 0x00, 0x09,
		0x09, 0x02, 0xF8, 0x39, 0x00, 0x01, 0x02, 0x03, 0x04,
	}

	_, err := Decode(raw)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, DecodeUnknownNodeTypeTag, decErr.Kind)
	assert.Equal(t, uint8(9), decErr.Tag)
}

func TestDecodeSkipsUnknownIes(t *testing.T) {
	req := gnbSetupRequest()
	pdu := &message.Pdu{
		Type:          message.PduInitiatingMessage,
		ProcedureCode: message.ProcedureCodeNGSetup,
		Criticality:   message.CriticalityReject,
		Value:         message.MessageValue{Kind: message.KindNgSetupRequest, NgSetupRequest: req},
	}

	encoded, err := Encode(pdu)
	require.NoError(t, err)

	// Append an unknown IE (id 200, 2 octets) and bump the IE count.
	unknown := []byte{0x00, 0xC8, 0x40, 0x02, 0xDE, 0xAD}
	body := append(append([]byte{}, encoded[4:]...), unknown...)
	body[2]++ // IE count lives behind the extension octet

	reframed := append([]byte{0x00, 0x15, 0x00, byte(len(body))}, body...)

	decoded, err := Decode(reframed)
	require.NoError(t, err)
	assert.Equal(t, req, decoded.Value.NgSetupRequest)
}

func TestEncodeUnsupportedValue(t *testing.T) {
	pdu := &message.Pdu{
		Type:          message.PduInitiatingMessage,
		ProcedureCode: message.ProcedureCodeUplinkNASTransport,
		Criticality:   message.CriticalityIgnore,
		Value:         message.MessageValue{Kind: message.KindUplinkNasTransport},
	}

	_, err := Encode(pdu)
	var encErr *EncodeError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, EncodeUnsupportedMessage, encErr.Kind)
}
