// Package message defines the typed in-memory representation of the NGAP
// PDUs the AMF handles (3GPP TS 38.413 subset): the top-level PDU variants,
// the per-procedure message bodies and their information elements.
package message

// NGAP procedure codes handled by this AMF.
const (
	ProcedureCodeNGSetup            uint8 = 21
	ProcedureCodeInitialUEMessage   uint8 = 15
	ProcedureCodeUplinkNASTransport uint8 = 46
)

// IE criticality values (top two bits on the wire).
const (
	CriticalityReject uint8 = 0
	CriticalityIgnore uint8 = 1
	CriticalityNotify uint8 = 2
)

// Protocol IE identifiers (TS 38.413, 9.3.1).
const (
	IDAMFName                 uint16 = 1
	IDCause                   uint16 = 15
	IDDefaultPagingDRX        uint16 = 21
	IDGlobalRANNodeID         uint16 = 27
	IDNASPDU                  uint16 = 38
	IDRANUENGAPID             uint16 = 85
	IDRANNodeName             uint16 = 82
	IDRelativeAMFCapacity     uint16 = 80
	IDPLMNSupportList         uint16 = 86
	IDRRCEstablishmentCause   uint16 = 90
	IDServedGUAMIList         uint16 = 96
	IDSupportedTAList         uint16 = 102
	IDTimeToWait              uint16 = 107
	IDUserLocationInformation uint16 = 121
)

// PduType discriminates the three top-level NGAP PDU variants.
type PduType uint8

const (
	PduInitiatingMessage PduType = iota
	PduSuccessfulOutcome
	PduUnsuccessfulOutcome
)

// Pdu is a decoded NGAP PDU. Exactly one of the payload interpretations
// applies, selected by Type; all three variants carry the same header.
type Pdu struct {
	Type          PduType
	ProcedureCode uint8
	Criticality   uint8
	Value         MessageValue
}

// ValueKind discriminates the procedure bodies in MessageValue.
type ValueKind uint8

const (
	KindUnknown ValueKind = iota
	KindNgSetupRequest
	KindNgSetupResponse
	KindNgSetupFailure
	KindInitialUeMessage
	KindUplinkNasTransport
)

// MessageValue is the closed sum over the supported procedure bodies.
// The pointer matching Kind is non-nil; all others are nil. Unknown
// procedures decode to KindUnknown with every pointer nil.
type MessageValue struct {
	Kind               ValueKind
	NgSetupRequest     *NgSetupRequest
	NgSetupResponse    *NgSetupResponse
	NgSetupFailure     *NgSetupFailure
	InitialUeMessage   *InitialUeMessage
	UplinkNasTransport *UplinkNasTransport
}

// PlmnIdentity is an MCC/MNC pair in decimal-digit string form. MCC is
// always three digits, MNC two or three.
type PlmnIdentity struct {
	Mcc string `json:"mcc"`
	Mnc string `json:"mnc"`
}

// RanNodeType enumerates the six access node types that may appear in a
// GlobalRanNodeId CHOICE.
type RanNodeType uint8

const (
	RanNodeGNB RanNodeType = iota
	RanNodeNgENB
	RanNodeN3IWF
	RanNodeTNGF
	RanNodeTWIF
	RanNodeWAGF
)

// String returns the node-type label used in derived RAN identifiers.
func (t RanNodeType) String() string {
	switch t {
	case RanNodeGNB:
		return "gnb"
	case RanNodeNgENB:
		return "ngenb"
	case RanNodeN3IWF:
		return "n3iwf"
	case RanNodeTNGF:
		return "tngf"
	case RanNodeTWIF:
		return "twif"
	case RanNodeWAGF:
		return "wagf"
	}
	return "unknown"
}

// GlobalRanNodeId is the tagged variant identifying an access node. NodeID
// holds the opaque identifier in lowercase hex. GnbIDBitLength records the
// significant bit count (22..32) for the gNB variant and is zero otherwise.
type GlobalRanNodeId struct {
	NodeType       RanNodeType  `json:"nodeType"`
	PlmnIdentity   PlmnIdentity `json:"plmnIdentity"`
	NodeID         string       `json:"nodeId"`
	GnbIDBitLength uint8        `json:"gnbIdBitLength,omitempty"`
}

// SNssai identifies a network slice by SST and optional 3-octet-hex SD.
type SNssai struct {
	Sst uint8  `json:"sst"`
	Sd  string `json:"sd,omitempty"`
}

// BroadcastPlmnItem binds a PLMN to the slices broadcast in a tracking area.
type BroadcastPlmnItem struct {
	PlmnIdentity PlmnIdentity `json:"plmnIdentity"`
	SliceSupport []SNssai     `json:"sliceSupport"`
}

// SupportedTaItem is one tracking area a RAN node serves: a 3-octet-hex
// TAC and a non-empty broadcast PLMN list.
type SupportedTaItem struct {
	Tac           string              `json:"tac"`
	BroadcastPlmn []BroadcastPlmnItem `json:"broadcastPlmn"`
}

// NgSetupRequest carries the identity and coverage a RAN node announces.
type NgSetupRequest struct {
	GlobalRanNodeID  GlobalRanNodeId
	RanNodeName      string
	SupportedTaList  []SupportedTaItem
	DefaultPagingDrx uint32
}

// ServedGuami is one GUAMI the AMF serves.
type ServedGuami struct {
	PlmnIdentity PlmnIdentity `json:"plmnIdentity"`
	AmfRegionID  string       `json:"amfRegionId"`
	AmfSetID     string       `json:"amfSetId"`
	AmfPointer   string       `json:"amfPointer"`
}

// PlmnSupportItem is one PLMN the AMF supports with its slices.
type PlmnSupportItem struct {
	PlmnIdentity PlmnIdentity `json:"plmnIdentity"`
	SliceSupport []SNssai     `json:"sliceSupport"`
}

// NgSetupResponse is the successful outcome of the NG Setup procedure.
type NgSetupResponse struct {
	AmfName             string
	ServedGuamiList     []ServedGuami
	RelativeAmfCapacity uint8
	PlmnSupportList     []PlmnSupportItem
}

// Cause is an NGAP cause group and value.
type Cause struct {
	Type  uint8
	Value uint8
}

// Cause groups (TS 38.413, 9.3.1.2).
const (
	CauseTypeRadioNetwork uint8 = 0
	CauseTypeTransport    uint8 = 1
	CauseTypeNas          uint8 = 2
	CauseTypeProtocol     uint8 = 3
	CauseTypeMisc         uint8 = 4
)

// NgSetupFailure is the unsuccessful outcome of the NG Setup procedure.
type NgSetupFailure struct {
	Cause      Cause
	TimeToWait *uint8
}

// Tai is a tracking area identity: serving PLMN plus 3-octet-hex TAC.
type Tai struct {
	PlmnIdentity PlmnIdentity `json:"plmnIdentity"`
	Tac          string       `json:"tac"`
}

// NrCgi is an NR cell global identity: PLMN plus the 36-bit cell id in hex.
type NrCgi struct {
	PlmnIdentity   PlmnIdentity `json:"plmnIdentity"`
	NrCellIdentity string       `json:"nrCellIdentity"`
}

// UserLocationInfo is the reported UE location. NrCgi is present only when
// the peer appends the NR-CGI suffix.
type UserLocationInfo struct {
	Tai   Tai
	NrCgi *NrCgi
}

// InitialUeMessage announces a new radio connection and tunnels the first
// uplink NAS message.
type InitialUeMessage struct {
	RanUeNgapID           uint64
	NasPdu                []byte
	UserLocationInfo      UserLocationInfo
	RrcEstablishmentCause uint8
}

// UplinkNasTransport is a slot for the uplink NAS procedure; the core logs
// and drops it, so only the header survives decoding.
type UplinkNasTransport struct{}
