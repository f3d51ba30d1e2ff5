package ngap

import (
	"encoding/binary"

	"github.com/gholtzap/amf/internal/ngap/aper"
	"github.com/gholtzap/amf/internal/ngap/message"
)

// Decode parses one NGAP PDU from octets. Unknown procedures yield a PDU
// whose value kind is KindUnknown; malformed octets yield a *DecodeError.
func Decode(data []byte) (*message.Pdu, error) {
	if len(data) < 3 {
		return nil, decodeShort()
	}

	switch data[0] & 0xE0 {
	case pduTypeInitiating:
		return decodeEnvelope(message.PduInitiatingMessage, data[1:])
	case pduTypeSuccessful:
		return decodeEnvelope(message.PduSuccessfulOutcome, data[1:])
	case pduTypeUnsuccessful:
		return decodeEnvelope(message.PduUnsuccessfulOutcome, data[1:])
	default:
		return nil, &DecodeError{Kind: DecodeUnknownPduType, Tag: data[0] & 0xE0}
	}
}

// decodeEnvelope parses the shared header (procedure code, criticality,
// open-type length determinant) and dispatches on the procedure body.
func decodeEnvelope(pduType message.PduType, data []byte) (*message.Pdu, error) {
	if len(data) < 2 {
		return nil, decodeShort()
	}

	procedureCode := data[0]
	criticality := (data[1] >> 6) & 0x03

	valueLen, consumed, err := aper.DecodeLength(data[2:])
	if err != nil {
		return nil, decodeLengthError(err)
	}
	valueStart := 2 + consumed
	if valueStart+valueLen > len(data) {
		return nil, &DecodeError{Kind: DecodeInvalidLength}
	}
	valueData := data[valueStart : valueStart+valueLen]

	value, err := decodeValue(pduType, procedureCode, valueData)
	if err != nil {
		return nil, err
	}

	return &message.Pdu{
		Type:          pduType,
		ProcedureCode: procedureCode,
		Criticality:   criticality,
		Value:         value,
	}, nil
}

func decodeValue(pduType message.PduType, procedureCode uint8, data []byte) (message.MessageValue, error) {
	switch pduType {
	case message.PduInitiatingMessage:
		switch procedureCode {
		case message.ProcedureCodeNGSetup:
			req, err := decodeNgSetupRequest(data)
			if err != nil {
				return message.MessageValue{}, err
			}
			return message.MessageValue{Kind: message.KindNgSetupRequest, NgSetupRequest: req}, nil
		case message.ProcedureCodeInitialUEMessage:
			msg, err := decodeInitialUeMessage(data)
			if err != nil {
				return message.MessageValue{}, err
			}
			return message.MessageValue{Kind: message.KindInitialUeMessage, InitialUeMessage: msg}, nil
		case message.ProcedureCodeUplinkNASTransport:
			return message.MessageValue{Kind: message.KindUplinkNasTransport, UplinkNasTransport: &message.UplinkNasTransport{}}, nil
		}
	case message.PduSuccessfulOutcome:
		if procedureCode == message.ProcedureCodeNGSetup {
			resp, err := decodeNgSetupResponse(data)
			if err != nil {
				return message.MessageValue{}, err
			}
			return message.MessageValue{Kind: message.KindNgSetupResponse, NgSetupResponse: resp}, nil
		}
	case message.PduUnsuccessfulOutcome:
		if procedureCode == message.ProcedureCodeNGSetup {
			failure, err := decodeNgSetupFailure(data)
			if err != nil {
				return message.MessageValue{}, err
			}
			return message.MessageValue{Kind: message.KindNgSetupFailure, NgSetupFailure: failure}, nil
		}
	}
	return message.MessageValue{Kind: message.KindUnknown}, nil
}

// ieIterator walks the protocol IE container of a value payload: one
// extension octet, a 16-bit big-endian IE count, then count IE entries.
// An IE whose declared length overruns the buffer stops iteration.
type ieIterator struct {
	data      []byte
	cursor    int
	remaining int
}

func newIeIterator(data []byte) (*ieIterator, error) {
	if len(data) < 3 {
		return nil, decodeShort()
	}
	count := int(binary.BigEndian.Uint16(data[1:3]))
	return &ieIterator{data: data, cursor: 3, remaining: count}, nil
}

// next returns the next IE's id and content, or ok=false when the
// container is exhausted or truncated.
func (it *ieIterator) next() (id uint16, content []byte, ok bool) {
	if it.remaining == 0 || it.cursor+3 > len(it.data) {
		return 0, nil, false
	}
	it.remaining--

	id = binary.BigEndian.Uint16(it.data[it.cursor : it.cursor+2])
	it.cursor += 3 // id + criticality octet

	length, consumed, err := aper.DecodeLength(it.data[it.cursor:])
	if err != nil {
		return 0, nil, false
	}
	it.cursor += consumed

	if it.cursor+length > len(it.data) {
		return 0, nil, false
	}
	content = it.data[it.cursor : it.cursor+length]
	it.cursor += length
	return id, content, true
}

func decodeNgSetupRequest(data []byte) (*message.NgSetupRequest, error) {
	it, err := newIeIterator(data)
	if err != nil {
		return nil, err
	}

	req := &message.NgSetupRequest{DefaultPagingDrx: 32}
	var haveNodeID bool

	for {
		id, content, ok := it.next()
		if !ok {
			break
		}
		switch id {
		case message.IDGlobalRANNodeID:
			nodeID, err := decodeGlobalRanNodeID(content)
			if err != nil {
				return nil, err
			}
			req.GlobalRanNodeID = *nodeID
			haveNodeID = true
		case message.IDRANNodeName:
			req.RanNodeName = string(content)
		case message.IDSupportedTAList:
			req.SupportedTaList = decodeSupportedTaList(content)
		case message.IDDefaultPagingDRX:
			if len(content) >= 1 {
				req.DefaultPagingDrx = uint32(content[0])
			}
		}
	}

	if !haveNodeID {
		return nil, &DecodeError{Kind: DecodeMissingMandatoryIe, IeID: message.IDGlobalRANNodeID}
	}
	return req, nil
}

// decodeGlobalRanNodeID parses the CHOICE tag octet, the 3-octet PLMN, an
// id-header octet and the opaque identifier bytes that follow.
func decodeGlobalRanNodeID(data []byte) (*message.GlobalRanNodeId, error) {
	if len(data) < 5 {
		return nil, decodeShort()
	}

	tag := data[0]
	if tag > uint8(message.RanNodeWAGF) {
		return nil, &DecodeError{Kind: DecodeUnknownNodeTypeTag, Tag: tag}
	}

	mcc, mnc, err := aper.DecodePlmn(data[1:4])
	if err != nil {
		return nil, decodeShort()
	}

	idBytes := data[5:] // data[4] is the id-header octet
	if len(idBytes) == 0 {
		return nil, decodeShort()
	}

	nodeID := &message.GlobalRanNodeId{
		NodeType:     message.RanNodeType(tag),
		PlmnIdentity: message.PlmnIdentity{Mcc: mcc, Mnc: mnc},
		NodeID:       aper.HexString(idBytes),
	}
	if nodeID.NodeType == message.RanNodeGNB {
		nodeID.GnbIDBitLength = uint8(len(idBytes) * 8)
	}
	return nodeID, nil
}

// decodeSupportedTaList parses the N-1-counted TA list. Truncated input
// yields the items decoded so far; the handler rejects empty lists.
func decodeSupportedTaList(data []byte) []message.SupportedTaItem {
	var list []message.SupportedTaItem
	cursor := 0

	if len(data) < 5 {
		return list
	}

	count := int(data[cursor]) + 1
	cursor++

	for i := 0; i < count; i++ {
		if cursor >= len(data) {
			break
		}
		cursor++ // extension octet

		if cursor+3 > len(data) {
			break
		}
		tac := aper.HexString(data[cursor : cursor+3])
		cursor += 3

		if cursor >= len(data) {
			break
		}
		plmnCount := int(data[cursor]) + 1
		cursor++

		var broadcast []message.BroadcastPlmnItem
		for j := 0; j < plmnCount; j++ {
			if cursor+3 > len(data) {
				break
			}
			mcc, mnc, err := aper.DecodePlmn(data[cursor : cursor+3])
			if err != nil {
				break
			}
			cursor += 3

			if cursor >= len(data) {
				break
			}
			sliceCount := int(data[cursor]) + 1
			cursor++

			var slices []message.SNssai
			for k := 0; k < sliceCount; k++ {
				if cursor+2 > len(data) {
					break
				}
				cursor++ // extension octet
				slices = append(slices, message.SNssai{Sst: data[cursor]})
				cursor++
			}

			broadcast = append(broadcast, message.BroadcastPlmnItem{
				PlmnIdentity: message.PlmnIdentity{Mcc: mcc, Mnc: mnc},
				SliceSupport: slices,
			})
		}

		list = append(list, message.SupportedTaItem{Tac: tac, BroadcastPlmn: broadcast})
	}

	return list
}

func decodeInitialUeMessage(data []byte) (*message.InitialUeMessage, error) {
	it, err := newIeIterator(data)
	if err != nil {
		return nil, err
	}

	msg := &message.InitialUeMessage{}
	var haveRanUeID, haveLocation bool

	for {
		id, content, ok := it.next()
		if !ok {
			break
		}
		switch id {
		case message.IDRANUENGAPID:
			if len(content) >= 4 {
				msg.RanUeNgapID = uint64(binary.BigEndian.Uint32(content[:4]))
				haveRanUeID = true
			}
		case message.IDNASPDU:
			msg.NasPdu = append([]byte(nil), content...)
		case message.IDUserLocationInformation:
			if loc, ok := decodeUserLocationInfo(content); ok {
				msg.UserLocationInfo = *loc
				haveLocation = true
			}
		case message.IDRRCEstablishmentCause:
			if len(content) >= 1 {
				msg.RrcEstablishmentCause = content[0]
			}
		}
	}

	if !haveRanUeID {
		return nil, &DecodeError{Kind: DecodeMissingMandatoryIe, IeID: message.IDRANUENGAPID}
	}
	if !haveLocation {
		return nil, &DecodeError{Kind: DecodeMissingMandatoryIe, IeID: message.IDUserLocationInformation}
	}
	return msg, nil
}

// decodeUserLocationInfo parses the subset layout: a 6-octet TAI
// (PLMN + TAC) optionally followed by a 9-octet NR-CGI (PLMN + 6-octet
// cell identity).
func decodeUserLocationInfo(data []byte) (*message.UserLocationInfo, bool) {
	if len(data) < 6 {
		return nil, false
	}

	mcc, mnc, err := aper.DecodePlmn(data[:3])
	if err != nil {
		return nil, false
	}
	loc := &message.UserLocationInfo{
		Tai: message.Tai{
			PlmnIdentity: message.PlmnIdentity{Mcc: mcc, Mnc: mnc},
			Tac:          aper.HexString(data[3:6]),
		},
	}

	if len(data) >= 15 {
		cgiMcc, cgiMnc, err := aper.DecodePlmn(data[6:9])
		if err == nil {
			loc.NrCgi = &message.NrCgi{
				PlmnIdentity:   message.PlmnIdentity{Mcc: cgiMcc, Mnc: cgiMnc},
				NrCellIdentity: aper.HexString(data[9:15]),
			}
		}
	}
	return loc, true
}

func decodeNgSetupResponse(data []byte) (*message.NgSetupResponse, error) {
	it, err := newIeIterator(data)
	if err != nil {
		return nil, err
	}

	resp := &message.NgSetupResponse{}
	for {
		id, content, ok := it.next()
		if !ok {
			break
		}
		switch id {
		case message.IDAMFName:
			resp.AmfName = string(content)
		case message.IDServedGUAMIList:
			resp.ServedGuamiList = decodeServedGuamiList(content)
		case message.IDRelativeAMFCapacity:
			if len(content) >= 1 {
				resp.RelativeAmfCapacity = content[0]
			}
		case message.IDPLMNSupportList:
			resp.PlmnSupportList = decodePlmnSupportList(content)
		}
	}
	return resp, nil
}

func decodeServedGuamiList(data []byte) []message.ServedGuami {
	var list []message.ServedGuami
	cursor := 0
	if len(data) == 0 {
		return list
	}

	count := int(data[cursor]) + 1
	cursor++

	for i := 0; i < count; i++ {
		if cursor+8 > len(data) {
			break
		}
		cursor++ // extension octet
		mcc, mnc, err := aper.DecodePlmn(data[cursor : cursor+3])
		if err != nil {
			break
		}
		cursor += 3

		regionID := data[cursor]
		cursor++
		setID := binary.BigEndian.Uint16(data[cursor:cursor+2]) >> 6
		cursor += 2
		pointer := data[cursor] >> 2
		cursor++

		list = append(list, message.ServedGuami{
			PlmnIdentity: message.PlmnIdentity{Mcc: mcc, Mnc: mnc},
			AmfRegionID:  aper.HexString([]byte{regionID}),
			AmfSetID:     aper.HexString([]byte{byte(setID >> 8), byte(setID)}),
			AmfPointer:   aper.HexString([]byte{pointer}),
		})
	}
	return list
}

func decodePlmnSupportList(data []byte) []message.PlmnSupportItem {
	var list []message.PlmnSupportItem
	cursor := 0
	if len(data) == 0 {
		return list
	}

	count := int(data[cursor]) + 1
	cursor++

	for i := 0; i < count; i++ {
		if cursor+4 > len(data) {
			break
		}
		cursor++ // extension octet
		mcc, mnc, err := aper.DecodePlmn(data[cursor : cursor+3])
		if err != nil {
			break
		}
		cursor += 3

		if cursor >= len(data) {
			break
		}
		sliceCount := int(data[cursor]) + 1
		cursor++

		var slices []message.SNssai
		for k := 0; k < sliceCount; k++ {
			if cursor+2 > len(data) {
				break
			}
			cursor++ // extension octet
			slices = append(slices, message.SNssai{Sst: data[cursor]})
			cursor++
		}

		list = append(list, message.PlmnSupportItem{
			PlmnIdentity: message.PlmnIdentity{Mcc: mcc, Mnc: mnc},
			SliceSupport: slices,
		})
	}
	return list
}

func decodeNgSetupFailure(data []byte) (*message.NgSetupFailure, error) {
	it, err := newIeIterator(data)
	if err != nil {
		return nil, err
	}

	failure := &message.NgSetupFailure{}
	var haveCause bool

	for {
		id, content, ok := it.next()
		if !ok {
			break
		}
		switch id {
		case message.IDCause:
			if len(content) >= 2 {
				failure.Cause = message.Cause{Type: content[0], Value: content[1]}
				haveCause = true
			}
		case message.IDTimeToWait:
			if len(content) >= 1 {
				ttw := content[0]
				failure.TimeToWait = &ttw
			}
		}
	}

	if !haveCause {
		return nil, &DecodeError{Kind: DecodeMissingMandatoryIe, IeID: message.IDCause}
	}
	return failure, nil
}
