package ngap

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/gholtzap/amf/internal/ngap/aper"
	"github.com/gholtzap/amf/internal/ngap/message"
)

// Encode serializes a PDU into NGAP wire octets. Message bodies outside
// the supported procedure subset yield an *EncodeError.
func Encode(pdu *message.Pdu) ([]byte, error) {
	var typeOctet byte
	switch pdu.Type {
	case message.PduInitiatingMessage:
		typeOctet = pduTypeInitiating
	case message.PduSuccessfulOutcome:
		typeOctet = pduTypeSuccessful
	case message.PduUnsuccessfulOutcome:
		typeOctet = pduTypeUnsuccessful
	default:
		return nil, &EncodeError{Kind: EncodeUnsupportedMessage, Detail: fmt.Sprintf("pdu type %d", pdu.Type)}
	}

	value, err := encodeValue(&pdu.Value)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(value)+8)
	out = append(out, typeOctet, pdu.ProcedureCode, pdu.Criticality<<6)
	out = aper.EncodeLength(out, len(value))
	return append(out, value...), nil
}

func encodeValue(value *message.MessageValue) ([]byte, error) {
	switch value.Kind {
	case message.KindNgSetupRequest:
		return encodeNgSetupRequest(value.NgSetupRequest)
	case message.KindNgSetupResponse:
		return encodeNgSetupResponse(value.NgSetupResponse)
	case message.KindNgSetupFailure:
		return encodeNgSetupFailure(value.NgSetupFailure)
	case message.KindInitialUeMessage:
		return encodeInitialUeMessage(value.InitialUeMessage)
	}
	return nil, &EncodeError{Kind: EncodeUnsupportedMessage, Detail: fmt.Sprintf("value kind %d", value.Kind)}
}

// ieContainer accumulates protocol IEs behind the extension octet and the
// 16-bit IE count the container layout requires.
type ieContainer struct {
	count uint16
	buf   []byte
}

func (c *ieContainer) add(id uint16, criticality uint8, content []byte) {
	c.count++
	c.buf = binary.BigEndian.AppendUint16(c.buf, id)
	c.buf = append(c.buf, criticality<<6)
	c.buf = aper.EncodeLength(c.buf, len(content))
	c.buf = append(c.buf, content...)
}

func (c *ieContainer) bytes() []byte {
	out := make([]byte, 0, len(c.buf)+3)
	out = append(out, 0x00) // extension bit
	out = binary.BigEndian.AppendUint16(out, c.count)
	return append(out, c.buf...)
}

func encodeNgSetupRequest(req *message.NgSetupRequest) ([]byte, error) {
	var c ieContainer

	nodeID, err := encodeGlobalRanNodeID(&req.GlobalRanNodeID)
	if err != nil {
		return nil, err
	}
	c.add(message.IDGlobalRANNodeID, message.CriticalityReject, nodeID)

	if req.RanNodeName != "" {
		c.add(message.IDRANNodeName, message.CriticalityIgnore, []byte(req.RanNodeName))
	}

	taList, err := encodeSupportedTaList(req.SupportedTaList)
	if err != nil {
		return nil, err
	}
	c.add(message.IDSupportedTAList, message.CriticalityReject, taList)

	if req.DefaultPagingDrx > 0xFF {
		return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: "default paging DRX"}
	}
	c.add(message.IDDefaultPagingDRX, message.CriticalityIgnore, []byte{byte(req.DefaultPagingDrx)})

	return c.bytes(), nil
}

func encodeGlobalRanNodeID(id *message.GlobalRanNodeId) ([]byte, error) {
	buf := []byte{byte(id.NodeType)}
	buf, err := aper.EncodePlmn(buf, id.PlmnIdentity.Mcc, id.PlmnIdentity.Mnc)
	if err != nil {
		return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: err.Error()}
	}
	buf = append(buf, 0x00) // id header octet
	buf, err = aper.EncodeHexOctets(buf, id.NodeID)
	if err != nil {
		return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: err.Error()}
	}
	return buf, nil
}

func encodeSupportedTaList(list []message.SupportedTaItem) ([]byte, error) {
	if len(list) == 0 || len(list) > 256 {
		return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: "supported TA list size"}
	}

	buf := []byte{byte(len(list) - 1)}
	for _, ta := range list {
		buf = append(buf, 0x00) // extension bit
		var err error
		buf, err = aper.EncodeHexOctets(buf, ta.Tac)
		if err != nil {
			return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: err.Error()}
		}

		if len(ta.BroadcastPlmn) == 0 {
			return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: "empty broadcast PLMN list"}
		}
		buf = append(buf, byte(len(ta.BroadcastPlmn)-1))
		for _, bp := range ta.BroadcastPlmn {
			buf, err = aper.EncodePlmn(buf, bp.PlmnIdentity.Mcc, bp.PlmnIdentity.Mnc)
			if err != nil {
				return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: err.Error()}
			}

			if len(bp.SliceSupport) == 0 {
				return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: "empty slice support list"}
			}
			buf = append(buf, byte(len(bp.SliceSupport)-1))
			for _, slice := range bp.SliceSupport {
				buf = append(buf, 0x00, slice.Sst)
			}
		}
	}
	return buf, nil
}

func encodeNgSetupResponse(resp *message.NgSetupResponse) ([]byte, error) {
	var c ieContainer

	c.add(message.IDAMFName, message.CriticalityReject, []byte(resp.AmfName))

	guamiList, err := encodeServedGuamiList(resp.ServedGuamiList)
	if err != nil {
		return nil, err
	}
	c.add(message.IDServedGUAMIList, message.CriticalityReject, guamiList)

	c.add(message.IDRelativeAMFCapacity, message.CriticalityReject, []byte{resp.RelativeAmfCapacity})

	plmnList, err := encodePlmnSupportList(resp.PlmnSupportList)
	if err != nil {
		return nil, err
	}
	c.add(message.IDPLMNSupportList, message.CriticalityReject, plmnList)

	return c.bytes(), nil
}

// encodeServedGuamiList packs each GUAMI as extension bit, PLMN, region
// id octet, set id left-shifted into the top 10 bits of two octets, and
// pointer left-shifted into the top 6 bits of one octet.
func encodeServedGuamiList(list []message.ServedGuami) ([]byte, error) {
	if len(list) == 0 || len(list) > 256 {
		return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: "served GUAMI list size"}
	}

	buf := []byte{byte(len(list) - 1)}
	for _, guami := range list {
		buf = append(buf, 0x00)
		var err error
		buf, err = aper.EncodePlmn(buf, guami.PlmnIdentity.Mcc, guami.PlmnIdentity.Mnc)
		if err != nil {
			return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: err.Error()}
		}

		regionID, err := strconv.ParseUint(guami.AmfRegionID, 16, 8)
		if err != nil {
			return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: "amf region id"}
		}
		buf = append(buf, byte(regionID))

		setID, err := strconv.ParseUint(guami.AmfSetID, 16, 10)
		if err != nil {
			return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: "amf set id"}
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(setID)<<6)

		pointer, err := strconv.ParseUint(guami.AmfPointer, 16, 6)
		if err != nil {
			return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: "amf pointer"}
		}
		buf = append(buf, byte(pointer)<<2)
	}
	return buf, nil
}

func encodePlmnSupportList(list []message.PlmnSupportItem) ([]byte, error) {
	if len(list) == 0 || len(list) > 12 {
		return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: "PLMN support list size"}
	}

	buf := []byte{byte(len(list) - 1)}
	for _, item := range list {
		buf = append(buf, 0x00)
		var err error
		buf, err = aper.EncodePlmn(buf, item.PlmnIdentity.Mcc, item.PlmnIdentity.Mnc)
		if err != nil {
			return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: err.Error()}
		}

		if len(item.SliceSupport) == 0 {
			return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: "empty slice support list"}
		}
		buf = append(buf, byte(len(item.SliceSupport)-1))
		for _, slice := range item.SliceSupport {
			buf = append(buf, 0x00, slice.Sst)
		}
	}
	return buf, nil
}

func encodeNgSetupFailure(failure *message.NgSetupFailure) ([]byte, error) {
	var c ieContainer

	c.add(message.IDCause, message.CriticalityIgnore, []byte{failure.Cause.Type, failure.Cause.Value})
	if failure.TimeToWait != nil {
		c.add(message.IDTimeToWait, message.CriticalityIgnore, []byte{*failure.TimeToWait})
	}

	return c.bytes(), nil
}

func encodeInitialUeMessage(msg *message.InitialUeMessage) ([]byte, error) {
	var c ieContainer

	if msg.RanUeNgapID > 0xFFFFFFFF {
		return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: "RAN-UE-NGAP-ID"}
	}
	c.add(message.IDRANUENGAPID, message.CriticalityReject,
		binary.BigEndian.AppendUint32(nil, uint32(msg.RanUeNgapID)))

	c.add(message.IDNASPDU, message.CriticalityReject, msg.NasPdu)

	loc, err := encodeUserLocationInfo(&msg.UserLocationInfo)
	if err != nil {
		return nil, err
	}
	c.add(message.IDUserLocationInformation, message.CriticalityReject, loc)

	c.add(message.IDRRCEstablishmentCause, message.CriticalityIgnore, []byte{msg.RrcEstablishmentCause})

	return c.bytes(), nil
}

func encodeUserLocationInfo(loc *message.UserLocationInfo) ([]byte, error) {
	buf, err := aper.EncodePlmn(nil, loc.Tai.PlmnIdentity.Mcc, loc.Tai.PlmnIdentity.Mnc)
	if err != nil {
		return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: err.Error()}
	}
	buf, err = aper.EncodeHexOctets(buf, loc.Tai.Tac)
	if err != nil {
		return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: err.Error()}
	}

	if loc.NrCgi != nil {
		buf, err = aper.EncodePlmn(buf, loc.NrCgi.PlmnIdentity.Mcc, loc.NrCgi.PlmnIdentity.Mnc)
		if err != nil {
			return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: err.Error()}
		}
		buf, err = aper.EncodeHexOctets(buf, loc.NrCgi.NrCellIdentity)
		if err != nil {
			return nil, &EncodeError{Kind: EncodeFieldOutOfRange, Detail: err.Error()}
		}
	}
	return buf, nil
}
