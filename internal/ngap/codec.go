// Package ngap implements the NGAP signalling plane of the AMF: the
// aligned-PER codec for the supported PDU subset, the NG Setup and
// Initial UE Message procedure handlers, and the SCTP transport server
// that binds them to per-association reader goroutines.
package ngap

// PDU type discriminators, carried in the high three bits of octet 0.
const (
	pduTypeInitiating   = 0x00
	pduTypeSuccessful   = 0x20
	pduTypeUnsuccessful = 0x40
)
