package context

import (
	"sync"

	"github.com/gholtzap/amf/internal/ngap/message"
)

// UeState represents the lifecycle state of a UE context.
type UeState string

const (
	UeStateDeregistered UeState = "DEREGISTERED"
	UeStateRegistered   UeState = "REGISTERED"
	UeStateConnected    UeState = "CONNECTED"
	UeStateIdle         UeState = "IDLE"
)

// Guti is a 5G Globally Unique Temporary Identifier.
type Guti struct {
	PlmnIdentity message.PlmnIdentity `json:"plmnIdentity"`
	AmfRegionID  string               `json:"amfRegionId"`
	AmfSetID     string               `json:"amfSetId"`
	AmfPointer   string               `json:"amfPointer"`
	Tmsi         uint32               `json:"tmsi"`
}

// SecurityContext holds the NAS security state established by the NAS
// subsystem after authentication and security mode control.
type SecurityContext struct {
	Ksi                  uint8  `json:"ksi"`
	Kamf                 []byte `json:"kamf"`
	Kseaf                []byte `json:"kseaf"`
	KNasEnc              []byte `json:"kNasEnc"`
	KNasInt              []byte `json:"kNasInt"`
	IntegrityAlgorithm   string `json:"integrityAlgorithm"`
	CipheringAlgorithm   string `json:"cipheringAlgorithm"`
	UeSecurityCapability []byte `json:"ueSecurityCapability"`
}

// UeContext is the per-radio-connection state created on Initial UE
// Message. RanID is the owning RAN's identifier; the RAN ↔ UE relation
// always goes back through the RanContextManager.
type UeContext struct {
	AmfUeNgapID      uint64           `json:"amfUeNgapId"`
	RanUeNgapID      *uint64          `json:"ranUeNgapId,omitempty"`
	Supi             string           `json:"supi,omitempty"`
	Suci             string           `json:"suci,omitempty"`
	Guti             *Guti            `json:"guti,omitempty"`
	Pei              string           `json:"pei,omitempty"`
	State            UeState          `json:"state"`
	SecurityContext  *SecurityContext `json:"securityContext,omitempty"`
	NasUplinkCount   uint32           `json:"nasUplinkCount"`
	NasDownlinkCount uint32           `json:"nasDownlinkCount"`
	Tai              *message.Tai     `json:"tai,omitempty"`
	Ecgi             string           `json:"ecgi,omitempty"`
	RanID            string           `json:"ranId,omitempty"`
}

func (c *UeContext) clone() UeContext {
	out := *c
	if c.RanUeNgapID != nil {
		id := *c.RanUeNgapID
		out.RanUeNgapID = &id
	}
	if c.Guti != nil {
		guti := *c.Guti
		out.Guti = &guti
	}
	if c.SecurityContext != nil {
		sc := *c.SecurityContext
		sc.Kamf = append([]byte(nil), c.SecurityContext.Kamf...)
		sc.Kseaf = append([]byte(nil), c.SecurityContext.Kseaf...)
		sc.KNasEnc = append([]byte(nil), c.SecurityContext.KNasEnc...)
		sc.KNasInt = append([]byte(nil), c.SecurityContext.KNasInt...)
		sc.UeSecurityCapability = append([]byte(nil), c.SecurityContext.UeSecurityCapability...)
		out.SecurityContext = &sc
	}
	if c.Tai != nil {
		tai := *c.Tai
		out.Tai = &tai
	}
	return out
}

// UeContextManager indexes UE contexts by AMF-UE-NGAP-ID and by SUPI, and
// owns the monotonic AMF-UE-NGAP-ID allocator. If a context carries a
// SUPI, supi_index[supi] == amf_ue_ngap_id holds at every observable
// point.
type UeContextManager struct {
	mu       sync.RWMutex
	contexts map[uint64]*UeContext
	bySupi   map[string]uint64

	allocMu sync.Mutex
	nextID  uint64
}

// NewUeContextManager creates an empty UE context manager.
func NewUeContextManager() *UeContextManager {
	return &UeContextManager{
		contexts: make(map[uint64]*UeContext),
		bySupi:   make(map[string]uint64),
		nextID:   1,
	}
}

// AllocateAmfUeNgapID returns the next AMF-UE-NGAP-ID. Values are strictly
// increasing for the lifetime of the process, starting at 1.
func (m *UeContextManager) AllocateAmfUeNgapID() uint64 {
	m.allocMu.Lock()
	defer m.allocMu.Unlock()

	id := m.nextID
	m.nextID++
	return id
}

// AdvanceAllocator ensures future allocations are strictly greater than
// id. Called when rebuilding the table from persisted snapshots so
// restored identifiers are never reissued.
func (m *UeContextManager) AdvanceAllocator(id uint64) {
	m.allocMu.Lock()
	defer m.allocMu.Unlock()

	if id >= m.nextID {
		m.nextID = id + 1
	}
}

// Create registers a fresh, deregistered UE context under amfUeNgapID.
func (m *UeContextManager) Create(amfUeNgapID uint64) UeContext {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := &UeContext{
		AmfUeNgapID: amfUeNgapID,
		State:       UeStateDeregistered,
	}
	m.contexts[amfUeNgapID] = ctx
	return ctx.clone()
}

// Get returns a copy of the context for amfUeNgapID.
func (m *UeContextManager) Get(amfUeNgapID uint64) (UeContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ctx, ok := m.contexts[amfUeNgapID]
	if !ok {
		return UeContext{}, false
	}
	return ctx.clone(), true
}

// GetBySupi returns a copy of the context registered for supi.
func (m *UeContextManager) GetBySupi(supi string) (UeContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.bySupi[supi]
	if !ok {
		return UeContext{}, false
	}
	ctx, ok := m.contexts[id]
	if !ok {
		return UeContext{}, false
	}
	return ctx.clone(), true
}

// Update publishes ctx, re-linking the SUPI index before the new value
// becomes visible.
func (m *UeContextManager) Update(ctx UeContext) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.contexts[ctx.AmfUeNgapID]; ok && old.Supi != "" && old.Supi != ctx.Supi {
		delete(m.bySupi, old.Supi)
	}
	if ctx.Supi != "" {
		m.bySupi[ctx.Supi] = ctx.AmfUeNgapID
	}
	stored := ctx.clone()
	m.contexts[ctx.AmfUeNgapID] = &stored
}

// Remove deletes the context for amfUeNgapID and unlinks its SUPI entry.
func (m *UeContextManager) Remove(amfUeNgapID uint64) (UeContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, ok := m.contexts[amfUeNgapID]
	if !ok {
		return UeContext{}, false
	}
	delete(m.contexts, amfUeNgapID)
	if ctx.Supi != "" {
		delete(m.bySupi, ctx.Supi)
	}
	return ctx.clone(), true
}

// RemoveByRan deletes every UE context owned by ranID, returning the
// removed copies. Used when the owning SCTP association tears down.
func (m *UeContextManager) RemoveByRan(ranID string) []UeContext {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []UeContext
	for id, ctx := range m.contexts {
		if ctx.RanID != ranID {
			continue
		}
		delete(m.contexts, id)
		if ctx.Supi != "" {
			delete(m.bySupi, ctx.Supi)
		}
		removed = append(removed, ctx.clone())
	}
	return removed
}

// All returns copies of every UE context.
func (m *UeContextManager) All() []UeContext {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]UeContext, 0, len(m.contexts))
	for _, ctx := range m.contexts {
		out = append(out, ctx.clone())
	}
	return out
}

// ConnectedCount returns the number of UEs in Connected state.
func (m *UeContextManager) ConnectedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, ctx := range m.contexts {
		if ctx.State == UeStateConnected {
			count++
		}
	}
	return count
}
