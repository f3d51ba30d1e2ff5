// Package context holds the AMF's in-memory RAN and UE context tables.
// The managers are the only sharing surface between the NGAP transport
// goroutines, the SBI server and the NAS subsystem: callers always receive
// value copies and publish changes through Update.
package context

import (
	"sync"

	"github.com/gholtzap/amf/internal/ngap/message"
)

// RanState represents the lifecycle state of a RAN node.
type RanState string

const (
	RanStateDisconnected RanState = "DISCONNECTED"
	RanStateConnected    RanState = "CONNECTED"
	RanStateActive       RanState = "ACTIVE"
)

// RanContext is the per-access-node state created by a successful NG Setup.
type RanContext struct {
	RanID            string                    `json:"ranId"`
	RanName          string                    `json:"ranName"`
	Addr             string                    `json:"addr"`
	State            RanState                  `json:"state"`
	SupportedTaList  []message.SupportedTaItem `json:"supportedTaList"`
	DefaultPagingDrx uint32                    `json:"defaultPagingDrx"`
}

func (c *RanContext) clone() RanContext {
	out := *c
	out.SupportedTaList = cloneTaList(c.SupportedTaList)
	return out
}

func cloneTaList(list []message.SupportedTaItem) []message.SupportedTaItem {
	if list == nil {
		return nil
	}
	out := make([]message.SupportedTaItem, len(list))
	for i, ta := range list {
		out[i] = ta
		out[i].BroadcastPlmn = make([]message.BroadcastPlmnItem, len(ta.BroadcastPlmn))
		for j, bp := range ta.BroadcastPlmn {
			out[i].BroadcastPlmn[j] = bp
			out[i].BroadcastPlmn[j].SliceSupport = append([]message.SNssai(nil), bp.SliceSupport...)
		}
	}
	return out
}

// RanContextManager indexes RAN contexts by RAN id and by peer transport
// address. Both indexes are maintained under one critical section, so
// addr_index[c.Addr] == c.RanID holds at every observable point.
type RanContextManager struct {
	mu       sync.RWMutex
	contexts map[string]*RanContext
	byAddr   map[string]string
}

// NewRanContextManager creates an empty RAN context manager.
func NewRanContextManager() *RanContextManager {
	return &RanContextManager{
		contexts: make(map[string]*RanContext),
		byAddr:   make(map[string]string),
	}
}

// Create registers a new, disconnected RAN context for ran_id at addr.
func (m *RanContextManager) Create(ranID, addr string) RanContext {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := &RanContext{
		RanID: ranID,
		Addr:  addr,
		State: RanStateDisconnected,
	}
	m.contexts[ranID] = ctx
	m.byAddr[addr] = ranID
	return ctx.clone()
}

// Get returns a copy of the context for ranID.
func (m *RanContextManager) Get(ranID string) (RanContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ctx, ok := m.contexts[ranID]
	if !ok {
		return RanContext{}, false
	}
	return ctx.clone(), true
}

// GetByAddr returns a copy of the context owning the peer address.
func (m *RanContextManager) GetByAddr(addr string) (RanContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ranID, ok := m.byAddr[addr]
	if !ok {
		return RanContext{}, false
	}
	ctx, ok := m.contexts[ranID]
	if !ok {
		return RanContext{}, false
	}
	return ctx.clone(), true
}

// Update publishes ctx, re-linking the address index before the new value
// becomes visible. An upsert: the context need not exist yet.
func (m *RanContextManager) Update(ctx RanContext) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.contexts[ctx.RanID]; ok && old.Addr != ctx.Addr {
		delete(m.byAddr, old.Addr)
	}
	m.byAddr[ctx.Addr] = ctx.RanID
	stored := ctx.clone()
	m.contexts[ctx.RanID] = &stored
}

// Remove deletes the context for ranID and unlinks its address entry.
func (m *RanContextManager) Remove(ranID string) (RanContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, ok := m.contexts[ranID]
	if !ok {
		return RanContext{}, false
	}
	delete(m.contexts, ranID)
	delete(m.byAddr, ctx.Addr)
	return ctx.clone(), true
}

// All returns copies of every RAN context.
func (m *RanContextManager) All() []RanContext {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RanContext, 0, len(m.contexts))
	for _, ctx := range m.contexts {
		out = append(out, ctx.clone())
	}
	return out
}

// ConnectedCount returns the number of RAN nodes in Connected or Active
// state.
func (m *RanContextManager) ConnectedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, ctx := range m.contexts {
		if ctx.State == RanStateConnected || ctx.State == RanStateActive {
			count++
		}
	}
	return count
}
