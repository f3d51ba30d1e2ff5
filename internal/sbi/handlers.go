package sbi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// handleStatus handles status requests.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"amf_name":    s.config.AMF.Name,
		"instance_id": s.config.NF.InstanceID,
		"ran_nodes":   len(s.ranContext.All()),
		"ue_contexts": len(s.ueContext.All()),
	})
}

// handleListUeContexts handles GET requests for all UE contexts.
func (s *Server) handleListUeContexts(w http.ResponseWriter, r *http.Request) {
	contexts := s.ueContext.All()

	ueList := make([]map[string]interface{}, 0, len(contexts))
	for _, ctx := range contexts {
		ueList = append(ueList, map[string]interface{}{
			"amfUeNgapId": ctx.AmfUeNgapID,
			"ranUeNgapId": ctx.RanUeNgapID,
			"supi":        ctx.Supi,
			"state":       ctx.State,
			"ranId":       ctx.RanID,
			"tai":         ctx.Tai,
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total": len(ueList),
		"ues":   ueList,
	})
}

// handleGetUeContext handles GET requests for one UE context by
// AMF-UE-NGAP-ID.
func (s *Server) handleGetUeContext(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "ueContextId"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid UE context id", err)
		return
	}

	ueCtx, ok := s.ueContext.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "UE context not found", nil)
		return
	}

	s.respondJSON(w, http.StatusOK, ueCtx)
}

// handleReleaseUeContext handles POST requests to release a UE context.
func (s *Server) handleReleaseUeContext(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "ueContextId"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid UE context id", err)
		return
	}

	s.logger.Info("Releasing UE context", zap.Uint64("amf_ue_ngap_id", id))

	if !s.releaser.ReleaseUeContext(id) {
		s.respondError(w, http.StatusNotFound, "UE context not found", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListRanNodes handles GET requests for registered RAN nodes.
func (s *Server) handleListRanNodes(w http.ResponseWriter, r *http.Request) {
	contexts := s.ranContext.All()

	ranList := make([]map[string]interface{}, 0, len(contexts))
	for _, ctx := range contexts {
		ranList = append(ranList, map[string]interface{}{
			"ranId":   ctx.RanID,
			"ranName": ctx.RanName,
			"addr":    ctx.Addr,
			"state":   ctx.State,
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":    len(ranList),
		"ranNodes": ranList,
	})
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError writes an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		s.logger.Error(message, zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	detail := ""
	if err != nil {
		detail = err.Error()
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"title":  message,
		"detail": detail,
	})
}
