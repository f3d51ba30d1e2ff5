package ngap

import (
	stdcontext "context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/ishidawataru/sctp"
	"go.uber.org/zap"

	"github.com/gholtzap/amf/internal/config"
	amfcontext "github.com/gholtzap/amf/internal/context"
	"github.com/gholtzap/amf/internal/metrics"
	"github.com/gholtzap/amf/internal/ngap/message"
)

// readBufferSize bounds a single NGAP PDU. SCTP preserves message
// framing, so each read yields exactly one PDU.
const readBufferSize = 64 * 1024

// Server is the NGAP transport server: an SCTP listener with one reader
// goroutine per accepted association.
type Server struct {
	cfg        *config.Config
	handlers   *Handlers
	ranContext *amfcontext.RanContextManager
	ueContext  *amfcontext.UeContextManager
	logger     *zap.Logger

	listener *sctp.SCTPListener

	mu    sync.RWMutex
	conns map[string]net.Conn // peer address -> association

	wg sync.WaitGroup
}

// NewServer creates the NGAP server.
func NewServer(
	cfg *config.Config,
	handlers *Handlers,
	ranContext *amfcontext.RanContextManager,
	ueContext *amfcontext.UeContextManager,
	logger *zap.Logger,
) *Server {
	return &Server{
		cfg:        cfg,
		handlers:   handlers,
		ranContext: ranContext,
		ueContext:  ueContext,
		logger:     logger,
		conns:      make(map[string]net.Conn),
	}
}

// Start binds the SCTP listener and serves associations until ctx is
// cancelled. A bind failure is returned to the caller and is fatal.
func (s *Server) Start(ctx stdcontext.Context) error {
	laddr, err := sctp.ResolveSCTPAddr("sctp", s.cfg.NGAP.BindAddress)
	if err != nil {
		return fmt.Errorf("failed to resolve NGAP bind address %q: %w", s.cfg.NGAP.BindAddress, err)
	}

	listener, err := sctp.ListenSCTP("sctp", laddr)
	if err != nil {
		return fmt.Errorf("failed to bind NGAP SCTP listener on %q: %w", s.cfg.NGAP.BindAddress, err)
	}
	s.listener = listener

	s.logger.Info("NGAP server listening",
		zap.String("address", s.cfg.NGAP.BindAddress),
		zap.String("transport", "sctp"),
	)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.AcceptSCTP()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Error("Error accepting SCTP association", zap.Error(err))
			continue
		}

		addr := conn.RemoteAddr().String()
		s.logger.Info("Accepted SCTP association", zap.String("peer", addr))

		s.mu.Lock()
		s.conns[addr] = conn
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveAssociation(ctx, conn, addr)
		}()
	}

	// Closing the associations unblocks the readers; a PDU already being
	// handled finishes before its reader observes the close.
	s.mu.Lock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Info("NGAP server stopped")
	return nil
}

// serveAssociation reads PDUs from one association until the peer closes
// it or a transport error occurs. A decode failure drops the PDU but
// keeps the association open.
func (s *Server) serveAssociation(ctx stdcontext.Context, conn net.Conn, addr string) {
	defer s.closeAssociation(conn, addr)

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("SCTP association closed by peer", zap.String("peer", addr))
			} else if ctx.Err() == nil {
				s.logger.Error("Error reading from SCTP association",
					zap.String("peer", addr),
					zap.Error(err),
				)
			}
			return
		}
		if n == 0 {
			s.logger.Info("SCTP association closed by peer", zap.String("peer", addr))
			return
		}

		pdu, err := Decode(buf[:n])
		if err != nil {
			metrics.NgapDecodeFailures.Inc()
			s.logger.Warn("Failed to decode NGAP PDU",
				zap.String("peer", addr),
				zap.Int("len", n),
				zap.Error(err),
			)
			continue
		}

		response, err := s.handlers.Handle(ctx, pdu, addr)
		if err != nil {
			s.logger.Warn("NGAP procedure failed",
				zap.String("peer", addr),
				zap.Uint8("procedure_code", pdu.ProcedureCode),
				zap.Error(err),
			)
			continue
		}
		if response == nil {
			continue
		}

		if err := s.writePdu(conn, response); err != nil {
			s.logger.Error("Error writing NGAP response",
				zap.String("peer", addr),
				zap.Error(err),
			)
			return
		}
	}
}

// SendDownlink encodes and writes a PDU on the association owning the UE
// identified by amfUeNgapID. Exposed to the NAS subsystem for downlink
// NAS transport and UE-associated signalling.
func (s *Server) SendDownlink(amfUeNgapID uint64, pdu *message.Pdu) error {
	ueCtx, ok := s.ueContext.Get(amfUeNgapID)
	if !ok {
		return fmt.Errorf("no UE context for AMF-UE-NGAP-ID %d", amfUeNgapID)
	}

	ranCtx, ok := s.ranContext.Get(ueCtx.RanID)
	if !ok {
		return fmt.Errorf("no RAN context %q for AMF-UE-NGAP-ID %d", ueCtx.RanID, amfUeNgapID)
	}

	s.mu.RLock()
	conn, ok := s.conns[ranCtx.Addr]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no association for RAN %q at %s", ranCtx.RanID, ranCtx.Addr)
	}

	return s.writePdu(conn, pdu)
}

func (s *Server) writePdu(conn net.Conn, pdu *message.Pdu) error {
	encoded, err := Encode(pdu)
	if err != nil {
		return err
	}
	if _, err := conn.Write(encoded); err != nil {
		return err
	}
	return nil
}

func (s *Server) closeAssociation(conn net.Conn, addr string) {
	s.mu.Lock()
	delete(s.conns, addr)
	s.mu.Unlock()

	conn.Close()
	s.handlers.HandleAssociationClose(addr)
}
