package transport

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

type Config struct {
	Addr          string
	Path          string
	ReadTimeout   time.Duration
	SendQueueSize int
	Logger        *logrus.Logger
}

type Server struct {
	config   Config
	logger   *logrus.Logger
	handler  Handler
	listener net.Listener
	httpSrv  *http.Server
	upgrader websocket.Upgrader
	codec    *protocol.Codec
}

func NewServer(cfg Config, handler Handler) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}

	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 90 * time.Second
	}
	if cfg.SendQueueSize == 0 {
		cfg.SendQueueSize = 64
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}

	s := &Server{
		config:   cfg,
		logger:   log,
		handler:  handler,
		listener: listener,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		codec: protocol.NewCodec(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleWS)
	s.httpSrv = &http.Server{Handler: mux}

	return s, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down transport server")
	return s.httpSrv.Close()
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.Addr()).Info("Transport server started")

	go func() {
		<-ctx.Done()
		_ = s.httpSrv.Close()
	}()

	err := s.httpSrv.Serve(s.listener)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Error("Failed to upgrade connection")
		return
	}

	deviceID := uuid.NewString()
	conn := newConn(deviceID, ws, s.config.SendQueueSize)
	go conn.writePump()

	s.logger.WithFields(logrus.Fields{
		"device": deviceID,
		"remote": ws.RemoteAddr().String(),
	}).Info("Device connected")

	defer func() {
		_ = conn.Close()
		s.handler.HandleDisconnect(deviceID)
		s.logger.WithField("device", deviceID).Info("Device disconnected")
	}()

	for {
		_ = ws.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.WithField("device", deviceID).WithError(err).Debug("Read failed")
			}
			return
		}

		msg, err := s.codec.DecodeFromBytes(data)
		if err != nil {
			s.logger.WithField("device", deviceID).WithError(err).Warn("Dropping undecodable message")
			continue
		}

		s.handler.HandleMessage(deviceID, conn, msg)
	}
}
