package relay

import (
	"context"
	"fmt"
	"net/http"

	"github.com/giongto35/touchcoop/pkg/config"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/network/httpx"
	"github.com/grandcat/zeroconf"
)

// Service runs the relay over http and optionally announces it with mDNS.
type Service struct {
	conf   config.Relay
	relay  *Server
	server *httpx.Server
	mdns   *zeroconf.Server
	log    *logger.Logger
}

func NewService(conf config.Relay, log *logger.Logger) (*Service, error) {
	relay := NewServer(log)
	server, err := httpx.NewServer(conf.Address, func(*httpx.Server) http.Handler {
		h := http.NewServeMux()
		h.Handle(conf.Path, relay)
		h.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
		return h
	}, httpx.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return &Service{conf: conf, relay: relay, server: server, log: log.Tag("relay")}, nil
}

func (s *Service) Addr() string  { return s.server.Addr }
func (s *Service) Relay() *Server { return s.relay }

func (s *Service) Run() {
	s.log.Info().Msgf("Relay is listening at ws://%v%v", s.server.Addr, s.conf.Path)
	s.server.Run()
	if s.conf.Mdns.Enabled {
		m, err := Announce(s.conf.Mdns.Name, s.server.GetPort(), s.conf.Path)
		if err != nil {
			s.log.Error().Err(err).Msg("mDNS announcement failed")
			return
		}
		s.mdns = m
		s.log.Info().Msgf("Announced as %v.%v", s.conf.Mdns.Name, MdnsService)
	}
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.mdns != nil {
		s.mdns.Shutdown()
	}
	s.relay.Close()
	return s.server.Shutdown(ctx)
}

func (s *Service) String() string { return fmt.Sprintf("relay::%v", s.conf.Address) }
