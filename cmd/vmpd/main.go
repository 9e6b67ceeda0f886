// Command vmpd is the management protocol daemon: it accepts TCP
// connections and serves each with its own protocol session over a
// shared entity store.
package main

import (
	"flag"
	"net"
	"os"

	"github.com/rs/zerolog"

	"github.com/openvmd/vmp/domain"
	"github.com/openvmd/vmp/session"
)

func main() {
	configPath := flag.String("config", "vmpd.toml", "path to the vmpd TOML configuration")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := loadServiceConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration failed")
	}
	if level, perr := zerolog.ParseLevel(cfg.LogLevel); perr == nil {
		log = log.Level(level)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.ListenAddr).Msg("listen failed")
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("vmpd listening")

	store := domain.NewStore()
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error().Err(err).Msg("accept failed")
			continue
		}
		go serveConn(conn, cfg, store, log)
	}
}

func serveConn(conn net.Conn, cfg serviceConfig, store *domain.Store, log zerolog.Logger) {
	remote := conn.RemoteAddr().String()
	s := session.New(conn, conn, session.Config{
		Disabled:  cfg.Disabled,
		Creds:     cfg.Users,
		Store:     store,
		MaxOutput: cfg.MaxOutput,
		Log:       log.With().Str("remote", remote).Logger(),
	})
	s.Run(connHandler{log: log.With().Str("remote", remote).Logger()})
}

type connHandler struct {
	log zerolog.Logger
}

func (h connHandler) OnEstablish(s *session.Session) {
	h.log.Info().Msg("connection established")
}

func (h connHandler) OnError(s *session.Session) {
	errs := s.Errors()
	ev := h.log.Warn()
	if n := len(errs); n > 0 {
		ev = ev.Err(errs[n-1])
	}
	ev.Msg("connection failed")
}

func (h connHandler) OnClose(s *session.Session) {
	h.log.Info().
		Int("rx_bytes", s.State.Counters.RxBytes).
		Int("tx_bytes", s.State.Counters.TxBytes).
		Msg("connection closed")
}
