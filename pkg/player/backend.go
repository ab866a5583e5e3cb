package player

import (
	"context"
	"errors"
	"time"

	"github.com/giongto35/touchcoop/pkg/bus"
	"github.com/giongto35/touchcoop/pkg/config"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/network/webrtc"
	"github.com/giongto35/touchcoop/pkg/relay"
	"github.com/giongto35/touchcoop/pkg/transport"
	"github.com/giongto35/touchcoop/pkg/transport/brokered"
	"github.com/giongto35/touchcoop/pkg/transport/direct"
)

const discoverWait = 5 * time.Second

// NewDialer picks the backend by the token the share link carries.
func NewDialer(ctx context.Context, conf config.Config, shareURL string, log *logger.Logger) (transport.Dialer, error) {
	var kind string
	switch {
	case transport.TokenFromURL(shareURL, direct.TokenKey) != "":
		kind = config.BackendDirect
	case transport.TokenFromURL(shareURL, brokered.TokenKey) != "":
		kind = config.BackendBrokered
	default:
		return nil, ErrNoInvitationFound
	}

	factory, err := webrtc.NewApiFactory(conf.Webrtc, log, nil)
	if err != nil {
		return nil, err
	}

	if kind == config.BackendDirect {
		b := bus.New(conf.Bus, log)
		return &directDialer{Dialer: direct.NewDialer(factory, b, conf.Player.GatherTimeout, log), bus: b}, nil
	}

	addr := conf.Player.RelayAddress
	if conf.Player.Discover {
		dctx, cancel := context.WithTimeout(ctx, discoverWait)
		found, err := relay.Browse(dctx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msgf("relay discovery, falling back to %v", addr)
		} else {
			addr = found
			log.Info().Msgf("Found a relay at %v", addr)
		}
	}
	return brokered.NewDialer(factory, addr, brokered.Options{
		IdentityTimeout: conf.Player.IdentityTimeout,
		GatherTimeout:   conf.Player.GatherTimeout,
	}, log), nil
}

type directDialer struct {
	*direct.Dialer
	bus bus.Bus
}

func (d *directDialer) Close() error { return errors.Join(d.Dialer.Close(), bus.Release(d.bus)) }
