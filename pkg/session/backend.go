package session

import (
	"context"
	"errors"

	"github.com/giongto35/touchcoop/pkg/bus"
	"github.com/giongto35/touchcoop/pkg/config"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/network/webrtc"
	"github.com/giongto35/touchcoop/pkg/transport"
	"github.com/giongto35/touchcoop/pkg/transport/brokered"
	"github.com/giongto35/touchcoop/pkg/transport/direct"
)

// NewBackend picks the backend named in the host config.
func NewBackend(conf config.Config, log *logger.Logger) Backend {
	return func(baseURL string) (transport.Host, error) {
		factory, err := webrtc.NewApiFactory(conf.Webrtc, log, nil)
		if err != nil {
			return nil, err
		}
		switch conf.Host.Backend {
		case config.BackendDirect:
			b := bus.New(conf.Bus, log)
			h, err := direct.NewHost(context.Background(), factory, b, baseURL, log,
				direct.WithGatherTimeout(conf.Host.GatherTimeout))
			if err != nil {
				_ = bus.Release(b)
				return nil, err
			}
			return &directHost{Host: h, bus: b}, nil
		case config.BackendBrokered, "":
			return brokered.NewHost(factory, conf.Host.RelayAddress, baseURL, brokered.Options{
				IdentityTimeout: conf.Host.IdentityTimeout,
				GatherTimeout:   conf.Host.GatherTimeout,
			}, log), nil
		default:
			return nil, errors.New("unknown backend " + conf.Host.Backend)
		}
	}
}

// directHost also closes the broadcast topic it owns.
type directHost struct {
	*direct.Host
	bus bus.Bus
}

func (h *directHost) Close() error { return errors.Join(h.Host.Close(), bus.Release(h.bus)) }
