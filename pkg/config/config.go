package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

type Config struct {
	Host       Host
	Player     Player
	Relay      Relay
	Webrtc     Webrtc
	Bus        Bus
	Monitoring Monitoring
	Debug      bool
}

const (
	BackendBrokered = "brokered"
	BackendDirect   = "direct"
)

// Host is the game side that invites players.
type Host struct {
	// ShareURL is the gamepad page the invitation links point to.
	ShareURL        string        `default:"http://localhost:8000/gamepad"`
	Backend         string        `default:"brokered"`
	RelayAddress    string        `default:"ws://localhost:9000/peer"`
	IdentityTimeout time.Duration `default:"10s"`
	GatherTimeout   time.Duration `default:"10s"`
	Qr              Qr
}

type Qr struct {
	Size int `default:"256"`
	// Level is the error correction level: L, M, Q or H.
	Level string `default:"M"`
}

type Player struct {
	Name            string
	RelayAddress    string        `default:"ws://localhost:9000/peer"`
	IdentityTimeout time.Duration `default:"10s"`
	ConnectTimeout  time.Duration `default:"15s"`
	GatherTimeout   time.Duration `default:"10s"`
	// Discover looks up the relay with mDNS when set.
	Discover bool
}

type Relay struct {
	Address string `default:":9000"`
	Path    string `default:"/peer"`
	Mdns    Mdns
}

type Mdns struct {
	Enabled bool
	Name    string `default:"touchcoop"`
}

const (
	BusLocal = "local"
	BusRedis = "redis"
)

// Bus is the broadcast topic the direct backend answers travel on.
type Bus struct {
	Kind  string `default:"local"`
	Redis struct {
		Address  string `default:"localhost:6379"`
		Password string
		DB       int
		Topic    string `default:"touchcoop:answers"`
	}
}

func (b *Bus) IsRedis() bool { return b.Kind == BusRedis }

func NewConfig(path string) (conf Config, err error) {
	err = LoadConfig(&conf, path)
	return
}

func (c *Config) Validate() error {
	switch c.Host.Backend {
	case BackendBrokered, BackendDirect:
	default:
		return fmt.Errorf("unknown backend %q, want %s or %s", c.Host.Backend, BackendBrokered, BackendDirect)
	}
	switch c.Bus.Kind {
	case BusLocal, BusRedis:
	default:
		return fmt.Errorf("unknown bus %q", c.Bus.Kind)
	}
	switch strings.ToUpper(c.Host.Qr.Level) {
	case "L", "M", "Q", "H":
	default:
		return fmt.Errorf("bad qr level %q", c.Host.Qr.Level)
	}
	return c.Webrtc.Validate()
}

func (c *Config) AddFlags(fs *pflag.FlagSet) *Config {
	fs.BoolVarP(&c.Debug, "debug", "d", c.Debug, "Verbose logs")
	fs.IntVar(&c.Monitoring.Port, "monitoring.port", c.Monitoring.Port, "Monitoring server port")
	fs.BoolVar(&c.Monitoring.MetricEnabled, "monitoring.metrics", c.Monitoring.MetricEnabled, "Enable prometheus metrics")
	fs.StringVar(&c.Bus.Kind, "bus", c.Bus.Kind, "Broadcast topic for direct answers: [local, redis]")
	fs.StringVar(&c.Bus.Redis.Address, "bus.redis", c.Bus.Redis.Address, "Redis address (host:port)")
	return c
}

func (h *Host) AddFlags(fs *pflag.FlagSet) *Host {
	fs.StringVarP(&h.ShareURL, "url", "u", h.ShareURL, "Gamepad page the invitations point to")
	fs.StringVarP(&h.Backend, "backend", "b", h.Backend, "Connection backend: [brokered, direct]")
	fs.StringVarP(&h.RelayAddress, "relay", "r", h.RelayAddress, "Relay websocket address")
	fs.IntVar(&h.Qr.Size, "qr.size", h.Qr.Size, "Invitation image size in px")
	return h
}

func (p *Player) AddFlags(fs *pflag.FlagSet) *Player {
	fs.StringVarP(&p.Name, "name", "n", p.Name, "Display name")
	fs.StringVarP(&p.RelayAddress, "relay", "r", p.RelayAddress, "Relay websocket address")
	fs.BoolVar(&p.Discover, "discover", p.Discover, "Find the relay on the local network")
	fs.DurationVar(&p.ConnectTimeout, "timeout", p.ConnectTimeout, "Connection timeout")
	return p
}

func (r *Relay) AddFlags(fs *pflag.FlagSet) *Relay {
	fs.StringVarP(&r.Address, "address", "a", r.Address, "Relay server address (host:port)")
	fs.BoolVar(&r.Mdns.Enabled, "mdns", r.Mdns.Enabled, "Announce the relay on the local network")
	return r
}
