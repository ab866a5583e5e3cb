package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	MdnsService = "_touchcoop._tcp"
	mdnsDomain  = "local."
	pathTxt     = "path="
)

var ErrNotFound = errors.New("no relay found")

// Announce registers the relay on the local network.
func Announce(name string, port int, path string) (*zeroconf.Server, error) {
	return zeroconf.Register(name, MdnsService, mdnsDomain, port, []string{pathTxt + path}, nil)
}

// Browse finds the first relay announced on the local network and
// returns its websocket address.
func Browse(ctx context.Context) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", err
	}
	entries := make(chan *zeroconf.ServiceEntry)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := resolver.Browse(ctx, MdnsService, mdnsDomain, entries); err != nil {
		return "", err
	}
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return "", ErrNotFound
			}
			if addr := entryAddress(e); addr != "" {
				return addr, nil
			}
		case <-ctx.Done():
			return "", ErrNotFound
		}
	}
}

func entryAddress(e *zeroconf.ServiceEntry) string {
	if e == nil || len(e.AddrIPv4) == 0 {
		return ""
	}
	path := "/"
	for _, txt := range e.Text {
		if strings.HasPrefix(txt, pathTxt) {
			path = strings.TrimPrefix(txt, pathTxt)
		}
	}
	return fmt.Sprintf("ws://%v:%d%v", e.AddrIPv4[0], e.Port, path)
}
