package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	conf, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if conf.Host.Backend != BackendBrokered {
		t.Errorf("backend = %v", conf.Host.Backend)
	}
	if conf.Host.IdentityTimeout != 10*time.Second {
		t.Errorf("identity timeout = %v", conf.Host.IdentityTimeout)
	}
	if conf.Player.ConnectTimeout != 15*time.Second {
		t.Errorf("connect timeout = %v", conf.Player.ConnectTimeout)
	}
	if conf.Host.Qr.Level != "M" {
		t.Errorf("qr level = %v", conf.Host.Qr.Level)
	}
	if err := conf.Validate(); err != nil {
		t.Errorf("defaults are invalid: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "host:\n  shareUrl: https://example.com/pad\n  backend: direct\nbus:\n  kind: redis\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvPrefix+"_PLAYER_CONNECTTIMEOUT", "3s")

	conf, err := NewConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Host.ShareURL != "https://example.com/pad" {
		t.Errorf("share url = %v", conf.Host.ShareURL)
	}
	if conf.Host.Backend != BackendDirect {
		t.Errorf("backend = %v", conf.Host.Backend)
	}
	if !conf.Bus.IsRedis() {
		t.Errorf("bus = %v", conf.Bus.Kind)
	}
	if conf.Player.ConnectTimeout != 3*time.Second {
		t.Errorf("connect timeout = %v", conf.Player.ConnectTimeout)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mod     func(c *Config)
		wantErr bool
	}{
		{name: "ok", mod: func(c *Config) {}},
		{name: "bad backend", mod: func(c *Config) { c.Host.Backend = "p2p" }, wantErr: true},
		{name: "bad bus", mod: func(c *Config) { c.Bus.Kind = "kafka" }, wantErr: true},
		{name: "bad qr", mod: func(c *Config) { c.Host.Qr.Level = "X" }, wantErr: true},
		{name: "lowercase qr", mod: func(c *Config) { c.Host.Qr.Level = "h" }},
		{name: "turn without creds", mod: func(c *Config) {
			c.Webrtc.IceServers = []IceServer{{Urls: "turn:example.com:3478"}}
		}, wantErr: true},
		{name: "reversed ports", mod: func(c *Config) {
			c.Webrtc.IcePorts.Min, c.Webrtc.IcePorts.Max = 9000, 8000
		}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{Host: Host{Backend: BackendBrokered, Qr: Qr{Level: "M"}}, Bus: Bus{Kind: BusLocal}}
			tt.mod(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServersFallback(t *testing.T) {
	var w Webrtc
	if got := w.Servers(); len(got) != 1 || got[0] != DefaultIceServers[0] {
		t.Errorf("Servers() = %v", got)
	}
}
