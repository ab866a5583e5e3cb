// Gamepad joins a host from a share link and turns key presses into moves.
//
//	gamepad [flags] <share url>
package main

import (
	"context"
	goflag "flag"
	"fmt"
	stdos "os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/giongto35/touchcoop/pkg/config"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/player"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf, err := config.NewConfig("")
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config")
	}
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.AddFlags(flag.CommandLine)
	conf.Player.AddFlags(flag.CommandLine)
	logFile := flag.String("log", "", "Write logs to the file")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(stdos.Stderr, "usage: gamepad [flags] <share url>")
		stdos.Exit(2)
	}
	shareURL := flag.Arg(0)

	// the terminal belongs to the ui
	log := logger.Nop()
	if *logFile != "" {
		f, err := stdos.OpenFile(*logFile, stdos.O_CREATE|stdos.O_WRONLY|stdos.O_APPEND, 0o644)
		if err != nil {
			logger.Default().Fatal().Err(err).Msg("log file")
		}
		defer func() { _ = f.Close() }()
		log = logger.NewWriter(f)
	}
	log.Info().Msgf("version %s", Version)

	dialer, err := player.NewDialer(context.Background(), conf, shareURL, log)
	if err != nil {
		fmt.Fprintln(stdos.Stderr, err)
		stdos.Exit(1)
	}

	var prog *tea.Program
	p := player.New(dialer, log,
		player.WithConnectTimeout(conf.Player.ConnectTimeout),
		player.WithIdentityTimeout(conf.Player.IdentityTimeout),
		player.WithHostMessages(func(data []byte) {
			if prog != nil {
				prog.Send(hostMsg(data))
			}
		}),
	)
	defer p.Destroy()

	prog = tea.NewProgram(newModel(p, shareURL, conf.Player.Name), tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		fmt.Fprintln(stdos.Stderr, err)
	}
}
