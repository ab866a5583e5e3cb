// Host shows invitation QR codes in the terminal and prints what players press.
package main

import (
	"bufio"
	"context"
	goflag "flag"
	"fmt"
	stdos "os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/giongto35/touchcoop/pkg/api"
	"github.com/giongto35/touchcoop/pkg/config"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/monitoring"
	"github.com/giongto35/touchcoop/pkg/os"
	"github.com/giongto35/touchcoop/pkg/service"
	"github.com/giongto35/touchcoop/pkg/session"
	"github.com/skip2/go-qrcode"
	flag "github.com/spf13/pflag"
)

var Version = "?"

var (
	urlStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	joinStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	leaveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	moveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func main() {
	conf, err := config.NewConfig("")
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config")
	}
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.AddFlags(flag.CommandLine)
	conf.Host.AddFlags(flag.CommandLine)
	flag.Parse()

	log := logger.NewConsole(conf.Debug, "h", false)
	log.Info().Msgf("version %s", Version)
	if err := conf.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	s, err := session.Acquire(conf.Host.ShareURL, printEvent, session.NewBackend(conf, log), log,
		session.WithRenderer(session.NewQrRenderer(conf.Host.Qr)))
	if err != nil {
		log.Fatal().Err(err).Msg("session")
	}
	defer s.Destroy()

	var services service.Group
	if conf.Monitoring.IsEnabled() {
		mon, err := monitoring.New(conf.Monitoring, log)
		if err != nil {
			log.Error().Err(err).Msg("monitoring init")
		} else {
			services.Add(mon)
		}
	}
	services.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := services.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()

	ctx, cancel := os.TerminationContext(context.Background())
	defer cancel()

	invite := func() {
		ictx, icancel := context.WithTimeout(ctx, conf.Host.IdentityTimeout+conf.Host.GatherTimeout)
		defer icancel()
		inv, err := s.IssueInvitation(ictx)
		if err != nil {
			log.Error().Err(err).Msg("invitation")
			return
		}
		printInvitation(inv, conf.Host.Qr.Level)
	}
	invite()

	// one link serves every player of a brokered session, direct ones need a link each
	if conf.Host.Backend == config.BackendDirect {
		fmt.Println(dimStyle.Render("press Enter for another invitation"))
		go func() {
			in := bufio.NewScanner(stdos.Stdin)
			for in.Scan() {
				invite()
			}
		}()
	}
	<-ctx.Done()
}

func printInvitation(inv session.ShareableInvitation, level string) {
	if qr, err := qrcode.New(inv.ShareURL, session.RecoveryLevel(level)); err == nil {
		fmt.Println(qr.ToSmallString(false))
	}
	fmt.Println(urlStyle.Render(inv.ShareURL))
	if inv.PlayerId != "" {
		fmt.Println(dimStyle.Render("player " + inv.PlayerId))
	}
}

func printEvent(e api.PlayerEvent) {
	at := time.UnixMilli(e.Timestamp).Format("15:04:05.000")
	who := e.PlayerId
	if e.PlayerName != "" {
		who = e.PlayerName + " (" + e.PlayerId + ")"
	}
	var line string
	switch e.Action {
	case api.Join:
		line = joinStyle.Render("+ " + who + " joined")
	case api.Leave:
		line = leaveStyle.Render("- " + who + " left")
	case api.Move:
		line = moveStyle.Render("> "+who) + " " + e.Button
	}
	fmt.Println(dimStyle.Render(at), line)
}
