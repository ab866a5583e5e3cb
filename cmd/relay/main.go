package main

import (
	"context"
	goflag "flag"
	"time"

	"github.com/giongto35/touchcoop/pkg/config"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/monitoring"
	"github.com/giongto35/touchcoop/pkg/os"
	"github.com/giongto35/touchcoop/pkg/relay"
	"github.com/giongto35/touchcoop/pkg/service"
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
	conf.Relay.AddFlags(flag.CommandLine)
	flag.Parse()

	log := logger.NewConsole(conf.Debug, "r", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf.Relay)
	}

	var services service.Group
	rs, err := relay.NewService(conf.Relay, log)
	if err != nil {
		log.Fatal().Err(err).Msg("relay init")
	}
	services.Add(rs)
	if conf.Monitoring.IsEnabled() {
		mon, err := monitoring.New(conf.Monitoring, log)
		if err != nil {
			log.Error().Err(err).Msg("monitoring init")
		} else {
			services.Add(mon)
		}
	}
	services.Start()

	<-os.ExpectTermination()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := services.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("service shutdown errors")
	}
}
