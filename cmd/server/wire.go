package main

import (
	"context"

	"github.com/dkeye/voxbridge/internal/adapters/translate"
	"github.com/dkeye/voxbridge/internal/app"
	"github.com/dkeye/voxbridge/internal/app/orch"
	"github.com/dkeye/voxbridge/internal/config"
	"github.com/rs/zerolog/log"
)

func registryOptions(cfg *config.Config) app.RegistryOptions {
	return app.RegistryOptions{
		CodeLength:     cfg.Rooms.CodeLength,
		CodeAttempts:   cfg.Rooms.CodeAttempts,
		MaxRooms:       cfg.Rooms.MaxRooms,
		MaxNameLength:  cfg.Room.MaxNameLength,
		IdleTimeout:    cfg.Rooms.IdleTimeout,
		EndedRetention: cfg.Rooms.EndedRetention,
		SweepInterval:  cfg.Rooms.SweepInterval,
		Room: app.RoomOptions{
			MaxHistory:         cfg.Room.MaxHistory,
			MaxMessageLength:   cfg.Room.MaxMessageLength,
			GracePeriod:        cfg.Rejoin.GracePeriod,
			RequireClientToken: cfg.Rejoin.RequireClientToken,
			HostFailover:       app.HostFailover(cfg.Room.HostFailover),
			SystemMessages:     cfg.Room.SystemMessages,
		},
	}
}

// buildOrchestrator wires rooms, sessions, policy and the translator. The returned func releases the translator.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*orch.Orchestrator, func(), error) {
	rooms, err := app.NewRoomRegistry(registryOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	tr, err := translate.New(ctx, cfg.Translator)
	if err != nil {
		return nil, nil, err
	}
	audio := app.NewAudioRelay(tr, app.AudioOptions{
		SameLanguage: app.SameLanguage(cfg.Audio.SameLanguage),
		MaxInflight:  cfg.Audio.MaxInflight,
		NotifySender: cfg.Audio.NotifySender,
		Timeout:      cfg.Translator.Timeout,
	})
	o := orch.New(app.NewSessions(), rooms, app.SimplePolicy{}, audio)

	closeFn := func() {
		audio.Close()
		if err := tr.Close(); err != nil {
			log.Error().Err(err).Str("module", "main").Msg("translator close")
		}
	}
	return o, closeFn, nil
}
