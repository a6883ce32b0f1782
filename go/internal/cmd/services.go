package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/huanshanxiaoyao/governor-game/go/clients/game_client"
	"github.com/huanshanxiaoyao/governor-game/go/internal/appstate"
	"github.com/huanshanxiaoyao/governor-game/go/internal/events"
	"github.com/huanshanxiaoyao/governor-game/go/internal/gamesync"
	"github.com/huanshanxiaoyao/governor-game/go/internal/negotiation"
	"github.com/huanshanxiaoyao/governor-game/go/internal/notify"
	"github.com/huanshanxiaoyao/governor-game/go/internal/precompute"
	"github.com/huanshanxiaoyao/governor-game/go/internal/turn"
	"github.com/huanshanxiaoyao/governor-game/go/internal/view"
)

type Services struct {
	State        *appstate.State
	Games        *game_client.GameClient
	Views        *view.ConnectionManager
	NATS         *notify.JetStreamPublisher
	Syncer       *gamesync.Syncer
	Negotiations *negotiation.Client
	Precompute   *precompute.Scheduler
	Advancer     *turn.Advancer
}

// setupServices wires the components and starts their background loops on ctx.
// Game engine client → sync → negotiation/precompute → turn advance
func setupServices(ctx context.Context, config *Config) (*Services, error) {
	state := appstate.New()

	games := game_client.NewGameClient(config.GameAPIBaseURL, config.CSRFToken, config.SessionCookie)
	games.SetTimeout(config.HTTPTimeout)

	views := view.NewConnectionManager(view.DefaultConnectionConfig(), state)
	go views.Start(ctx)

	publisher := events.Fanout{views}

	var nats *notify.JetStreamPublisher
	if config.NATS.URL != "" {
		natsConfig := notify.DefaultJetStreamConfig()
		natsConfig.URL = config.NATS.URL
		natsConfig.SubjectPrefix = config.NATS.SubjectPrefix

		var err error
		nats, err = notify.NewJetStreamPublisher(natsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to set up NATS publisher: %w", err)
		}
		go nats.Start(ctx)
		publisher = append(publisher, nats)
		log.Info().Str("url", natsConfig.URL).Str("subject_prefix", natsConfig.SubjectPrefix).Msg("mirroring view events to NATS")
	}

	syncer := gamesync.NewSyncer(games, state, views)
	negotiations := negotiation.NewClient(games, syncer, state, publisher)
	scheduler := precompute.NewScheduler(games, precompute.EventNotifier{Publisher: publisher}, config.PrecomputePollInterval)
	advancer := turn.NewAdvancer(games, syncer, scheduler, negotiations, publisher)

	return &Services{
		State:        state,
		Games:        games,
		Views:        views,
		NATS:         nats,
		Syncer:       syncer,
		Negotiations: negotiations,
		Precompute:   scheduler,
		Advancer:     advancer,
	}, nil
}

func (s *Services) Close() {
	if s.NATS != nil {
		if err := s.NATS.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close NATS connection")
		}
	}
}
