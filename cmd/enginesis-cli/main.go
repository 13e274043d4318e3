// enginesis-cli runs a short session against an Enginesis service (the
// local stub by default): begin a game session, fetch game metadata, log
// in a co-registration user, and submit a score. It is a demonstration
// harness, not an end-user tool.
package main

import (
	"context"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"enginesis-client/internal/client"
	"enginesis-client/internal/config"
	"enginesis-client/internal/identity"
	"enginesis-client/internal/logging"
	"enginesis-client/internal/wire"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	gameID := cfg.Client.GameID
	if gameID == 0 {
		gameID = 99
	}

	c, err := client.New(client.Config{
		SiteID:       cfg.Client.SiteID,
		DeveloperKey: cfg.Client.DeveloperKey,
		GameID:       gameID,
		GameGroupID:  cfg.Client.GameGroupID,
		LanguageCode: cfg.Client.LanguageCode,
		ServerStage:  cfg.Client.ServerStage,
		CurrentHost:  cfg.Client.ServiceHost,
		ServiceURL:   cfg.Client.ServiceURL,
		AuthToken:    cfg.Client.AuthToken,
		SiteKey:      cfg.Client.SiteKey,
		StoragePath:  cfg.Client.StoragePath,
		OnResponse: func(resp wire.Response) {
			log.Debug().Str("fn", resp.Fn).
				Str("success", resp.Results.Status.Success).
				Str("message", resp.Results.Status.Message).
				Msg("response delivered")
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("client init failed")
	}
	defer c.Close()
	log.Info().Str("service", c.ServiceURL()).Bool("logged_in", c.IsUserLoggedIn()).Msg("client ready")

	resp := <-c.SessionBegin(os.Getenv("ENGINESIS_GAME_KEY"), gameID)
	if !mustSucceed("SessionBegin", resp) {
		return
	}
	log.Info().Str("session_id", c.Session().SessionID()).Msg("session established")

	if data := <-c.GameDataGet(gameID); data.Succeeded() {
		log.Info().RawJSON("game", data.Results.Result).Msg("game data")
	}

	if !c.IsUserLoggedIn() {
		login := <-c.LoginCoreg(client.RegistrationParams{
			SiteUserID: "cli-" + strconv.Itoa(os.Getpid()),
			UserName:   "CLI Player",
		}, identity.NetworkEnginesis)
		if !mustSucceed("UserLoginCoreg", login) {
			return
		}
		log.Info().Int("user_id", c.Session().LoggedInUserID()).Msg("logged in")
	}

	score := <-c.ScoreSubmit(gameID, 4200, "demo", 30)
	mustSucceed("ScoreSubmit", score)

	if err := c.Logout(context.Background()); err != nil {
		log.Warn().Err(err).Msg("logout failed")
	}
	log.Info().Int("queued", c.QueueLen()).Msg("done")
}

func mustSucceed(fn string, resp wire.Response) bool {
	if resp.Succeeded() {
		return true
	}
	log.Error().Str("fn", fn).
		Str("message", resp.Results.Status.Message).
		Str("info", resp.Results.Status.ExtendedInfo).
		Msg("call failed")
	return false
}
