package main

import (
	"context"
	"net/http"
	"time"

	"orgsync/internal/config"
	"orgsync/internal/logging"
	"orgsync/internal/providers/msgraph"
	"orgsync/internal/providers/slackscim"
	"orgsync/internal/secrets"
	"orgsync/internal/server"
	"orgsync/internal/sftpclient"
)

func main() {
	log := logging.New()
	cfg := config.Load()

	if cfg.SecretsKey == "" {
		log.Fatal("missing env var: SECRETS_KEY")
	}
	store, err := secrets.Open(cfg.SecretsPath, cfg.SecretsKey)
	if err != nil {
		log.Fatalf("opening secret store: %v", err)
	}

	graph := msgraph.New(cfg.GraphBaseURL, cfg.GraphBearerToken)
	slack := slackscim.New(cfg.SlackBaseURL, cfg.SlackAuthURL, store)

	opts := server.Options{
		Log:         log,
		Source:      graph,
		Target:      slack,
		Writer:      slack,
		JWTSecret:   cfg.JWTSecret,
		JWTIssuer:   cfg.JWTIssuer,
		JWTAudience: cfg.JWTAudience,
	}
	if cfg.SFTPHost != "" {
		sftpCfg := sftpclient.Config{
			Host:                  cfg.SFTPHost,
			Port:                  cfg.SFTPPort,
			User:                  cfg.SFTPUser,
			Pass:                  cfg.SFTPPass,
			RemoteDir:             cfg.SFTPRemoteDir,
			InsecureIgnoreHostKey: cfg.SFTPInsecure,
		}
		opts.CSVLoader = func(ctx context.Context) (string, []byte, error) {
			return sftpclient.FetchLatestCSV(ctx, sftpCfg)
		}
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(opts).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.WithField("addr", cfg.ListenAddr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
