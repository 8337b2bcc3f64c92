package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"orgsync/internal/config"
	"orgsync/internal/devutil"
	"orgsync/internal/logging"
	"orgsync/internal/providers"
	"orgsync/internal/providers/msgraph"
	"orgsync/internal/providers/slackscim"
	"orgsync/internal/secrets"
)

func main() {
	source := flag.String("source", "slack", "directory to dump: slack or msgraph")
	flag.Parse()

	log := logging.New()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var provider providers.DirectoryProvider
	switch *source {
	case "slack":
		if cfg.SecretsKey == "" {
			log.Fatal("missing env var: SECRETS_KEY")
		}
		store, err := secrets.Open(cfg.SecretsPath, cfg.SecretsKey)
		if err != nil {
			log.Fatalf("opening secret store: %v", err)
		}
		provider = slackscim.New(cfg.SlackBaseURL, cfg.SlackAuthURL, store)
	case "msgraph":
		provider = msgraph.New(cfg.GraphBaseURL, cfg.GraphBearerToken)
	default:
		log.Fatalf("unknown source %q", *source)
	}

	raws, err := provider.ListUsers(ctx)
	if err != nil {
		log.Fatalf("fetching users: %v", err)
	}

	fmt.Printf("OK: fetched %d users from %s\n", len(raws), provider.Name())
	for i, raw := range raws {
		fmt.Printf("%d) %v\n", i+1, devutil.Pick(raw, "ID", "Email", "Title", "ManagerID", "Active"))
	}
}
