package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"orgsync/internal/concurrency"
	"orgsync/internal/config"
	"orgsync/internal/domain"
	"orgsync/internal/hierarchy"
	"orgsync/internal/logging"
	"orgsync/internal/providers/msgraph"
	"orgsync/internal/providers/slackscim"
	"orgsync/internal/secrets"
	"orgsync/internal/sftpclient"
	syncengine "orgsync/internal/sync"
)

func main() {
	target := flag.String("target", "slack", "target snapshot: slack, or a .csv path")
	source := flag.String("source", "msgraph", "source of record: msgraph, sftp, or a .csv path")
	apply := flag.Bool("apply", false, "apply every fixable record after printing")
	workers := flag.Int("workers", 4, "parallel fixes when applying")
	flag.Parse()

	log := logging.New()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var store secrets.Store
	if cfg.SecretsKey != "" {
		fs, err := secrets.Open(cfg.SecretsPath, cfg.SecretsKey)
		if err != nil {
			log.Fatalf("opening secret store: %v", err)
		}
		store = fs
	}
	slack := slackscim.New(cfg.SlackBaseURL, cfg.SlackAuthURL, store)

	load := func(name string) domain.Snapshot {
		switch {
		case name == "slack":
			raws, err := slack.ListUsers(ctx)
			if err != nil {
				log.Fatalf("fetching slack users: %v", err)
			}
			return hierarchy.Build(raws, log)
		case name == "msgraph":
			graph := msgraph.New(cfg.GraphBaseURL, cfg.GraphBearerToken)
			raws, err := graph.ListUsers(ctx)
			if err != nil {
				log.Fatalf("fetching graph users: %v", err)
			}
			return hierarchy.Build(raws, log)
		case name == "sftp":
			file, contents, err := sftpclient.FetchLatestCSV(ctx, sftpclient.Config{
				Host:                  cfg.SFTPHost,
				Port:                  cfg.SFTPPort,
				User:                  cfg.SFTPUser,
				Pass:                  cfg.SFTPPass,
				RemoteDir:             cfg.SFTPRemoteDir,
				InsecureIgnoreHostKey: cfg.SFTPInsecure,
			})
			if err != nil {
				log.Fatalf("fetching csv drop: %v", err)
			}
			log.WithField("file", file).Info("loaded csv drop")
			return hierarchy.BuildFromCSV(string(contents), log)
		case strings.HasSuffix(name, ".csv"):
			contents, err := os.ReadFile(name)
			if err != nil {
				log.Fatalf("reading %s: %v", name, err)
			}
			return hierarchy.BuildFromCSV(string(contents), log)
		default:
			log.Fatalf("unknown snapshot source %q", name)
			return nil
		}
	}

	targetSnap := load(*target)
	sourceSnap := load(*source)
	fmt.Printf("target %s: %d users, source %s: %d users\n", *target, len(targetSnap), *source, len(sourceSnap))

	diffs := syncengine.Compare(targetSnap, sourceSnap)
	if len(diffs) == 0 {
		fmt.Println("no differences")
		return
	}

	emails := make([]string, 0, len(diffs))
	for email := range diffs {
		emails = append(emails, email)
	}
	sort.Strings(emails)

	var records []*domain.ReconciliationRecord
	for _, email := range emails {
		records = append(records, syncengine.Classify(diffs[email], targetSnap, sourceSnap)...)
	}

	for i, rec := range records {
		fmt.Printf("%3d  %-35s %-15s %s\n", i, rec.Diff.Email(), rec.Action, rec.Note)
	}

	if !*apply {
		return
	}

	reconciler := syncengine.NewReconciler(slack, targetSnap, sourceSnap, log)
	_, errs := concurrency.ProcessParallel(ctx, records, concurrency.ParallelOptions{MaxWorkers: *workers},
		func(ctx context.Context, _ int, rec *domain.ReconciliationRecord) (domain.FixState, error) {
			if rec.Action == domain.ActionCannotFix {
				return rec.State, nil
			}
			return reconciler.ApplyFix(ctx, rec)
		})
	for _, err := range errs {
		log.WithError(err).Warn("fix not started")
	}

	fixed, cannot := 0, 0
	for _, rec := range records {
		switch rec.State {
		case domain.StateFixed:
			fixed++
		case domain.StateCannotFix:
			cannot++
		}
	}
	fmt.Printf("applied: %d fixed, %d cannot fix, %d untouched\n", fixed, cannot, len(records)-fixed-cannot)
}
