package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"spinnergy/cmd"
	"spinnergy/config"
	"spinnergy/database"

	log "github.com/sirupsen/logrus"
)

func main() {
	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	var err error
	switch command {
	case "run":
		err = runServer()
	case "migrate":
		err = handleMigrationCommand()
	case "seed", "audit", "leaderboard":
		err = handleTaskCommand(command)
	default:
		err = fmt.Errorf("usage: spinnergy [run|migrate|seed|audit|leaderboard rebuild]")
	}

	if err != nil {
		log.WithError(err).Fatalf("%s failed", command)
	}
}

func runServer() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	return cmd.Run(ctx)
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: spinnergy migrate [up|down|status] [args...]")
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

func handleTaskCommand(command string) error {
	ctx := context.Background()
	cfg := config.Get()
	cmd.ConfigureLogging(cfg)

	app, err := cmd.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	switch command {
	case "seed":
		_, err = cmd.Seed(ctx, app)
		return err
	case "audit":
		mismatches, err := cmd.Audit(ctx, app)
		if err != nil {
			return err
		}
		if len(mismatches) > 0 {
			return fmt.Errorf("%d accounts disagree with their event trail", len(mismatches))
		}
		return nil
	default:
		if len(os.Args) < 3 || os.Args[2] != "rebuild" {
			return fmt.Errorf("usage: spinnergy leaderboard rebuild")
		}
		changed, err := cmd.RebuildLeaderboard(ctx, app)
		if err != nil {
			return err
		}
		log.WithField("entries", changed).Info("Leaderboard rebuilt")
		return nil
	}
}
