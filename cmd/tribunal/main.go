package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/types/enum"
	"github.com/tribunal-mc/tribunal/internal/moderation"
	"github.com/tribunal-mc/tribunal/internal/redis"
	"github.com/tribunal-mc/tribunal/internal/setup"
	"github.com/tribunal-mc/tribunal/internal/worker/sweeper"
	"github.com/urfave/cli/v3"
)

// LogDir specifies where service log files are stored.
const LogDir = "logs"

var ErrPlayerIDRequired = errors.New("PLAYER_UUID argument required")

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cmd := &cli.Command{
		Name:  "tribunal",
		Usage: "Punishment lifecycle service",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the expiry sweeper until interrupted",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return serve(ctx)
				},
			},
			{
				Name:  "sweep",
				Usage: "Run a single sweep pass and exit",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, env *environment) error {
						env.sweeper.Sweep(ctx)
						return nil
					})
				},
			},
			{
				Name:  "punish",
				Usage: "Issue a punishment from the console",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "target", Usage: "Target player UUID", Required: true},
					&cli.StringFlag{Name: "target-name", Usage: "Target display name", Required: true},
					&cli.StringFlag{Name: "type", Usage: "warn | mute | kick | ban", Required: true},
					&cli.StringFlag{Name: "reason", Usage: "Punishment reason", Required: true},
					&cli.StringFlag{Name: "proof", Usage: "Evidence link"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, env *environment) error {
						return punishAction(ctx, c, env)
					})
				},
			},
			{
				Name:      "revoke",
				Usage:     "Revoke a punishment by id",
				ArgsUsage: "ID",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, env *environment) error {
						return revokeAction(ctx, c, env)
					})
				},
			},
			{
				Name:  "reports",
				Usage: "List unprocessed reports",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, env *environment) error {
						return listReportsAction(ctx, env)
					})
				},
			},
			{
				Name:  "appeal",
				Usage: "Review appeals from the console",
				Commands: []*cli.Command{
					{
						Name:      "approve",
						Usage:     "Approve a pending appeal and revoke its punishment",
						ArgsUsage: "ID",
						Action: func(ctx context.Context, c *cli.Command) error {
							return withApp(ctx, func(ctx context.Context, env *environment) error {
								return approveAppealAction(ctx, c, env)
							})
						},
					},
					{
						Name:      "deny",
						Usage:     "Deny a pending appeal",
						ArgsUsage: "ID",
						Action: func(ctx context.Context, c *cli.Command) error {
							return withApp(ctx, func(ctx context.Context, env *environment) error {
								return denyAppealAction(ctx, c, env)
							})
						},
					},
				},
			},
			{
				Name:      "check",
				Usage:     "Show a player's active punishments",
				ArgsUsage: "PLAYER_UUID",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withApp(ctx, func(ctx context.Context, env *environment) error {
						return checkAction(ctx, c, env)
					})
				},
			},
		},
	}

	return cmd.Run(context.Background(), os.Args)
}

// environment bundles the wired services for a single command run.
type environment struct {
	app     *setup.App
	engine  *moderation.Engine
	reports *moderation.ReportService
	appeals *moderation.AppealService
	sweeper *sweeper.Worker
}

func withApp(ctx context.Context, fn func(context.Context, *environment) error) error {
	env, err := buildEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.app.Cleanup(ctx)

	return fn(ctx, env)
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(ctx context.Context, env *environment) error {
		env.sweeper.Start(ctx)
		return nil
	})
}

func buildEnvironment(ctx context.Context) (*environment, error) {
	app, err := setup.InitializeApp(ctx, LogDir)
	if err != nil {
		return nil, err
	}

	notifier := moderation.NopNotifier{}
	messages := moderation.NewMessenger(&app.Config.Messages)
	resolver := moderation.NewDurationResolver(&app.Config.Punishments)
	levels := moderation.NewLevelTracker(app.Store, app.Config.Punishments.CountRevoked)

	engine := moderation.NewEngine(
		app.Store, app.ActiveCache, resolver, levels, notifier, messages, app.Logger,
	)

	var cooldown moderation.CooldownTracker = moderation.NewMemoryCooldown()

	if app.RedisManager != nil {
		client, err := app.RedisManager.GetClient(redis.CooldownDBIndex)
		if err != nil {
			app.Cleanup(ctx)
			return nil, err
		}

		cooldown = moderation.NewRedisCooldown(client)
	}

	reports := moderation.NewReportService(
		app.Store, cooldown, notifier, messages, &app.Config.Reports, app.Logger,
	)
	appeals := moderation.NewAppealService(
		app.Store, engine, notifier, messages, &app.Config.Appeals, app.Logger,
	)
	worker := sweeper.New(
		app.Store, app.ActiveCache, notifier, messages,
		&app.Config.Sweeper, &app.Config.Reports, app.Logger,
	)

	return &environment{
		app:     app,
		engine:  engine,
		reports: reports,
		appeals: appeals,
		sweeper: worker,
	}, nil
}

func punishAction(ctx context.Context, c *cli.Command, env *environment) error {
	targetID, err := uuid.Parse(c.String("target"))
	if err != nil {
		return fmt.Errorf("invalid target uuid: %w", err)
	}

	punishmentType, err := enum.ParsePunishmentType(c.String("type"))
	if err != nil {
		return err
	}

	id, err := env.engine.Punish(
		ctx, targetID, c.String("target-name"), uuid.Nil, "Console",
		punishmentType, c.String("reason"), c.String("proof"),
	)
	if err != nil {
		if errors.Is(err, moderation.ErrVetoed) {
			fmt.Println("Punishment blocked by policy")
			return nil
		}

		return err
	}

	fmt.Printf("Issued punishment #%d\n", id)

	return nil
}

func revokeAction(ctx context.Context, c *cli.Command, env *environment) error {
	var id int64
	if _, err := fmt.Sscanf(c.Args().First(), "%d", &id); err != nil {
		return fmt.Errorf("invalid punishment id: %w", err)
	}

	ok, err := env.engine.Revoke(ctx, id, uuid.Nil, "Console")
	if err != nil {
		return err
	}

	if !ok {
		fmt.Printf("Punishment #%d not found or already inactive\n", id)
		return nil
	}

	fmt.Printf("Revoked punishment #%d\n", id)

	return nil
}

func listReportsAction(ctx context.Context, env *environment) error {
	reports, err := env.reports.Unprocessed(ctx)
	if err != nil {
		return err
	}

	if len(reports) == 0 {
		fmt.Println("No unprocessed reports")
		return nil
	}

	for _, r := range reports {
		fmt.Printf("#%d %s reported %s for %q\n", r.ID, r.ReporterName, r.ReportedName, r.Reason)
	}

	return nil
}

func approveAppealAction(ctx context.Context, c *cli.Command, env *environment) error {
	var id int64
	if _, err := fmt.Sscanf(c.Args().First(), "%d", &id); err != nil {
		return fmt.Errorf("invalid appeal id: %w", err)
	}

	result, err := env.appeals.Approve(ctx, id, uuid.Nil, "Console", "approved from console")
	if err != nil {
		return err
	}

	switch {
	case !result.Approved:
		fmt.Printf("Appeal #%d not found or not pending\n", id)
	case !result.PunishmentRevoked:
		fmt.Printf("Approved appeal #%d, but its punishment was already inactive\n", id)
	default:
		fmt.Printf("Approved appeal #%d and revoked its punishment\n", id)
	}

	return nil
}

func denyAppealAction(ctx context.Context, c *cli.Command, env *environment) error {
	var id int64
	if _, err := fmt.Sscanf(c.Args().First(), "%d", &id); err != nil {
		return fmt.Errorf("invalid appeal id: %w", err)
	}

	ok, err := env.appeals.Deny(ctx, id, uuid.Nil, "Console", "denied from console")
	if err != nil {
		return err
	}

	if !ok {
		fmt.Printf("Appeal #%d not found or not pending\n", id)
		return nil
	}

	fmt.Printf("Denied appeal #%d\n", id)

	return nil
}

func checkAction(ctx context.Context, c *cli.Command, env *environment) error {
	if c.Args().Len() != 1 {
		return ErrPlayerIDRequired
	}

	playerID, err := uuid.Parse(c.Args().First())
	if err != nil {
		return fmt.Errorf("invalid player uuid: %w", err)
	}

	active, err := env.engine.ActivePunishments(ctx, playerID)
	if err != nil {
		return err
	}

	if len(active) == 0 {
		fmt.Println("No active punishments")
		return nil
	}

	for _, p := range active {
		fmt.Printf("#%d %s level %d for %q by %s\n",
			p.ID, p.Type.DisplayName(), p.Level, p.Reason, p.IssuerName)
	}

	return nil
}
