// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func idArg() cli.Argument {
	return &cli.StringArg{
		Name:      "id",
		UsageText: "Schedule ID",
	}
}

// authCommand handles Spotify account authentication
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Spotify account authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate with Spotify using OAuth2",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the stored account and credential state",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// scheduleCommand handles schedule CRUD and manual runs
func scheduleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "schedule",
		Aliases: []string{"sched"},
		Usage:   "Manage playlist automation schedules",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a schedule",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "job-type",
						Usage:    "raid, reorder, or raid_and_reorder",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "target",
						Usage:    "Target playlist ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "target-name",
						Usage: "Target playlist display name",
					},
					&cli.StringSliceFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Source playlist ID (repeatable, raid jobs)",
					},
					&cli.StringFlag{
						Name:    "algorithm",
						Aliases: []string{"a"},
						Usage:   "Reorder algorithm name",
					},
					&cli.StringSliceFlag{
						Name:  "param",
						Usage: "Algorithm parameter as key=value (repeatable)",
					},
					&cli.StringFlag{
						Name:  "trigger-type",
						Usage: "interval or cron",
						Value: "interval",
					},
					&cli.StringFlag{
						Name:  "trigger-value",
						Usage: "Interval token or five-field cron expression",
						Value: "daily",
					},
				},
				Action: r.ScheduleCreate,
			},
			{
				Name:  "list",
				Usage: "List schedules",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output"},
				},
				Action: r.ScheduleList,
			},
			{
				Name:      "show",
				Usage:     "Show one schedule",
				Arguments: []cli.Argument{idArg()},
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output"},
				},
				Action: r.ScheduleShow,
			},
			{
				Name:      "update",
				Usage:     "Update schedule fields",
				Arguments: []cli.Argument{idArg()},
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "job-type", Usage: "raid, reorder, or raid_and_reorder"},
					&cli.StringFlag{Name: "target", Usage: "Target playlist ID"},
					&cli.StringFlag{Name: "target-name", Usage: "Target playlist display name"},
					&cli.StringSliceFlag{Name: "source", Aliases: []string{"s"}, Usage: "Source playlist ID (repeatable)"},
					&cli.StringFlag{Name: "algorithm", Aliases: []string{"a"}, Usage: "Reorder algorithm name"},
					&cli.StringSliceFlag{Name: "param", Usage: "Algorithm parameter as key=value (repeatable)"},
					&cli.StringFlag{Name: "trigger-type", Usage: "interval or cron"},
					&cli.StringFlag{Name: "trigger-value", Usage: "Interval token or five-field cron expression"},
				},
				Action: r.ScheduleUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a schedule and its history",
				Arguments: []cli.Argument{idArg()},
				Flags:     []cli.Flag{configFlag()},
				Action:    r.ScheduleDelete,
			},
			{
				Name:      "toggle",
				Usage:     "Enable or disable a schedule",
				Arguments: []cli.Argument{idArg()},
				Flags:     []cli.Flag{configFlag()},
				Action:    r.ScheduleToggle,
			},
			{
				Name:      "history",
				Usage:     "Show recent executions",
				Arguments: []cli.Argument{idArg()},
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of executions to show",
						Value: 20,
					},
				},
				Action: r.ScheduleHistory,
			},
			{
				Name:      "run",
				Usage:     "Run a schedule immediately",
				Arguments: []cli.Argument{idArg()},
				Flags:     []cli.Flag{configFlag()},
				Action:    r.ScheduleRun,
			},
		},
	}
}

// runCommand starts the scheduler daemon
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the scheduler until interrupted",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Daemon,
	}
}
