// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// runCommand starts the Telegram bot
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the Telegram bot (and the health endpoint when server.addr is set)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Health endpoint listen address, overrides server.addr",
			},
		},
		Action: r.Run,
	}
}

// searchCommand runs the pipeline once from the terminal
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find playlists containing a track (name or audio link)",
		ArgsUsage: "<query or link>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "token",
				Usage: "Catalog access token, overrides the configured credential",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to print (default: max_playlists_to_show)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Search,
	}
}

// resolveCommand shows how text would be interpreted, without network access
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Show whether text is a direct track link or a search query",
		ArgsUsage: "<text>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Resolve,
	}
}

// validateCommand checks a catalog token
func validateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check that a catalog token is accepted and has audio access",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "token",
				Usage: "Token or redirect URL to check (default: the configured credential)",
			},
		},
		Action: r.Validate,
	}
}

// chatCommand opens the terminal chat
func chatCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Talk to the bot in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the chat is open",
				Value: "./tmp/vkpl-chat.log",
			},
		},
		Action: r.Chat,
	}
}

// loginCommand helps obtain a per-user token
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Print the authorization link for a user token",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the link in the default browser",
			},
			&cli.StringFlag{
				Name:  "paste",
				Usage: "Redirect URL (or token) received after authorizing; prints the token settings",
			},
		},
		Action: r.Login,
	}
}

// configCommand manages the configuration file
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write the example configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "config.toml",
					},
				},
				Action: r.ConfigInit,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration with tokens masked",
				Action: r.ConfigShow,
			},
		},
	}
}
