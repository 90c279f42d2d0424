package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/vkpl/internal/shared"
	"github.com/desertthunder/vkpl/internal/ui"
)

// localChatID identifies the single terminal conversation.
const localChatID = 1

// Chat opens the terminal chat backed by the same session controller as the bot.
func (r *Runner) Chat(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(false); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	if r.config.Log.File == "" {
		fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
		r.SetLogger(fileLogger)
	}

	messenger := ui.NewMessenger(nil)
	b, err := r.newBot(ctx, messenger)
	if err != nil {
		return err
	}
	defer b.release()

	return ui.Run(ctx, b.controller, messenger, localChatID)
}
