package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/vkpl/internal/credentials"
	"github.com/desertthunder/vkpl/internal/shared"
)

// ConfigInit writes the embedded example configuration.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return r.writePlain("✓ Wrote %s\n", path)
}

// ConfigShow prints the effective configuration. Secrets are masked.
func (r *Runner) ConfigShow(ctx context.Context, cmd *cli.Command) error {
	c := *r.config
	c.Bot.Token = shared.MaskToken(c.Bot.Token)
	c.Credentials.ServiceToken = shared.MaskToken(c.Credentials.ServiceToken)
	c.Credentials.AccessToken = shared.MaskToken(c.Credentials.AccessToken)
	return r.writeJSON(c, true)
}

// Login prints the authorization link, or decodes a pasted redirect URL when --paste is set.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	if pasted := cmd.String("paste"); pasted != "" {
		token, err := credentials.ParseToken(pasted)
		if err != nil {
			return err
		}

		r.writePlainHeader("User credential")
		r.writePlain("CREDENTIAL_MODE=%s\n", shared.ModeUser)
		r.writePlain("VK_ACCESS_TOKEN=%s\n", token.AccessToken)
		if id := credentials.UserID(token); id != 0 {
			r.writePlain("VK_USER_ID=%d\n", id)
		}
		if !token.Expiry.IsZero() {
			r.writePlainln("Expires %s", token.Expiry.Format(time.RFC1123))
		}
		return nil
	}

	if r.config.Credentials.AppID == "" {
		return fmt.Errorf("%w: VK_APP_ID", shared.ErrMissingConfig)
	}

	link := r.newAuthorizer().AuthURL()
	r.writePlainHeader("Authorize access to your audio")
	r.writePlain("%s\n", link)
	r.writePlainln("After granting access, run: vkpl login --paste '<address bar URL>'")

	if cmd.Bool("open") {
		if err := shared.OpenBrowser(link); err != nil {
			r.logger.Warn("could not open browser", "err", err)
		}
	}
	return nil
}
