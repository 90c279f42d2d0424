package credentials

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/vkpl/internal/services"
	"github.com/desertthunder/vkpl/internal/shared"
)

// Reasons reported by [Validator.Validate].
const (
	ReasonEmpty       = "token is empty"
	ReasonRejected    = "token was rejected by the catalog"
	ReasonNoAudio     = "token has no access to audio"
	ReasonUnreachable = "catalog unreachable, try again later"
)

// Validator checks tokens against the catalog before they are accepted.
type Validator struct {
	caller services.Caller
	logger *log.Logger
}

// NewValidator creates a validator that probes the catalog through caller.
func NewValidator(caller services.Caller, logger *log.Logger) *Validator {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Validator{caller: caller, logger: logger}
}

// Validate runs an identity probe then a capability probe.
//
// An authorization failure from either probe makes the token invalid. Other catalog errors are
// tolerated, so the token is only tentatively valid. A transport failure makes it invalid
// because nothing could be confirmed. The returned reason is empty for valid tokens.
func (v *Validator) Validate(ctx context.Context, token string) (bool, string) {
	if strings.TrimSpace(token) == "" {
		return false, ReasonEmpty
	}

	if ok, reason := v.probe(ctx, services.MethodUsersGet, url.Values{}, token, ReasonRejected); !ok {
		return false, reason
	}

	params := url.Values{}
	params.Set("q", "a")
	params.Set("count", "1")
	if ok, reason := v.probe(ctx, services.MethodAudioSearch, params, token, ReasonNoAudio); !ok {
		return false, reason
	}

	v.logger.Debug("credential accepted", "token", shared.MaskToken(token))
	return true, ""
}

func (v *Validator) probe(ctx context.Context, method string, params url.Values, token, rejected string) (bool, string) {
	_, err := v.caller.Call(ctx, method, params, token)
	switch {
	case err == nil:
		return true, ""
	case errors.Is(err, shared.ErrUnauthorized):
		v.logger.Info("credential rejected", "method", method, "token", shared.MaskToken(token), "err", err)
		return false, rejected
	case errors.Is(err, shared.ErrTransport):
		v.logger.Warn("credential probe failed", "method", method, "err", err)
		return false, ReasonUnreachable
	default:
		v.logger.Warn("credential probe returned an error, accepting tentatively", "method", method, "err", err)
		return true, ""
	}
}
