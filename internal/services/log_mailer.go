package services

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogMailer is a Mailer that writes digests to the structured log instead of
// sending email. It is the default seam for deployments without a mail
// transport and keeps the scheduler testable end to end.
type LogMailer struct{}

// SendDigest logs the digest and reports success.
func (LogMailer) SendDigest(_ context.Context, d Digest) error {
	log.Info().
		Str("shop", d.ShopDomain).
		Str("email", d.Email).
		Str("frequency", d.Frequency).
		Int64("error_count", d.ErrorCount).
		Int("top_errors", len(d.TopErrors)).
		Msg("digest dispatched")
	return nil
}
