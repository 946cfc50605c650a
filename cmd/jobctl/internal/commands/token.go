package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"landscape-job-service/internal/auth"
)

type TokenCmd struct {
	Subject  string        `help:"User id (uuid) to issue the token for" required:""`
	TTL      time.Duration `help:"Token lifetime" default:"1h"`
	Secret   string        `help:"HS256 signing secret" required:"" env:"JWT_SECRET"`
	Issuer   string        `help:"Token issuer" default:"" env:"JWT_ISSUER"`
	Audience string        `help:"Token audience" default:"" env:"JWT_AUDIENCE"`
}

func (t *TokenCmd) Run(ctx context.Context) error {
	if _, err := uuid.Parse(t.Subject); err != nil {
		return fmt.Errorf("subject must be a uuid: %w", err)
	}

	token, err := auth.IssueToken(t.Secret, t.Subject, t.TTL, t.Issuer, t.Audience)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
