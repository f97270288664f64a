package cli

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	urfave "github.com/urfave/cli/v3"

	"github.com/mchmarny/nnpu/pkg/auth"
)

const (
	tokenSourceEnv   = "env"
	tokenSourceStore = "store"
)

var (
	tokenValueFlag = &urfave.StringFlag{
		Name:  "value",
		Usage: "Token to store (default: read the first line of stdin)",
	}
)

// TokenStatus reports where the data token comes from. The token itself is
// never printed.
type TokenStatus struct {
	Configured bool   `json:"configured" yaml:"configured"`
	Source     string `json:"source,omitempty" yaml:"source,omitempty"`
}

func newTokenCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "token",
		Usage: "Manage the bearer token sent with dataset downloads",
		Commands: []*urfave.Command{
			{
				Name:   "set",
				Usage:  "Store the token in the OS keychain",
				Action: cmdTokenSet,
				Flags:  fresh(tokenValueFlag),
			},
			{
				Name:   "status",
				Usage:  "Report whether a token is configured",
				Action: cmdTokenStatus,
			},
			{
				Name:   "delete",
				Usage:  "Remove the stored token",
				Action: cmdTokenDelete,
			},
		},
	}
}

func tokenStore(ctx context.Context) (*auth.Store, error) {
	app, err := getConfig(ctx)
	if err != nil {
		return nil, err
	}
	return auth.NewStore(app.Home), nil
}

func cmdTokenSet(ctx context.Context, cmd *urfave.Command) error {
	s, err := tokenStore(ctx)
	if err != nil {
		return err
	}

	token := cmd.String(tokenValueFlag.Name)
	if token == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return errors.Wrap(err, "reading token from stdin")
		}
		token = strings.TrimSpace(line)
	}

	if err := s.Save(token); err != nil {
		return errors.Wrap(err, "saving token")
	}
	return encode(cmd, &TokenStatus{Configured: true, Source: tokenSourceStore})
}

func cmdTokenStatus(ctx context.Context, cmd *urfave.Command) error {
	s, err := tokenStore(ctx)
	if err != nil {
		return err
	}

	if strings.TrimSpace(os.Getenv(auth.TokenEnvVar)) != "" {
		return encode(cmd, &TokenStatus{Configured: true, Source: tokenSourceEnv})
	}

	if _, err := s.Get(); err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			return encode(cmd, &TokenStatus{})
		}
		return err
	}
	return encode(cmd, &TokenStatus{Configured: true, Source: tokenSourceStore})
}

func cmdTokenDelete(ctx context.Context, cmd *urfave.Command) error {
	s, err := tokenStore(ctx)
	if err != nil {
		return err
	}
	if err := s.Delete(); err != nil {
		return err
	}
	return encode(cmd, &TokenStatus{})
}
