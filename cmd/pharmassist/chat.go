package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stupiduntilnot/pharmassist/internal/assistant"
)

func newChatCmd(c *cli) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant as a user",
		Long: `Sends one message when given as arguments, otherwise reads one message
per line from stdin until EOF.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.ValidateBackend(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) > 0 {
				return chatTurn(ctx, a.service, userID, strings.Join(args, " "), cmd.OutOrStdout(), c.logger)
			}
			return chatLoop(ctx, a.service, userID, cmd.InOrStdin(), cmd.OutOrStdout(), c.logger)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "id of the user sending the messages")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func chatLoop(ctx context.Context, svc *assistant.Service, userID string, in io.Reader, out io.Writer, logger *zap.Logger) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := chatTurn(ctx, svc, userID, line, out, logger); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func chatTurn(ctx context.Context, svc *assistant.Service, userID, text string, out io.Writer, logger *zap.Logger) error {
	res, err := svc.HandleTurn(ctx, userID, text)
	if errors.Is(err, assistant.ErrEmptyTurn) {
		return nil
	}
	if err != nil {
		return err
	}
	if res.ProviderErr != nil {
		logger.Debug("turn answered with apology", zap.Int64("turn_event_id", res.TurnEventID))
	}
	_, err = fmt.Fprintf(out, "%s\n\n", res.Reply.Content)
	return err
}
