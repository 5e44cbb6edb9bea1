package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var (
		userID string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print a user's conversation transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, events, ownsDB, err := openStore(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if ownsDB {
				defer events.Close()
			}

			msgs, err := st.Messages(cmd.Context(), userID, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range msgs {
				fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Local().Format(time.DateTime), m.Role, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of most recent messages (0 = all)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
