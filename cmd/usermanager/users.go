package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"user-manager/usermanager"
	"user-manager/usermanager/domain"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	createCmd.Flags().String("profile-url", "", "profile image url")
	updateCmd.Flags().String("nickname", "", "new nickname")
	updateCmd.Flags().String("profile-url", "", "new profile image url")

	rootCmd.AddCommand(initCmd, createCmd, createBatchCmd, updateCmd, getCmd, listCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Persist the application id, clearing local state when it changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(_ context.Context, c *usermanager.Client) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", c.AppID())
			return err
		})
	},
}

var createCmd = &cobra.Command{
	Use:   "create <user_id> <nickname>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		profileURL, _ := cmd.Flags().GetString("profile-url")
		params := domain.CreationParams{UserID: args[0], Nickname: args[1], ProfileURL: profileURL}

		return withClient(cmd, func(ctx context.Context, c *usermanager.Client) error {
			u, err := c.CreateUser(ctx, params).Wait(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		})
	},
}

type batchItem struct {
	UserID     string `json:"user_id"`
	Nickname   string `json:"nickname"`
	ProfileURL string `json:"profile_url"`
}

var createBatchCmd = &cobra.Command{
	Use:   "create-batch <file|->",
	Short: "Create up to 10 users from a JSON array",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		var items []batchItem
		if err := json.NewDecoder(r).Decode(&items); err != nil {
			return errors.Wrap(err, "decode batch file")
		}
		list := make([]domain.CreationParams, len(items))
		for i, it := range items {
			list[i] = domain.CreationParams{UserID: it.UserID, Nickname: it.Nickname, ProfileURL: it.ProfileURL}
		}

		return withClient(cmd, func(ctx context.Context, c *usermanager.Client) error {
			users, err := c.CreateUsers(ctx, list).Wait(ctx)
			var batchErr *domain.CreateUsersError
			if errors.As(err, &batchErr) {
				_ = printJSON(cmd.OutOrStdout(), batchErr.Succeeded)
				return err
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), users)
		})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <user_id>",
	Short: "Update a user's nickname and/or profile url",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params := domain.UpdateParams{UserID: args[0]}
		if cmd.Flags().Changed("nickname") {
			v, _ := cmd.Flags().GetString("nickname")
			params.Nickname = &v
		}
		if cmd.Flags().Changed("profile-url") {
			v, _ := cmd.Flags().GetString("profile-url")
			params.ProfileURL = &v
		}

		return withClient(cmd, func(ctx context.Context, c *usermanager.Client) error {
			u, err := c.UpdateUser(ctx, params).Wait(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <user_id>",
	Short: "Fetch a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *usermanager.Client) error {
			u, err := c.GetUser(ctx, args[0]).Wait(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list <nickname>",
	Short: "List users with an exact nickname",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *usermanager.Client) error {
			users, err := c.GetUsers(ctx, args[0]).Wait(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), users)
		})
	},
}
