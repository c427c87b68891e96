package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ytput/ytput/internal/auth"
	"github.com/ytput/ytput/internal/tube"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize with YouTube in the browser",
		RunE:  runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved authorization token",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authorized channel",
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	ts, err := auth.Login(ctx, resolvedCfg.ClientSecretPath, resolvedCfg.TokenPath, openBrowser, logger)
	if err != nil {
		return err
	}

	// Cache the channel identity so whoami works offline.
	client, err := tube.NewClient(ctx, ts, 0, logger)
	if err != nil {
		return err
	}

	id, title, err := client.ChannelInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetching channel info: %w", err)
	}

	meta := map[string]string{"channel_id": id, "channel_title": title}
	if err := auth.SaveChannelMeta(resolvedCfg.TokenPath, meta); err != nil {
		logger.Warn("caching channel metadata failed", "error", err)
	}

	statusf("Logged in as %s.\n", title)

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	if err := auth.Logout(resolvedCfg.TokenPath, logger); err != nil {
		return err
	}

	statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	ChannelID    string `json:"channel_id"`
	ChannelTitle string `json:"channel_title"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	id, title, err := channelIdentity(ctx, logger)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(whoamiOutput{ChannelID: id, ChannelTitle: title})
	}

	fmt.Printf("Channel: %s\n", title)
	fmt.Printf("ID:      %s\n", id)

	return nil
}

// channelIdentity returns the channel cached at login, falling back to an
// API call for tokens saved before the metadata was recorded.
func channelIdentity(ctx context.Context, logger *slog.Logger) (id, title string, err error) {
	meta, err := auth.ChannelMeta(resolvedCfg.TokenPath)
	if err != nil {
		return "", "", err
	}

	if meta == nil {
		return "", "", notLoggedInErr(auth.ErrNotLoggedIn)
	}

	if meta["channel_id"] != "" {
		return meta["channel_id"], meta["channel_title"], nil
	}

	client, err := apiClient(ctx)
	if err != nil {
		return "", "", err
	}

	id, title, err = client.ChannelInfo(ctx)
	if err != nil {
		return "", "", fmt.Errorf("fetching channel info: %w", err)
	}

	saveMeta := map[string]string{"channel_id": id, "channel_title": title}
	if saveErr := auth.SaveChannelMeta(resolvedCfg.TokenPath, saveMeta); saveErr != nil {
		logger.Warn("caching channel metadata failed", "error", saveErr)
	}

	return id, title, nil
}

// apiClient builds an authenticated tube client from the saved token,
// translating credential errors into actionable messages.
func apiClient(ctx context.Context) (*tube.Client, error) {
	logger := buildLogger()

	ts, err := auth.TokenSourceFromPath(ctx, resolvedCfg.ClientSecretPath, resolvedCfg.TokenPath, logger)
	if err != nil {
		return nil, notLoggedInErr(err)
	}

	return tube.NewClient(ctx, ts, resolvedCfg.ChunkSizeMiB*1024*1024, logger)
}

// notLoggedInErr rewrites credential sentinels into user-facing guidance.
func notLoggedInErr(err error) error {
	switch {
	case errors.Is(err, auth.ErrNotLoggedIn):
		return fmt.Errorf("not logged in — run 'ytput login' first")
	case errors.Is(err, auth.ErrScopesChanged):
		return fmt.Errorf("saved token is missing required permissions — run 'ytput login' again")
	default:
		return err
	}
}

// openBrowser launches the platform's URL opener.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	return cmd.Start()
}
