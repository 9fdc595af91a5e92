package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const (
	githubRepoOwner = "vinhnx"
	githubRepoName  = "vtcode"
)

// githubRelease is the subset of GitHub's releases API this command needs.
type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
	Body    string `json:"body"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

func buildUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for or apply vtcode updates",
	}
	cmd.AddCommand(buildUpdateCheckCmd(), buildUpdateApplyCmd())
	return cmd
}

func buildUpdateCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check whether a newer vtcode release is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			release, err := fetchLatestRelease(cmd.Context())
			if err != nil {
				return fmt.Errorf("check for updates: %w", err)
			}

			out := cmd.OutOrStdout()
			latest := strings.TrimPrefix(release.TagName, "v")
			current := strings.TrimPrefix(version, "v")
			if latest == current || current == "dev" && latest == "" {
				fmt.Fprintf(out, "vtcode %s is up to date\n", version)
				return nil
			}
			if latest == "" {
				fmt.Fprintln(out, "no releases found")
				return nil
			}

			fmt.Fprintf(out, "current: %s\nlatest:  %s\nrelease: %s\n", version, latest, release.HTMLURL)
			if latest != current {
				fmt.Fprintln(out, "run `vtcode update apply` to install it")
			}
			return nil
		},
	}
}

func buildUpdateApplyCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Download and install the latest vtcode release",
		RunE: func(cmd *cobra.Command, args []string) error {
			release, err := fetchLatestRelease(cmd.Context())
			if err != nil {
				return fmt.Errorf("check for updates: %w", err)
			}
			latest := strings.TrimPrefix(release.TagName, "v")
			current := strings.TrimPrefix(version, "v")
			if latest == current {
				fmt.Fprintf(cmd.OutOrStdout(), "vtcode %s is already up to date\n", version)
				return nil
			}
			if !yes {
				return fmt.Errorf("usage: refusing to replace the running binary without --yes (current %s, latest %s)", version, latest)
			}

			assetURL := releaseAssetURL(release)
			if assetURL == "" {
				return fmt.Errorf("no release asset found for this platform")
			}

			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locate running binary: %w", err)
			}
			backupPath := execPath + ".bak"
			if err := copyFile(execPath, backupPath); err != nil {
				return fmt.Errorf("backup current binary: %w", err)
			}

			if err := downloadAndReplace(cmd.Context(), assetURL, execPath); err != nil {
				_ = copyFile(backupPath, execPath)
				return fmt.Errorf("install update (rolled back): %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "updated %s -> %s (backup at %s)\n", version, latest, backupPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm replacing the running binary")
	return cmd
}

func fetchLatestRelease(ctx context.Context) (*githubRelease, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/latest", githubRepoOwner, githubRepoName)
	if channel := strings.TrimSpace(os.Getenv("VTCODE_UPDATE_CHANNEL")); channel != "" && channel != "stable" {
		url = fmt.Sprintf("https://api.github.com/repos/%s/%s/releases?per_page=1", githubRepoOwner, githubRepoName)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var release githubRelease
	if strings.Contains(url, "per_page") {
		var releases []githubRelease
		if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
			return nil, err
		}
		if len(releases) == 0 {
			return &githubRelease{}, nil
		}
		release = releases[0]
	} else if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, err
	}
	return &release, nil
}

func releaseAssetURL(release *githubRelease) string {
	suffix := fmt.Sprintf("%s_%s", os.Getenv("GOOS"), os.Getenv("GOARCH"))
	for _, asset := range release.Assets {
		if strings.Contains(asset.Name, suffix) {
			return asset.BrowserDownloadURL
		}
	}
	if len(release.Assets) > 0 {
		return release.Assets[0].BrowserDownloadURL
	}
	return ""
}

func downloadAndReplace(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	tmp := dest + ".new"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := f.ReadFrom(resp.Body); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dest)
}

func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, info.Mode())
}
