package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/blang/semver"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// releaseSlug is the GitHub repository releases are published to
const releaseSlug = "s0up4200/eactl"

var (
	checkLatest bool
	forceUpdate bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipClientAnnotation: "true"},
	RunE:        runVersion,
}

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:         "update",
	Short:       "Update eactl to the latest release",
	Long:        `Download the latest GitHub release for this platform and replace the running binary.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipClientAnnotation: "true"},
	RunE:        runUpdate,
}

func init() {
	versionCmd.Flags().BoolVar(&checkLatest, "check", false, "check whether a newer release exists")
	updateCmd.Flags().BoolVar(&forceUpdate, "force", false, "update even when running a development build")
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "eactl %s\n", version)
	fmt.Fprintf(out, "Commit: %s\n", commit)
	fmt.Fprintf(out, "Build time: %s\n", buildTime)
	fmt.Fprintf(out, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	if !checkLatest {
		return nil
	}

	latest, found, err := selfupdate.DetectLatest(cmd.Context(), selfupdate.ParseSlug(releaseSlug))
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}
	if !found {
		fmt.Fprintln(out, "No releases found.")
		return nil
	}

	newer, err := isNewer(latest.Version(), version)
	if err != nil {
		fmt.Fprintf(out, "Latest release: %s\n", latest.Version())
		return nil
	}
	if newer {
		fmt.Fprintf(out, "A new release is available: %s (run 'eactl update')\n", latest.Version())
	} else {
		fmt.Fprintln(out, "✓ You are running the latest release")
	}
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	current := version
	if _, err := semver.ParseTolerant(current); err != nil {
		if !forceUpdate {
			return fmt.Errorf("cannot update development build %q, use --force to install the latest release", version)
		}
		current = "0.0.0"
	}

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(releaseSlug))
	if err != nil {
		return fmt.Errorf("failed to detect latest release: %w", err)
	}
	if !found {
		return fmt.Errorf("no release found for %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	newer, err := isNewer(latest.Version(), current)
	if err != nil {
		return err
	}
	if !newer {
		fmt.Fprintf(out, "✓ Already up to date (%s)\n", version)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	logger.Info().
		Str("current", version).
		Str("latest", latest.Version()).
		Str("asset", latest.AssetName).
		Msg("Updating eactl")

	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return fmt.Errorf("failed to update binary: %w", err)
	}

	fmt.Fprintf(out, "✓ Updated to %s\n", latest.Version())
	return nil
}

// isNewer reports whether latest is a higher version than current. Both
// may carry a leading v.
func isNewer(latest, current string) (bool, error) {
	l, err := semver.ParseTolerant(latest)
	if err != nil {
		return false, fmt.Errorf("invalid release version %q: %w", latest, err)
	}
	c, err := semver.ParseTolerant(current)
	if err != nil {
		return false, fmt.Errorf("invalid current version %q: %w", current, err)
	}
	return l.GT(c), nil
}
