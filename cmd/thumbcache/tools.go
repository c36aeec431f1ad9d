package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"thumbcache/internal/config"
	"thumbcache/internal/identity"
	"thumbcache/internal/thumbcache"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	alternateURL string
	forceRefresh bool
	writeTo      string
	cleanupAge   time.Duration
	dumpJSON     bool
	assumeYes    bool
)

func init() {
	generateCmd.Flags().StringVar(&alternateURL, "alternate", "", "alternate (transcoded) URL to decode instead of the source")
	generateCmd.Flags().BoolVar(&forceRefresh, "force", false, "regenerate even if a thumbnail is cached")
	generateCmd.Flags().StringVarP(&writeTo, "output", "o", "", "write the data URI to this file instead of stdout")

	lookupCmd.Flags().StringVar(&alternateURL, "alternate", "", "alternate URL of the item")

	cleanupCmd.Flags().DurationVar(&cleanupAge, "max-age", 0, "retention to apply (default RETENTION)")

	dumpCmd.Flags().BoolVar(&dumpJSON, "json", false, "print the raw record as JSON")

	clearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func isURL(s string) bool {
	return strings.Contains(s, "://")
}

var generateCmd = &cobra.Command{
	Use:   "generate <url|file>",
	Short: "Generate and cache a thumbnail for a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := generate(ctx, a, args[0])
		if err != nil {
			return err
		}

		if writeTo != "" {
			if err := os.WriteFile(writeTo, []byte(data), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", writeTo, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", writeTo, formatBytes(int64(len(data))))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), data)
		return nil
	},
}

func generate(ctx context.Context, a *app, arg string) (string, error) {
	if isURL(arg) {
		d := thumbcache.MediaDescriptor{
			Kind:         string(thumbcache.KindVideo),
			PrimaryURL:   arg,
			AlternateURL: alternateURL,
		}
		var res thumbcache.Result
		if forceRefresh {
			res = a.svc.ForceRefresh(ctx, d)
		} else {
			res = a.svc.Ensure(ctx, d)
		}
		if res.URL == "" {
			return "", fmt.Errorf("no thumbnail for %s (%s)", arg, res.Status)
		}
		return res.URL, nil
	}

	src, err := identity.FileSource(arg)
	if err != nil {
		return "", err
	}
	ids := identity.AllPossibleIDs(src)
	if !forceRefresh {
		if data, _, ok := a.store.LookupAny(ctx, ids); ok {
			return data, nil
		}
	}

	res := a.gen.Generate(ctx, src)
	if !res.OK() {
		return "", fmt.Errorf("no thumbnail could be generated for %s", arg)
	}
	if err := a.store.Put(ctx, identity.PrimaryID(src), res.Data, src.String(), ids); err != nil {
		return "", err
	}
	return res.Data, nil
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <url|file>",
	Short: "Look up a cached thumbnail without generating",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var ids []string
		if isURL(args[0]) {
			_, ids = identity.ForDescriptor(args[0], alternateURL)
		} else {
			src, err := identity.FileSource(args[0])
			if err != nil {
				return err
			}
			ids = identity.AllPossibleIDs(src)
		}

		data, tier, ok := a.store.LookupAny(ctx, ids)
		if !ok {
			return fmt.Errorf("no cached thumbnail for %s", args[0])
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "hit (%s), %s\n", tier, formatBytes(int64(len(data))))
		fmt.Fprintln(cmd.OutOrStdout(), data)
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the cache contents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		rec := a.svc.DebugDump(ctx)
		out := cmd.OutOrStdout()

		if dumpJSON {
			enc := json.NewEncoder(out)
			if isTerminal(out) {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(rec)
		}

		writeSummary(out, a.store.Namespace(), rec, time.Now())
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired thumbnails",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var removed int
		if cleanupAge > 0 {
			removed, err = a.store.Cleanup(ctx, cleanupAge)
		} else {
			removed, err = a.svc.CleanupExpired(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired thumbnails\n", removed)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move entries from the legacy namespace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		migrated, err := a.svc.MigrateIfNeeded(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %d entries from %s to %s\n",
			migrated, a.cfg.LegacyNamespace, a.store.Namespace())
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached thumbnail",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if !assumeYes {
			if !isTerminal(cmd.InOrStdin()) {
				return errors.New("refusing to clear without --yes when stdin is not a terminal")
			}
			stats := a.store.Stats(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "Delete %d thumbnails (%s) from %s? [y/N] ",
				stats.Entries, formatBytes(stats.PayloadBytes), a.store.Namespace())
			if !confirm(cmd.InOrStdin()) {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
		}

		if err := a.svc.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetBuildInfo().String())
	},
}

// isTerminal reports whether v is an *os.File attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func confirm(r io.Reader) bool {
	var answer string
	if _, err := fmt.Fscanln(r, &answer); err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
