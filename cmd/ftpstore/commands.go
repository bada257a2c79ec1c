package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/charlesng35/ftpstore/internal/storage"
	"github.com/charlesng35/ftpstore/internal/thumbnail"
)

type sizeFlags struct {
	values []string
	none   bool
}

func (f *sizeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.values, "size", nil, "Thumbnail size: a configured key or key=WxH (repeatable)")
	cmd.Flags().BoolVar(&f.none, "no-thumbnails", false, "Ignore thumbnail sizes")
}

func (f *sizeFlags) resolve(c *cli) (thumbnail.Sizes, error) {
	configured, err := c.cfg.Storage.Sizes()
	if err != nil {
		return nil, err
	}
	return parseSizeFlags(f.values, configured, f.none)
}

func newPutCommand(c *cli) *cobra.Command {
	var sizes sizeFlags
	cmd := &cobra.Command{
		Use:   "put <local-file> <object-path>",
		Short: "Upload a file and its thumbnails",
		Long: `Upload a local file under the configured root and store one thumbnail per size.

Examples:
  ftpstore put ./cat.png 2024/cat.png
  ftpstore put ./cat.png 2024/cat.png --size small --size cover=800x400^`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := sizes.resolve(c)
			if err != nil {
				return err
			}
			local := args[0]
			if info, err := os.Stat(local); err != nil {
				return fmt.Errorf("read %s: %w", local, err)
			} else if info.IsDir() {
				return fmt.Errorf("read %s: is a directory", local)
			}

			store, err := c.openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := store.Put(cmd.Context(), args[1], storage.FileSource(local), selected)
			if res != nil {
				printSteps(cmd.OutOrStdout(), string(res.Outcome()), res.Original, res.Thumbnails)
			}
			return err
		},
	}
	sizes.register(cmd)
	return cmd
}

func newRmCommand(c *cli) *cobra.Command {
	var sizes sizeFlags
	cmd := &cobra.Command{
		Use:   "rm <object-path>",
		Short: "Delete an object and its thumbnails",
		Long: `Delete an object and the thumbnails of the selected sizes. Targets that are
already absent are reported but do not fail the command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := sizes.resolve(c)
			if err != nil {
				return err
			}

			store, err := c.openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := store.Remove(cmd.Context(), args[0], selected)
			if res != nil {
				printSteps(cmd.OutOrStdout(), string(res.Outcome()), res.Original, res.Thumbnails)
			}
			return err
		},
	}
	sizes.register(cmd)
	return cmd
}

func newURLCommand(c *cli) *cobra.Command {
	var sizes sizeFlags
	cmd := &cobra.Command{
		Use:   "url <object-path>",
		Short: "Print the public URLs of an object and its thumbnails",
		Long:  `Resolve public URLs from storage.public_url. No connection is opened.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := sizes.resolve(c)
			if err != nil {
				return err
			}
			urls, err := c.cfg.Storage.URLBuilder()
			if err != nil {
				return err
			}

			resolved := storage.NewResolver(c.cfg.Storage.FTP.Root, urls).Resolve(args[0], selected)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\t%s\n", storage.OriginalKey, resolved[storage.OriginalKey])
			for _, key := range selected.Keys() {
				fmt.Fprintf(out, "%s\t%s\n", key, resolved[key])
			}
			return nil
		},
	}
	sizes.register(cmd)
	return cmd
}

func newCheckCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Connect, log in and send NOOP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := c.openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok\t%s\n", c.cfg.Storage.FTP.Remote().Address())
			return nil
		},
	}
}

func printSteps(out io.Writer, outcome string, original storage.StepResult, thumbs map[string]storage.StepResult) {
	fmt.Fprintf(out, "%s\t%s\t%s\n", storage.OriginalKey, original.Path, stepStatus(original))

	keys := make([]string, 0, len(thumbs))
	for key := range thumbs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(out, "%s\t%s\t%s\n", key, thumbs[key].Path, stepStatus(thumbs[key]))
	}
	fmt.Fprintf(out, "outcome\t%s\n", outcome)
}

func stepStatus(step storage.StepResult) string {
	switch {
	case step.Err != nil:
		return "error: " + step.Err.Error()
	case step.Ignored != nil:
		return "absent"
	default:
		return "ok"
	}
}
