package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/platinummonkey/morp/pkg/changes"
	"github.com/spf13/cobra"
)

func newDiffCommand(a *app) *cobra.Command {
	var (
		prefix  string
		branch  string
		patch   string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "diff [files...]",
		Short: "List the packages impacted by a change",
		Long: `List every package impacted by the current change: the changed packages
plus all packages that depend on them, directly or transitively. One name is
printed per line, sorted, each prefixed with --prefix.

Change Detection:
  [files...]     Classify the given paths
  --patch FILE   Read a unified diff, - for stdin
  (default)      Staged changes since the merge base with --branch

Paths outside the packages directory impact the "root" pseudo-package, which
has no dependents.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("prefix") {
				a.cfg.Prefix = prefix
			}
			if cmd.Flags().Changed("branch") {
				a.cfg.BaseBranch = branch
			}
			if len(args) > 0 && patch != "" {
				return fmt.Errorf("file arguments and --patch are mutually exclusive")
			}

			ctx := cmd.Context()

			classifier, err := a.classifier()
			if err != nil {
				return err
			}

			repo, err := a.load(ctx)
			if err != nil {
				return err
			}

			source, closeSource, err := a.changeSource(cmd.InOrStdin(), args, patch)
			if err != nil {
				return err
			}
			defer closeSource()

			files, err := source.ChangedFiles(ctx)
			if err != nil {
				return fmt.Errorf("detecting changes: %w", err)
			}
			a.log.Debugf("Found %d changed files", len(files))

			analysis, err := repo.Impact(ctx, files, classifier)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(analysis)
			}
			return printNames(out, a.cfg.Prefix, analysis.Impacted)
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Prefix prepended to every printed package name")
	cmd.Flags().StringVar(&branch, "branch", changes.DefaultBaseBranch, "Reference branch to diff against")
	cmd.Flags().StringVar(&patch, "patch", "", "Unified diff file to read changes from, - for stdin")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full impact analysis as JSON")
	return cmd
}

// changeSource picks where changed files come from. The returned func
// releases any opened file.
func (a *app) changeSource(stdin io.Reader, args []string, patch string) (changes.Source, func(), error) {
	noop := func() {}

	switch {
	case len(args) > 0:
		return changes.ListSource{Paths: args}, noop, nil
	case patch == "-":
		return changes.PatchSource{Reader: stdin}, noop, nil
	case patch != "":
		f, err := os.Open(patch)
		if err != nil {
			return nil, nil, fmt.Errorf("opening patch: %w", err)
		}
		return changes.PatchSource{Reader: f}, func() { f.Close() }, nil
	default:
		return changes.NewGitSource(a.cfg.Root, a.cfg.BaseBranch), noop, nil
	}
}
