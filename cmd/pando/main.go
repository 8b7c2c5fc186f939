// Command pando is the thin CLI over the version-control core.
//
// Exit codes: 0 success, 1 user error (dirty workspace, unknown branch,
// nothing to snapshot), 2 merge conflict, 3 internal error.
package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pandonetwork/pando/internal/object"
	"github.com/pandonetwork/pando/internal/refs"
	"github.com/pandonetwork/pando/internal/repo"
)

var (
	workspace string
	verbose   bool
)

func main() {
	root := &cobra.Command{
		Use:           "pando",
		Short:         "content-addressed version control",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace root")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		initCmd(),
		statusCmd(),
		stageCmd(),
		snapshotCmd(),
		branchCmd(),
		checkoutCmd(),
		mergeCmd(),
		logCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pando: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps core errors onto the CLI contract.
func exitCode(err error) int {
	var conflict *repo.MergeConflictError
	if errors.As(err, &conflict) {
		return 2
	}
	var dirty *repo.DirtyWorkspaceError
	switch {
	case errors.As(err, &dirty),
		errors.Is(err, repo.ErrNotInitialized),
		errors.Is(err, repo.ErrAlreadyInitialized),
		errors.Is(err, repo.ErrNothingToSnapshot),
		errors.Is(err, refs.ErrUnknownBranch),
		errors.Is(err, refs.ErrBranchExists),
		errors.Is(err, refs.ErrCannotDeleteCurrentBranch),
		errors.Is(err, refs.ErrInvalidBranchName):
		return 1
	}
	return 3
}

func open() (*repo.Repository, error) {
	return repo.Open(workspace)
}

func initCmd() *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "initialize a workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Init(workspace, author)
			if err != nil {
				return err
			}
			fmt.Printf("Initialized empty pando workspace at %s\n", r.Root())
			return nil
		},
	}
	cmd.Flags().StringVar(&author, "author", os.Getenv("USER"), "snapshot author")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show the working directory state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			st, err := r.Status()
			if err != nil {
				return err
			}
			_, current, err := r.Branches()
			if err != nil {
				return err
			}
			fmt.Printf("On branch %s\n", current)
			printPaths("Staged for snapshot:", st.Staged, color.New(color.FgGreen))
			printPaths("Modified:", st.Modified, color.New(color.FgRed))
			printPaths("Deleted:", st.Deleted, color.New(color.FgRed))
			printPaths("Untracked:", st.Untracked, color.New(color.FgYellow))
			if len(st.Staged) == 0 && len(st.Modified) == 0 && len(st.Untracked) == 0 {
				fmt.Println("nothing to snapshot, working directory clean")
			}
			return nil
		},
	}
}

func printPaths(header string, paths []string, c *color.Color) {
	if len(paths) == 0 {
		return
	}
	fmt.Println(header)
	for _, p := range paths {
		c.Printf("\t%s\n", p)
	}
}

func stageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage <path>...",
		Short: "stage file contents for the next snapshot",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			return r.Stage(args)
		},
	}
}

func snapshotCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "record the staged state as a new snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			c, err := r.Snapshot(message)
			if err != nil {
				return err
			}
			fmt.Printf("snapshot %s\n", object.ShortCID(c))
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "snapshot message")
	cmd.MarkFlagRequired("message")
	return cmd
}

func branchCmd() *cobra.Command {
	var del bool
	cmd := &cobra.Command{
		Use:   "branch [name]",
		Short: "list branches, or create one at the current head",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				names, current, err := r.Branches()
				if err != nil {
					return err
				}
				sort.Strings(names)
				for _, name := range names {
					if name == current {
						color.New(color.FgGreen).Printf("* %s\n", name)
					} else {
						fmt.Printf("  %s\n", name)
					}
				}
				return nil
			}
			if del {
				return r.DeleteBranch(args[0])
			}
			return r.CreateBranch(args[0])
		},
	}
	cmd.Flags().BoolVarP(&del, "delete", "d", false, "delete the named branch")
	return cmd
}

func checkoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <branch>",
		Short: "switch the workspace to another branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			if err := r.Checkout(args[0]); err != nil {
				return err
			}
			fmt.Printf("Switched to branch %s\n", args[0])
			return nil
		},
	}
}

func mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <branch>",
		Short: "merge another branch into the current branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			res, err := r.Merge(args[0])
			if err != nil {
				var conflict *repo.MergeConflictError
				if errors.As(err, &conflict) {
					printConflicts(conflict)
				}
				return err
			}
			switch res.Outcome {
			case repo.MergeUpToDate:
				fmt.Println("Already up to date.")
			case repo.MergeFastForward:
				fmt.Printf("Fast-forward to %s\n", object.ShortCID(res.Head))
			case repo.MergeSnapshotCreated:
				fmt.Printf("Merge snapshot %s\n", object.ShortCID(res.Head))
			}
			return nil
		},
	}
}

func printConflicts(err *repo.MergeConflictError) {
	red := color.New(color.FgRed)
	paths := make([]string, 0, len(err.Paths))
	for p := range err.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	fmt.Println("Merge aborted; conflicts in:")
	for _, p := range paths {
		red.Printf("\t%s (%s)\n", p, err.Paths[p])
	}
}

func logCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "show snapshot history of the current branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := open()
			if err != nil {
				return err
			}
			entries, err := r.Log(limit)
			if err != nil {
				return err
			}
			yellow := color.New(color.FgYellow)
			for _, e := range entries {
				yellow.Printf("snapshot %s\n", object.CIDToString(e.CID))
				fmt.Printf("Author: %s\n", e.Snapshot.Author)
				fmt.Printf("Date:   %s\n", time.Unix(e.Snapshot.Timestamp, 0).UTC().Format(time.RFC3339))
				fmt.Printf("\n    %s\n\n", e.Snapshot.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "max snapshots to show (0 = all)")
	return cmd
}
