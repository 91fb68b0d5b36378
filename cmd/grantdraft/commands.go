package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nainya/grantdraft/pkg/version"
)

var errNotFound = errors.New("not found")

func (a *app) saveCmd() *cobra.Command {
	var (
		rationale string
		file      string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Record a new version of a proposal",
		Long: `Record a proposal snapshot as the next version. The snapshot is a JSON
object read from --file, or from standard input when no file is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := a.readSnapshot(file)
			if err != nil {
				return err
			}

			store := a.openStore(nil)
			defer store.Close()

			start := time.Now()
			n, persistErr := store.Record(snapshot, rationale)
			a.log.LogStoreOperation("save", time.Since(start), n, persistErr)
			return a.printJSON(map[string]int{"version": n})
		},
	}

	cmd.Flags().StringVarP(&rationale, "rationale", "r", "", "Why this version was recorded")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the proposal from a JSON file instead of stdin")
	_ = cmd.MarkFlagRequired("rationale")

	return cmd
}

func (a *app) readSnapshot(file string) (version.Snapshot, error) {
	var (
		data []byte
		err  error
	)
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(a.in)
	}
	if err != nil {
		return nil, fmt.Errorf("read proposal: %w", err)
	}

	var snapshot version.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse proposal: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("parse proposal: expected a JSON object")
	}
	return snapshot, nil
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get N",
		Short: "Print version N",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseVersion(args[0])
			if err != nil {
				return err
			}

			store := a.openStore(nil)
			defer store.Close()

			entry, ok := store.Get(n)
			if !ok {
				return fmt.Errorf("version %d: %w", n, errNotFound)
			}
			return a.printJSON(entry)
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print every version, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.openStore(nil)
			defer store.Close()

			return a.printJSON(store.GetAll())
		},
	}
}

func (a *app) latestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Print the most recent version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.openStore(nil)
			defer store.Close()

			entry, ok := store.GetLatest()
			if !ok {
				return fmt.Errorf("no versions saved: %w", errNotFound)
			}
			return a.printJSON(entry)
		},
	}
}

func (a *app) compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare A B",
		Short: "Compare the metadata of two versions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v1, err := parseVersion(args[0])
			if err != nil {
				return err
			}
			v2, err := parseVersion(args[1])
			if err != nil {
				return err
			}

			store := a.openStore(nil)
			defer store.Close()

			cmp, ok := store.Compare(v1, v2)
			if !ok {
				return fmt.Errorf("versions %d and %d: %w", v1, v2, errNotFound)
			}
			return a.printJSON(cmp)
		},
	}
}

func parseVersion(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: must be a whole number", arg)
	}
	return n, nil
}
