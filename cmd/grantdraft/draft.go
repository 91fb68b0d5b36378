package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nainya/grantdraft/pkg/session"
)

func (a *app) draftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Edit the proposal, recording each edit as a new version",
		Long: `Each draft subcommand starts from the latest recorded version, applies one
edit and records the result with the matching rationale.`,
	}

	cmd.AddCommand(
		a.draftDetailsCmd(),
		a.draftOutlineCmd(),
		a.draftBudgetCmd(),
		a.draftFeedbackCmd(),
		a.draftShowCmd(),
	)
	return cmd
}

// withSession resumes a session from the latest version and runs fn on it
func (a *app) withSession(fn func(*session.Session) (int, error)) error {
	store := a.openStore(nil)
	defer store.Close()

	sess := session.New(store, nil)
	if n := store.Len(); n > 0 {
		if err := sess.Restore(n); err != nil {
			return err
		}
	}

	n, err := fn(sess)
	if err != nil {
		return err
	}
	a.log.WithFields(map[string]interface{}{"session": sess.ID.String()}).
		Debug("draft version recorded").
		Int("version", n).
		Send()
	return a.printJSON(map[string]int{"version": n})
}

func (a *app) draftDetailsCmd() *cobra.Command {
	var topic, goals, agency string

	cmd := &cobra.Command{
		Use:   "details",
		Short: "Set the project topic, goals and funding agency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(func(s *session.Session) (int, error) {
				if !cmd.Flags().Changed("agency") {
					agency = s.Current.FundingAgency
				}
				return s.UpdateDetails(topic, goals, agency), nil
			})
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Project topic")
	cmd.Flags().StringVar(&goals, "goals", "", "Project goals")
	cmd.Flags().StringVar(&agency, "agency", "", "Funding agency")
	_ = cmd.MarkFlagRequired("topic")
	_ = cmd.MarkFlagRequired("goals")
	return cmd
}

func (a *app) draftOutlineCmd() *cobra.Command {
	var (
		text string
		file string
		edit bool
	)

	cmd := &cobra.Command{
		Use:   "outline",
		Short: "Set the outline from --text, --file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outline, err := a.readText(text, file)
			if err != nil {
				return err
			}
			return a.withSession(func(s *session.Session) (int, error) {
				if edit {
					return s.EditOutline(outline)
				}
				return s.SetOutline(outline)
			})
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Outline text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the outline from a file")
	cmd.Flags().BoolVar(&edit, "edit", false, "Record as a hand edit of an existing outline")
	return cmd
}

func (a *app) draftBudgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "budget CATEGORY=AMOUNT...",
		Short: "Set the budget estimate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			budget, err := parseBudget(args)
			if err != nil {
				return err
			}
			return a.withSession(func(s *session.Session) (int, error) {
				return s.SetBudget(budget)
			})
		},
	}
}

func (a *app) draftFeedbackCmd() *cobra.Command {
	var text, file string

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Set reviewer feedback from --text, --file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			feedback, err := a.readText(text, file)
			if err != nil {
				return err
			}
			return a.withSession(func(s *session.Session) (int, error) {
				return s.SetFeedback(feedback)
			})
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Feedback text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the feedback from a file")
	return cmd
}

func (a *app) draftShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current proposal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.openStore(nil)
			defer store.Close()

			sess := session.New(store, nil)
			if n := store.Len(); n > 0 {
				if err := sess.Restore(n); err != nil {
					return err
				}
			}
			return a.printJSON(sess.Current)
		},
	}
}

func (a *app) readText(text, file string) (string, error) {
	if text != "" {
		return text, nil
	}
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
		return "", fmt.Errorf("read text: %w", err)
	}
	out := strings.TrimSpace(string(data))
	if out == "" {
		return "", fmt.Errorf("read text: input is empty")
	}
	return out, nil
}

func parseBudget(args []string) (map[string]float64, error) {
	budget := make(map[string]float64, len(args))
	for _, arg := range args {
		category, amount, ok := strings.Cut(arg, "=")
		if !ok || category == "" {
			return nil, fmt.Errorf("invalid budget item %q: want CATEGORY=AMOUNT", arg)
		}
		v, err := strconv.ParseFloat(amount, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid amount for %q: %q", category, amount)
		}
		budget[category] = v
	}
	return budget, nil
}
