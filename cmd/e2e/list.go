package main

import (
	"github.com/hairizuanbinnoorazman/security-e2e/orchestrator"
	"github.com/hairizuanbinnoorazman/security-e2e/scenarios"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var grep string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the cases of every suite",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			env := &scenarios.Env{
				Layout:   scenarios.DefaultLayout(),
				Auth:     cfg.App,
				Timeouts: cfg.Timeouts,
			}
			cases, err := orchestrator.Select(env.Cases(), grep)
			if err != nil {
				return err
			}

			if flagJSON {
				type caseView struct {
					ID      string `json:"id"`
					Title   string `json:"title"`
					Suite   string `json:"suite"`
					Role    string `json:"role,omitempty"`
					Summary string `json:"summary,omitempty"`
				}
				views := make([]caseView, 0, len(cases))
				for _, c := range cases {
					views = append(views, caseView{ID: c.ID(), Title: c.Title, Suite: c.Suite, Role: c.Role, Summary: c.Summary})
				}
				printJSON(views)
				return nil
			}

			rows := make([][]string, 0, len(cases))
			for _, c := range cases {
				role := c.Role
				if role == "" {
					role = "-"
				}
				rows = append(rows, []string{c.ID(), c.Suite, role, truncate(c.Title, 70)})
			}
			printTable([]string{"ID", "SUITE", "ROLE", "TITLE"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVarP(&grep, "grep", "g", "", "Only list cases whose title or suite matches this regexp")
	return cmd
}
