package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/grandstand/pitradio/internal/session"
	"github.com/grandstand/pitradio/internal/store"
)

func newSessionsCmd() *cobra.Command {
	var (
		configPath string
		year       int
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List known sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var yearFilter *int
			if cmd.Flags().Changed("year") {
				yearFilter = &year
			}
			return runSessions(cmd, configPath, yearFilter)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().IntVar(&year, "year", 0, "only sessions from this year")
	return cmd
}

func runSessions(cmd *cobra.Command, configPath string, year *int) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	sessions, err := session.NewRegistry(gormDB).List(year)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found")
		return nil
	}

	st := store.New(gormDB)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tEVENT\tTYPE\tSTART\tEND\tMESSAGES")
	for _, s := range sessions {
		count, err := st.CountBySession(s.SessionID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			s.SessionID, s.EventName, s.SessionType,
			s.StartTime.Format("2006-01-02 15:04"),
			s.EndTime.Format("2006-01-02 15:04"),
			count)
	}
	w.Flush()
	return nil
}
