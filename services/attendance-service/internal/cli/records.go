package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/client"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"github.com/spf13/cobra"
)

func (a *app) newListCmd() *cobra.Command {
	var q client.HistoryQuery
	var status string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q.Status = model.Status(status)
			c := a.client()
			if u, err := a.currentUser(cmd); err == nil {
				c = c.As(u)
			}
			apps, err := c.History(cmd.Context(), q)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), apps)
			}
			return printTable(cmd.OutOrStdout(), apps)
		},
	}
	cmd.Flags().StringVar(&q.Church, "church", "", "Only this church")
	cmd.Flags().StringVar(&q.Text, "q", "", "Search name, phone or neighborhood")
	cmd.Flags().StringVar(&status, "status", "", "pending or completed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) newAddCmd() *cobra.Command {
	var f model.AppointmentFields
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a visitor appointment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.currentUser(cmd)
			if err != nil {
				return err
			}
			created, err := a.client().As(u).Create(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Name, "name", "", "Visitor name")
	cmd.Flags().StringVar(&f.Phone, "phone", "", "Visitor phone")
	cmd.Flags().StringVar(&f.Neighborhood, "neighborhood", "", "Neighborhood")
	cmd.Flags().StringVar(&f.Date, "date", "", "Day label (DOMINGO...) or YYYY-MM-DD")
	cmd.Flags().StringVar(&f.Time, "time", "", "Service time, e.g. \"10:00 AM\"")
	cmd.Flags().StringVar(&f.Church, "church", "", "Church name")
	cmd.Flags().StringVar(&f.Notes, "notes", "", "Notes")
	for _, name := range []string{"name", "phone", "date", "time", "church"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) newEditCmd() *cobra.Command {
	var f model.AppointmentFields
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p model.AppointmentPatch
			set := func(flag string, dst **string, v *string) {
				if cmd.Flags().Changed(flag) {
					*dst = v
				}
			}
			set("name", &p.Name, &f.Name)
			set("phone", &p.Phone, &f.Phone)
			set("neighborhood", &p.Neighborhood, &f.Neighborhood)
			set("date", &p.Date, &f.Date)
			set("time", &p.Time, &f.Time)
			set("church", &p.Church, &f.Church)
			set("notes", &p.Notes, &f.Notes)
			if p == (model.AppointmentPatch{}) {
				return errors.New("nothing to change")
			}
			updated, err := a.client().Update(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", updated.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Name, "name", "", "Visitor name")
	cmd.Flags().StringVar(&f.Phone, "phone", "", "Visitor phone")
	cmd.Flags().StringVar(&f.Neighborhood, "neighborhood", "", "Neighborhood")
	cmd.Flags().StringVar(&f.Date, "date", "", "Day label (DOMINGO...) or YYYY-MM-DD")
	cmd.Flags().StringVar(&f.Time, "time", "", "Service time, e.g. \"10:00 AM\"")
	cmd.Flags().StringVar(&f.Church, "church", "", "Church name")
	cmd.Flags().StringVar(&f.Notes, "notes", "", "Notes")
	return cmd
}

func (a *app) newCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark an appointment as attended",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			done, err := a.client().Complete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", done.ID, done.Status)
			return nil
		},
	}
}

func (a *app) newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print or save the backup blob",
		RunE: func(cmd *cobra.Command, _ []string) error {
			blob, err := a.client().Export(cmd.Context())
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), blob)
				return nil
			}
			return os.WriteFile(out, []byte(blob+"\n"), 0o600)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write the blob to this file")
	return cmd
}

func (a *app) newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace all appointments with a backup blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			n, err := a.client().Import(cmd.Context(), strings.TrimSpace(string(raw)))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d appointments\n", n)
			return nil
		},
	}
}

func printTable(w io.Writer, apps []model.Appointment) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPHONE\tCHURCH\tDATE\tTIME\tSTATUS\tOWNER")
	for _, a := range apps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Phone, a.Church, a.Date, a.Time, a.Status, a.UserName)
	}
	return tw.Flush()
}
