package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/appointment-api/internal/model"
	"github.com/jwalitptl/appointment-api/pkg/client"
)

type clientFactory func() (*client.Client, error)

type cli struct {
	connect clientFactory
	asJSON  bool
}

func newRootCmd(connect clientFactory) *cobra.Command {
	c := &cli{connect: connect}

	rootCmd := &cobra.Command{
		Use:          "clinicctl",
		Short:        "Book and manage clinic appointments",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVar(&c.asJSON, "json", false, "print raw JSON instead of tables")

	rootCmd.AddCommand(
		c.registerCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.doctorsCmd(),
		c.availabilityCmd(),
		c.slotsCmd(),
		c.bookCmd(),
		c.appointmentsCmd(),
		c.statusCmd(),
		c.archiveCmd(),
	)
	return rootCmd
}

func (c *cli) registerCmd() *cobra.Command {
	var req model.RegisterRequest
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a patient or doctor account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.connect()
			if err != nil {
				return err
			}
			req.Role = model.Role(role)
			user, err := cl.Register(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), user, func(w io.Writer) {
				fmt.Fprintf(w, "registered %s (%s) as %s\n", user.Email, user.ID, user.Role)
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(model.RolePatient), "patient or doctor")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.connect()
			if err != nil {
				return err
			}
			tokens, err := cl.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), tokens.User, func(w io.Writer) {
				fmt.Fprintf(w, "signed in as %s, session valid until %s\n", email, tokens.ExpiresAt.Local().Format("2006-01-02 15:04"))
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.connect()
			if err != nil {
				return err
			}
			if err := cl.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.connect()
			if err != nil {
				return err
			}
			user, err := cl.Me(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), user, func(w io.Writer) {
				fmt.Fprintf(w, "%s <%s> %s %s\n", user.Name, user.Email, user.Role, user.ID)
			})
		},
	}
}

func (c *cli) doctorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctors",
		Short: "List doctors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.connect()
			if err != nil {
				return err
			}
			doctors, err := cl.ListDoctors(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), doctors, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSPECIALIZATION")
				for _, d := range doctors {
					spec := ""
					if d.Specialization != nil {
						spec = *d.Specialization
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Name, spec)
				}
				tw.Flush()
			})
		},
	}
}

func (c *cli) availabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Read or replace a doctor's weekly schedule",
	}

	get := &cobra.Command{
		Use:   "get DOCTOR_ID",
		Short: "Show a doctor's weekly schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, err := parseID(args[0])
			if err != nil {
				return err
			}
			cl, err := c.connect()
			if err != nil {
				return err
			}
			entries, err := cl.GetAvailability(cmd.Context(), doctorID)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), entries, func(w io.Writer) { printAvailability(w, entries) })
		},
	}

	var windows []string
	set := &cobra.Command{
		Use:   "set DOCTOR_ID",
		Short: "Replace a doctor's weekly schedule",
		Example: "  clinicctl availability set 7f1c6a8e-7d0b-4b55-9d55-3f0f3a0f9a11 " +
			"--window monday=08:00-12:00 --window wednesday=13:00-17:00",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, err := parseID(args[0])
			if err != nil {
				return err
			}
			entries, err := parseWindows(windows)
			if err != nil {
				return err
			}
			cl, err := c.connect()
			if err != nil {
				return err
			}
			stored, err := cl.SetAvailability(cmd.Context(), doctorID, entries)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), stored, func(w io.Writer) { printAvailability(w, stored) })
		},
	}
	set.Flags().StringArrayVar(&windows, "window", nil, "weekday=HH:MM-HH:MM, repeatable; omit to clear the schedule")

	cmd.AddCommand(get, set)
	return cmd
}

func (c *cli) slotsCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "slots DOCTOR_ID",
		Short: "List open slots for a doctor on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, err := parseID(args[0])
			if err != nil {
				return err
			}
			day, err := model.ParseDate(date)
			if err != nil {
				return err
			}
			cl, err := c.connect()
			if err != nil {
				return err
			}
			list, err := cl.Slots(cmd.Context(), doctorID, day)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), list, func(w io.Writer) {
				if len(list.Slots) == 0 {
					fmt.Fprintf(w, "no open slots on %s (%s)\n", list.Date, list.Day)
					return
				}
				times := make([]string, 0, len(list.Slots))
				for _, s := range list.Slots {
					times = append(times, s.String())
				}
				fmt.Fprintf(w, "%s (%s): %s\n", list.Date, list.Day, strings.Join(times, " "))
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func (c *cli) bookCmd() *cobra.Command {
	var req model.CreateAppointmentRequest
	var notes string
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an open slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if notes != "" {
				req.Notes = &notes
			}
			cl, err := c.connect()
			if err != nil {
				return err
			}
			apt, err := cl.Book(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), apt, func(w io.Writer) {
				fmt.Fprintf(w, "booked %s on %s at %s (%s)\n", apt.ID, apt.Date, apt.Time, apt.Status)
			})
		},
	}
	cmd.Flags().StringVar(&req.DoctorID, "doctor", "", "doctor ID")
	cmd.Flags().StringVar(&req.PatientID, "patient", "", "patient ID, required when a doctor books")
	cmd.Flags().StringVar(&req.Date, "date", "", "date as YYYY-MM-DD")
	cmd.Flags().StringVar(&req.Time, "time", "", "slot start as HH:MM")
	cmd.Flags().StringVar(&req.Reason, "reason", "", "reason for the visit")
	cmd.Flags().StringVar(&notes, "notes", "", "optional notes")
	for _, f := range []string{"doctor", "date", "time", "reason"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (c *cli) appointmentsCmd() *cobra.Command {
	var doctor, patient, from, to string
	var archived bool
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "List appointments visible to the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := client.ListOptions{Archived: archived}
			var err error
			if opts.DoctorID, err = optionalID(doctor); err != nil {
				return err
			}
			if opts.PatientID, err = optionalID(patient); err != nil {
				return err
			}
			if from != "" {
				if opts.From, err = model.ParseDate(from); err != nil {
					return err
				}
			}
			if to != "" {
				if opts.To, err = model.ParseDate(to); err != nil {
					return err
				}
			}

			cl, err := c.connect()
			if err != nil {
				return err
			}
			list, err := cl.ListAppointments(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), list, func(w io.Writer) { printAppointments(w, list) })
		},
	}
	cmd.Flags().StringVar(&doctor, "doctor", "", "filter by doctor ID")
	cmd.Flags().StringVar(&patient, "patient", "", "filter by patient ID")
	cmd.Flags().StringVar(&from, "from", "", "earliest date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "latest date, YYYY-MM-DD")
	cmd.Flags().BoolVar(&archived, "archived", false, "include archived appointments")
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status APPOINTMENT_ID STATUS",
		Short: "Move an appointment to a new status",
		Long: "Move an appointment to a new status. Allowed moves: pending to confirmed or cancelled, " +
			"confirmed to completed, no-show or cancelled.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			status := model.AppointmentStatus(args[1])
			if !status.Valid() {
				return fmt.Errorf("unknown status %q", args[1])
			}
			cl, err := c.connect()
			if err != nil {
				return err
			}
			apt, err := cl.UpdateStatus(cmd.Context(), id, status)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), apt, func(w io.Writer) {
				fmt.Fprintf(w, "%s is now %s\n", apt.ID, apt.Status)
			})
		},
	}
}

func (c *cli) archiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive APPOINTMENT_ID",
		Short: "Archive a finished appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cl, err := c.connect()
			if err != nil {
				return err
			}
			apt, err := cl.Archive(cmd.Context(), id)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), apt, func(w io.Writer) {
				fmt.Fprintf(w, "%s archived\n", apt.ID)
			})
		},
	}
}

func (c *cli) print(w io.Writer, v interface{}, table func(io.Writer)) error {
	if c.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	table(w)
	return nil
}

func printAvailability(w io.Writer, entries []*model.Availability) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no availability set")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tFROM\tTO")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Day, e.StartTime, e.EndTime)
	}
	tw.Flush()
}

func printAppointments(w io.Writer, list []*model.Appointment) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no appointments")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tSTATUS\tDOCTOR\tPATIENT")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Date, a.Time, a.Status, refLabel(a.Doctor), refLabel(a.Patient))
	}
	tw.Flush()
}

func refLabel(r model.UserRef) string {
	if s, ok := r.Snapshot(); ok && s.Name != "" {
		return s.Name
	}
	return r.ID()
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func optionalID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return parseID(s)
}

// parseWindows turns "monday=08:00-12:00" flags into availability entries.
func parseWindows(windows []string) ([]model.AvailabilityInput, error) {
	entries := make([]model.AvailabilityInput, 0, len(windows))
	for _, w := range windows {
		day, span, ok := strings.Cut(w, "=")
		if !ok {
			return nil, fmt.Errorf("window %q: want weekday=HH:MM-HH:MM", w)
		}
		start, end, ok := strings.Cut(span, "-")
		if !ok {
			return nil, fmt.Errorf("window %q: want weekday=HH:MM-HH:MM", w)
		}
		entries = append(entries, model.AvailabilityInput{
			Day:       strings.ToLower(strings.TrimSpace(day)),
			StartTime: strings.TrimSpace(start),
			EndTime:   strings.TrimSpace(end),
		})
	}
	return entries, nil
}
