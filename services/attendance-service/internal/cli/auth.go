package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/authgate"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func (a *app) newRegisterCmd() *cobra.Command {
	var name, identifier, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and start a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := a.password(cmd, password)
			if err != nil {
				return err
			}
			u, err := a.client().Register(cmd.Context(), name, identifier, pw)
			if err != nil {
				return fmt.Errorf("register failed: %w", err)
			}
			return a.startSession(cmd, u, "Registered")
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&identifier, "identifier", "", "Email or phone")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when empty)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}

func (a *app) newLoginCmd() *cobra.Command {
	var identifier, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := a.password(cmd, password)
			if err != nil {
				return err
			}
			u, err := a.client().Login(cmd.Context(), identifier, pw)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			return a.startSession(cmd, u, "Logged in")
		},
	}
	cmd.Flags().StringVar(&identifier, "identifier", "", "Email or phone")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when empty)")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}

func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			if err := s.End(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (a *app) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.currentUser(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), u)
		},
	}
}

func (a *app) newProfileCmd() *cobra.Command {
	var name, avatar string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Change display name or avatar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.currentUser(cmd)
			if err != nil {
				return err
			}
			if _, err := a.client().UpdateProfile(cmd.Context(), u.ID, name, avatar); err != nil {
				return fmt.Errorf("profile update failed: %w", err)
			}
			s, err := a.session()
			if err != nil {
				return err
			}
			updated, err := s.UpdateProfile(cmd.Context(), strings.TrimSpace(name), strings.TrimSpace(avatar))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), updated)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New display name")
	cmd.Flags().StringVar(&avatar, "avatar", "", "New avatar URL")
	return cmd
}

func (a *app) startSession(cmd *cobra.Command, u model.User, msg string) error {
	s, err := a.session()
	if err != nil {
		return err
	}
	if err := s.Start(cmd.Context(), u); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s as %s (%s)\n", msg, u.Name, u.Role)
	return nil
}

func (a *app) currentUser(cmd *cobra.Command) (model.User, error) {
	s, err := a.session()
	if err != nil {
		return model.User{}, err
	}
	u, err := s.Current(cmd.Context())
	if errors.Is(err, authgate.ErrNoSession) {
		return model.User{}, errors.New("not logged in, run `ecochurch login` first")
	}
	return u, err
}

// password returns the flag value, or reads one from the terminal or stdin.
func (a *app) password(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	fmt.Fprint(cmd.OutOrStdout(), "Password: ")
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		return string(pw), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
