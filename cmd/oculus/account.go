package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	domainauth "github.com/oculus-oct/oculus-go/internal/domain/auth"
)

func newLoginCmd(c *cli) *cobra.Command {
	var (
		creds         domainauth.Credentials
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Example: `  oculus login --username doc1 --password-stdin < pw.txt
  oculus login -u doc1 -p secret --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passwordStdin {
				pw, err := readLine(c.in)
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				creds.Password = pw
			}
			id, err := c.app.Sessions.Login(cmd.Context(), creds)
			if err != nil {
				return err
			}
			return c.printIdentity(id, "Logged in as %s.")
		},
	}
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newSignupCmd(c *cli) *cobra.Command {
	var (
		reg           domainauth.Registration
		picture       string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a doctor account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if passwordStdin {
				pw, err := readLine(c.in)
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				reg.Password = pw
			}
			if picture != "" {
				pic, closeFn, err := openPicture(picture)
				if err != nil {
					return err
				}
				defer closeFn()
				reg.ProfilePicture = pic
			}
			id, err := c.app.Sessions.Signup(cmd.Context(), reg)
			if err != nil {
				return err
			}
			return c.printIdentity(id, "Account created, logged in as %s.")
		},
	}
	f := cmd.Flags()
	f.StringVarP(&reg.Username, "username", "u", "", "account username")
	f.StringVarP(&reg.Password, "password", "p", "", "account password")
	f.BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	f.StringVar(&reg.Email, "email", "", "email address")
	f.StringVar(&reg.FirstName, "first-name", "", "first name")
	f.StringVar(&reg.LastName, "last-name", "", "last name")
	f.StringVar(&reg.Hospital, "hospital", "", "hospital")
	f.StringVar(&reg.Specialty, "specialty", "", "specialty")
	f.StringVar(&reg.Role, "role", "", "role")
	f.StringVar(&reg.LicenseNumber, "license-number", "", "medical license number")
	f.StringVar(&reg.PhoneNumber, "phone", "", "phone number")
	f.StringVar(&picture, "picture", "", "profile picture file")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.app.Sessions.Logout(cmd.Context())
			c.printer().message("Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in doctor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			if refresh {
				id, err := c.app.Sessions.RefreshIdentity(cmd.Context())
				if err != nil {
					return err
				}
				return c.printIdentity(id, "")
			}
			return c.printIdentity(*c.app.Sessions.Identity(), "")
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the profile from the server")
	return cmd
}

type statusView struct {
	State          domainauth.AuthState `json:"state"`
	Backend        string               `json:"backend"`
	APIBaseURL     string               `json:"api_base_url"`
	User           *domainauth.Identity `json:"user,omitempty"`
	AccessExpires  *time.Time           `json:"access_expires_at,omitempty"`
	RefreshExpires *time.Time           `json:"refresh_expires_at,omitempty"`
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state and credential expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap := c.app.Sessions.Snapshot()
			view := statusView{
				State:      snap.State,
				Backend:    string(c.app.Config.Session.Backend),
				APIBaseURL: c.app.Config.API.BaseURL,
				User:       snap.Identity,
			}
			sess, err := c.app.Store.Get(cmd.Context())
			if err == nil {
				if exp, ok := c.app.Subjects.ExpiresAt(sess.AccessToken); ok {
					view.AccessExpires = &exp
				}
				if exp, ok := c.app.Subjects.ExpiresAt(sess.RefreshToken); ok {
					view.RefreshExpires = &exp
				}
			}
			return c.printer().emit(view, func(w io.Writer) {
				row(w, "STATE", string(view.State))
				row(w, "BACKEND", view.Backend)
				row(w, "API", view.APIBaseURL)
				if view.User != nil {
					row(w, "USER", view.User.DisplayName()+" ("+view.User.ID.String()+")")
				}
				if view.AccessExpires != nil {
					row(w, "ACCESS EXPIRES", formatTime(*view.AccessExpires))
				}
				if view.RefreshExpires != nil {
					row(w, "REFRESH EXPIRES", formatTime(*view.RefreshExpires))
				}
			})
		},
	}
}

func newProfileCmd(c *cli) *cobra.Command {
	profile := &cobra.Command{
		Use:   "profile",
		Short: "Manage the doctor profile",
	}

	var picture string
	update := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields; only the flags given are sent",
		Example: `  oculus profile update --hospital "St Mary" --specialty Retina
  oculus profile update --phone ""`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireSession(); err != nil {
				return err
			}
			upd := profileUpdateFromFlags(cmd)
			if picture != "" {
				pic, closeFn, err := openPicture(picture)
				if err != nil {
					return err
				}
				defer closeFn()
				upd.ProfilePicture = pic
			}
			id, err := c.app.Sessions.UpdateProfile(cmd.Context(), upd)
			if err != nil {
				return err
			}
			return c.printIdentity(id, "Profile updated for %s.")
		},
	}
	f := update.Flags()
	for _, name := range profileFlags {
		f.String(name.flag, "", name.help)
	}
	f.StringVar(&picture, "picture", "", "profile picture file")

	profile.AddCommand(update)
	return profile
}

var profileFlags = []struct{ flag, help string }{
	{"first-name", "first name"},
	{"last-name", "last name"},
	{"email", "email address"},
	{"hospital", "hospital"},
	{"specialty", "specialty"},
	{"role", "role"},
	{"license-number", "medical license number"},
	{"phone", "phone number"},
}

// profileUpdateFromFlags sets a field only when its flag was given, so an explicit
// empty value blanks the field.
func profileUpdateFromFlags(cmd *cobra.Command) domainauth.ProfileUpdate {
	changed := func(name string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetString(name)
		return &v
	}
	return domainauth.ProfileUpdate{
		FirstName:     changed("first-name"),
		LastName:      changed("last-name"),
		Email:         changed("email"),
		Hospital:      changed("hospital"),
		Specialty:     changed("specialty"),
		Role:          changed("role"),
		LicenseNumber: changed("license-number"),
		PhoneNumber:   changed("phone"),
	}
}

func (c *cli) printIdentity(id domainauth.Identity, headline string) error {
	p := c.printer()
	if headline != "" {
		p.message(headline, id.DisplayName())
	}
	return p.emit(id, func(w io.Writer) {
		row(w, "ID", id.ID.String())
		row(w, "USERNAME", orDash(id.Username))
		row(w, "NAME", orDash(id.FirstName+" "+id.LastName))
		row(w, "EMAIL", orDash(id.Email))
		row(w, "HOSPITAL", orDash(id.Hospital))
		row(w, "SPECIALTY", orDash(id.Specialty))
		row(w, "ROLE", orDash(id.Role))
		row(w, "LICENSE", orDash(id.LicenseNumber))
		row(w, "PHONE", orDash(id.PhoneNumber.String()))
	})
}

func openPicture(path string) (*domainauth.Picture, func(), error) {
	f, err := os.Open(path) //nolint:gosec // path is supplied by the user on the command line
	if err != nil {
		return nil, nil, fmt.Errorf("open picture: %w", err)
	}
	return &domainauth.Picture{Filename: filepath.Base(path), Content: f}, func() { _ = f.Close() }, nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
