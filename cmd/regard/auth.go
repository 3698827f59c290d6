package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/regardlab/regard/internal/api"
	"github.com/regardlab/regard/internal/app"
)

var errNotSignedIn = errors.New("not signed in (run regard login)")

func (c *cli) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Sign in and keep the session for later runs",
		Long: `Sign in with a patient account. The password is read from the first
line of standard input. Without a username the last one used is taken.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(func(rt *app.Runtime) error {
				username := rt.Prefs.LastUsername
				if len(args) == 1 {
					username = args[0]
				}
				if username = strings.TrimSpace(username); username == "" {
					return errors.New("username is required")
				}
				password, err := c.readPassword()
				if err != nil {
					return err
				}
				if err := rt.Controller.Login(cmd.Context(), username, password); err != nil {
					return err
				}
				c.printf("Signed in as %s\n", username)
				return nil
			})
		},
	}
}

func (c *cli) registerCmd() *cobra.Command {
	var req api.RegisterRequest
	var age int
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create a patient account and sign in",
		Long:  `Create a patient account. The password is read from the first line of standard input.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Username = strings.TrimSpace(args[0])
			if strings.TrimSpace(req.Email) == "" {
				return errors.New("--email is required")
			}
			if age < 0 || age > 150 {
				return fmt.Errorf("--age %d is out of range", age)
			}
			if age > 0 {
				req.Age = &age
			}
			password, err := c.readPassword()
			if err != nil {
				return err
			}
			req.Password = password
			return c.withRuntime(func(rt *app.Runtime) error {
				if err := rt.Controller.Register(cmd.Context(), req); err != nil {
					return err
				}
				c.printf("Registered and signed in as %s\n", req.Username)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	cmd.Flags().IntVar(&age, "age", 0, "age in years (optional)")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session and the local state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(func(rt *app.Runtime) error {
				rt.Controller.Logout()
				c.printf("Signed out\n")
				return nil
			})
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(func(rt *app.Runtime) error {
				profile, err := rt.Client.GetPatient(cmd.Context())
				if err != nil {
					return err
				}
				c.printf("%s (%s)\n", profile.DisplayName(), profile.User.Username)
				if profile.User.Email != "" {
					c.printf("Email: %s\n", profile.User.Email)
				}
				if profile.Age != nil {
					c.printf("Age:   %d\n", *profile.Age)
				}
				c.printf("Tests: %d\n", profile.TestsCount)
				return nil
			})
		},
	}
}

// readPassword returns the first line of the command input.
func (c *cli) readPassword() (string, error) {
	line, err := bufio.NewReader(c.in).ReadString('\n')
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("password is required")
	}
	return password, nil
}
