package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"git.sr.ht/~jakintosh/authclient/pkg/session"
	"git.sr.ht/~jakintosh/authclient/pkg/tokens"
)

func newSignInCommand() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		Long: `Sign in and store the session tokens.

The password is read without echo from the terminal, or as the first line
of standard input when it is not a terminal.

Examples:
  authclient signin --email alice@example.com
  echo "$PASSWORD" | authclient signin --email alice@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.ErrOrStderr()

			if email == "" {
				fmt.Fprint(out, "Email: ")
				line, err := readLine(in)
				if err != nil {
					return fmt.Errorf("failed to read email: %w", err)
				}
				email = line
			}
			password, err := readPassword(cmd, in)
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			user, err := cliCtx.Session.SignIn(cmd.Context(), session.Credentials{
				Email:    email,
				Password: password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}

func newSignOutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getCliContext(cmd).Session.SignOut(cmd.Context())
		},
	}
}

func newWhoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := getCliContext(cmd).Session.Restore(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Email:       %s\n", user.Email)
			fmt.Fprintf(out, "Roles:       %s\n", strings.Join(user.Roles, ", "))
			fmt.Fprintf(out, "Permissions: %s\n", strings.Join(user.Permissions, ", "))
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored tokens without contacting the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)
			out := cmd.OutOrStdout()

			pair, err := cliCtx.Store.Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "API:     %s\n", cliCtx.Config.BaseURL)
			fmt.Fprintf(out, "Store:   %s\n", cliCtx.Config.Store.Kind)
			if pair.Empty() {
				fmt.Fprintln(out, "Status:  signed out")
				return nil
			}
			fmt.Fprintln(out, "Status:  signed in")
			fmt.Fprintf(out, "Access:  %s\n", tokens.Prefix(pair.Access))
			fmt.Fprintf(out, "Refresh: %s\n", tokens.Prefix(pair.Refresh))

			// opaque tokens carry nothing more to show
			token := new(tokens.AccessToken)
			if err := token.Decode(pair.Access); err != nil {
				return nil
			}
			fmt.Fprintf(out, "Subject: %s\n", token.Subject())
			fmt.Fprintf(out, "Issuer:  %s\n", token.Issuer())
			if exp := token.Expiration(); !exp.IsZero() {
				if token.Expired(time.Now()) {
					fmt.Fprintf(out, "Expires: expired %s ago (refreshes on next request)\n", time.Since(exp).Round(time.Second))
				} else {
					fmt.Fprintf(out, "Expires: in %s\n", time.Until(exp).Round(time.Second))
				}
			}
			return nil
		},
	}
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword reads without echo from a terminal, or a plain line otherwise.
func readPassword(cmd *cobra.Command, in *bufio.Reader) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return string(password), nil
	}
	return readLine(in)
}
