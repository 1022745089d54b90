package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/session"
	"github.com/scrtlabs/secretvm-cli/internal/domain"
)

// Login methods reported in the login result.
const (
	loginMethodBrowser = "browser"
	loginMethodWallet  = "wallet"
)

var errNoSessionIssued = errors.New("wallet login failed: the server did not issue a session")

type loginResult struct {
	Method      string `json:"method"`
	SessionFile string `json:"sessionFile"`
}

type messageResult struct {
	Message string `json:"message"`
}

// newAuthCmd creates the auth command group.
func newAuthCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage portal authentication",
		Long:  `Commands for signing in to the portal, signing out and storing an API key.`,
	}

	cmd.AddCommand(newAuthLoginCmd(a))
	cmd.AddCommand(newAuthLogoutCmd(a))
	cmd.AddCommand(newAuthAPIKeyCmd(a))

	return cmd
}

// newAuthLoginCmd creates the login command.
func newAuthLoginCmd(a *App) *cobra.Command {
	var wallet string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the portal",
		Long: `Log in to the portal and save the session for later commands.

By default the sign-in page opens in your browser, which requires -i.
With --wallet the session is obtained from a wallet address instead and
works in scripted mode too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), a, func(ctx context.Context) (*loginResult, error) {
				if strings.TrimSpace(wallet) != "" {
					return a.loginWithWallet(ctx, strings.TrimSpace(wallet))
				}
				return a.loginWithBrowser(ctx)
			}, func(w io.Writer, _ *loginResult) {
				cliWriteLine(w, cliRenderSuccess("Login successful! Your session has been saved."))
			})
		},
	}

	cmd.Flags().StringVarP(&wallet, "wallet", "w", "", "Log in with this wallet address instead of the browser")

	return cmd
}

func (a *App) loginWithBrowser(ctx context.Context) (*loginResult, error) {
	if !a.opts.Interactive {
		return nil, domain.ErrInteractiveRequired
	}

	a.progress("Opening your browser to complete login...")
	result, err := a.browser.Wait(ctx, a.factory.BaseURL())
	if err != nil {
		return nil, err
	}

	cookie, err := result.Cookie(a.factory.BaseURL())
	if err != nil {
		return nil, err
	}
	a.log.Info("session token received from browser", "cookie", cookie.Name)

	sess := session.New()
	sess.Put(cookie)
	return a.saveSession(sess, loginMethodBrowser), nil
}

func (a *App) loginWithWallet(ctx context.Context, address string) (*loginResult, error) {
	client := a.factory.LoginClient()

	a.progress("Signing in with wallet %s...", address)
	if _, err := client.LoginWithWallet(ctx, address); err != nil {
		return nil, fmt.Errorf("wallet login failed: %w", err)
	}
	if client.Session().Len() == 0 {
		return nil, errNoSessionIssued
	}

	return a.saveSession(client.Session(), loginMethodWallet), nil
}

func (a *App) saveSession(sess *session.Session, method string) *loginResult {
	store := a.factory.Store()
	store.Save(sess)
	return &loginResult{Method: method, SessionFile: store.Path()}
}

// newAuthLogoutCmd creates the logout command.
func newAuthLogoutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), a, func(context.Context) (*messageResult, error) {
				a.factory.Store().Clear()
				return &messageResult{Message: "Logged out"}, nil
			}, func(w io.Writer, _ *messageResult) {
				cliWriteLine(w, cliRenderSuccess("Logged out. Your session has been cleared."))
			})
		},
	}
}

// newAuthAPIKeyCmd creates the api-key subcommand group.
func newAuthAPIKeyCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api-key",
		Short: "Store or remove the API key in the OS keyring",
		Long: `Commands for the API key kept in the OS keyring.

A stored key is used when neither --api-key nor $SECRETVM_API_KEY is set.
Requests made with an API key do not send the saved session.`,
	}

	cmd.AddCommand(newAPIKeySetCmd(a))
	cmd.AddCommand(newAPIKeyClearCmd(a))

	return cmd
}

func newAPIKeySetCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set [key]",
		Short: "Store an API key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), a, func(context.Context) (*messageResult, error) {
				var key string
				if len(args) > 0 {
					key = strings.TrimSpace(args[0])
				}
				if key == "" {
					if !a.opts.Interactive {
						return nil, &domain.MissingOptionError{Flag: "<key>"}
					}
					answer, err := a.prompter.Password("Enter your API key:")
					if err != nil {
						return nil, err
					}
					key = strings.TrimSpace(answer)
				}
				if err := a.keys.Set(key); err != nil {
					return nil, err
				}
				return &messageResult{Message: "API key stored"}, nil
			}, func(w io.Writer, _ *messageResult) {
				cliWriteLine(w, cliRenderSuccess("API key stored in the OS keyring."))
			})
		},
	}
}

func newAPIKeyClearCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), a, func(context.Context) (*messageResult, error) {
				if err := a.keys.Delete(); err != nil {
					return nil, err
				}
				return &messageResult{Message: "API key removed"}, nil
			}, func(w io.Writer, _ *messageResult) {
				cliWriteLine(w, cliRenderSuccess("API key removed from the OS keyring."))
			})
		},
	}
}

// newStatusCmd creates the top-level status command.
func newStatusCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the current login status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), a, func(ctx context.Context) (*domain.AuthSession, error) {
				sess, err := a.client().GetSession(ctx)
				if err != nil {
					return nil, err
				}
				if sess.User == nil {
					return nil, domain.ErrNotLoggedIn
				}
				if sess.User.Sub == "" {
					return nil, domain.ErrSessionUnknown
				}
				return sess, nil
			}, func(w io.Writer, sess *domain.AuthSession) {
				cliWriteLine(w, cliRenderSuccess("You are logged in as: "+sess.Identity()))
				expires := sess.Expires
				if expires == "" {
					expires = notAvailable
				}
				cliWriteLine(w, cliRenderMeta("Session expires:", expires))
			})
		},
	}
}
