package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/scrtlabs/secretvm-cli/internal/adapters/in/cli/ui/styles"
	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/apiclient"
	"github.com/scrtlabs/secretvm-cli/internal/compose"
	"github.com/scrtlabs/secretvm-cli/internal/domain"
)

var errUnreadableFile = errors.New("file does not exist or is not readable")

// vmResult is the create and launch response plus, when TLS was enabled,
// the generated proxy dashboard login.
type vmResult struct {
	*domain.VMInstance
	TLSDashboard *compose.DashboardCredential `json:"tlsDashboard,omitempty"`
}

// vmFlags are the options shared by create and edit.
type vmFlags struct {
	name        string
	vmType      string
	composePath string
	inviteCode  string
	envPath     string
	credentials string
	registry    string
	tls         bool
	persistence bool
}

// vmInput is everything needed to build the multipart form. secrets holds
// text collected from the editor when no env file was given.
type vmInput struct {
	vmFlags
	secrets string
}

func (f *vmFlags) bindShared(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.envPath, "env", "e", "", "Path to an env file with secrets (VAR=VALUE lines)")
	flags.BoolVarP(&f.tls, "tls", "s", false, "Enable HTTPS by adding a Traefik TLS proxy to the compose file")
	flags.BoolVarP(&f.persistence, "persistence", "p", false, "Enable filesystem persistence")
	flags.StringVarP(&f.credentials, "docker-credentials", "l", "", "Credentials for a private docker registry (username:password)")
	flags.StringVarP(&f.registry, "docker-registry", "r", "", "Docker registry hosting your private image (default docker.io)")
}

func newVMCreateCmd(a *App) *cobra.Command {
	var f vmFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a virtual machine",
		Long: `Create a virtual machine from a docker-compose file.

Name, type and compose file are required. In interactive mode missing
values are prompted for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := vmInput{vmFlags: f}
			in.registry = a.registryFlag(cmd, f.registry)
			return run(cmd.Context(), a, func(ctx context.Context) (*vmResult, error) {
				return a.createVM(ctx, in)
			}, func(w io.Writer, res *vmResult) {
				renderVMResult(w, "VM creation process initiated successfully!", res)
			})
		},
	}

	cmd.Flags().StringVarP(&f.name, "name", "n", "", "VM name")
	cmd.Flags().StringVarP(&f.vmType, "type", "t", "", "VM type (small, medium, large)")
	cmd.Flags().StringVarP(&f.composePath, "docker-compose", "d", "", "Path to docker-compose.yaml")
	cmd.Flags().StringVarP(&f.inviteCode, "invite-code", "c", "", "Invite code (optional)")
	f.bindShared(cmd)

	return cmd
}

func newVMEditCmd(a *App) *cobra.Command {
	var f vmFlags

	cmd := &cobra.Command{
		Use:   "edit [vm-id]",
		Short: "Relaunch a virtual machine with a new configuration",
		Long: `Stop a virtual machine and relaunch it with a new name, compose file,
secrets or registry credentials. Options left out keep their current value.

In interactive mode every question is asked before the VM is stopped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := vmInput{vmFlags: f}
			in.registry = a.registryFlag(cmd, f.registry)
			persistenceSet := cmd.Flags().Changed("persistence")
			return run(cmd.Context(), a, func(ctx context.Context) (*vmResult, error) {
				id, err := a.vmID(args)
				if err != nil {
					return nil, err
				}
				return a.editVM(ctx, id, in, persistenceSet)
			}, func(w io.Writer, res *vmResult) {
				renderVMResult(w, "VM update process initiated successfully!", res)
			})
		},
	}

	cmd.Flags().StringVarP(&f.name, "name", "n", "", "New VM name")
	cmd.Flags().StringVarP(&f.composePath, "docker-compose", "d", "", "Path to the new docker-compose.yaml")
	f.bindShared(cmd)

	return cmd
}

// registryFlag returns the -r value, or the configured default when the
// flag was not given. An explicit empty value is kept so it can be rejected.
func (a *App) registryFlag(cmd *cobra.Command, value string) string {
	if cmd.Flags().Changed("docker-registry") {
		return value
	}
	return a.defaultRegistry
}

func (a *App) createVM(ctx context.Context, in vmInput) (*vmResult, error) {
	if a.opts.Interactive {
		if err := a.promptCreate(&in); err != nil {
			return nil, err
		}
	}

	for _, required := range []struct{ value, flag string }{
		{in.name, "-n, --name"},
		{in.vmType, "-t, --type"},
		{in.composePath, "-d, --docker-compose"},
	} {
		if strings.TrimSpace(required.value) == "" {
			return nil, &domain.MissingOptionError{Flag: required.flag}
		}
	}

	form, cred, err := a.buildForm(in)
	if err != nil {
		return nil, err
	}

	a.progress("Sending VM creation request...")
	vm, err := a.client().CreateVM(ctx, form)
	if err != nil {
		return nil, err
	}
	return &vmResult{VMInstance: vm, TLSDashboard: cred}, nil
}

func (a *App) promptCreate(in *vmInput) error {
	var err error
	if strings.TrimSpace(in.name) == "" {
		if in.name, err = a.prompter.Input("Enter a name for your VM:", notEmpty("VM name")); err != nil {
			return err
		}
	}
	if strings.TrimSpace(in.vmType) == "" {
		if in.vmType, err = a.prompter.Input("Enter the VM Type ID (small, medium, large):", notEmpty("VM Type ID")); err != nil {
			return err
		}
	}
	if strings.TrimSpace(in.composePath) == "" {
		if in.composePath, err = a.prompter.Input("Enter the path to your docker-compose.yml or similar config file:", readableFile(false)); err != nil {
			return err
		}
	}
	if strings.TrimSpace(in.inviteCode) == "" {
		if in.inviteCode, err = a.prompter.Input("Enter invite code (optional, press Enter if not needed):", nil); err != nil {
			return err
		}
	}
	return nil
}

// editVM collects and validates the new configuration, then stops the VM,
// waits and relaunches it. Nothing is sent until the form is complete, so a
// cancelled prompt or a bad file never leaves the VM stopped.
func (a *App) editVM(ctx context.Context, id string, in vmInput, persistenceSet bool) (*vmResult, error) {
	if a.opts.Interactive {
		if err := a.promptEdit(&in, persistenceSet); err != nil {
			return nil, err
		}
	}

	form, cred, err := a.buildForm(in)
	if err != nil {
		return nil, err
	}

	client := a.client()

	a.progress("Stopping VM %s...", id)
	if _, err := client.StopVM(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to stop VM %s: %w", id, err)
	}

	a.progress("VM stopped. Waiting before relaunch...")
	if err := a.sleep(ctx, relaunchDelay); err != nil {
		return nil, err
	}

	a.progress("Launching VM %s with updated configuration...", id)
	vm, err := client.LaunchVM(ctx, id, form)
	if err != nil {
		return nil, err
	}
	return &vmResult{VMInstance: vm, TLSDashboard: cred}, nil
}

func (a *App) promptEdit(in *vmInput, persistenceSet bool) error {
	var err error
	if strings.TrimSpace(in.name) == "" {
		if in.name, err = a.prompter.Input("Enter the new name for your VM (optional):", nil); err != nil {
			return err
		}
	}
	if strings.TrimSpace(in.composePath) == "" {
		if in.composePath, err = a.prompter.Input("Enter the path to your new docker-compose.yml (optional):", readableFile(true)); err != nil {
			return err
		}
	}
	if !persistenceSet {
		if in.persistence, err = a.prompter.Confirm("Enable filesystem persistence?", true); err != nil {
			return err
		}
	}

	if strings.TrimSpace(in.credentials) == "" {
		private, err := a.prompter.Confirm("Do you want to use a private Docker registry?", false)
		if err != nil {
			return err
		}
		if private {
			registry, err := a.prompter.Input(fmt.Sprintf("Enter the Docker registry (press Enter for %s):", a.defaultRegistry), nil)
			if err != nil {
				return err
			}
			if strings.TrimSpace(registry) != "" {
				in.registry = registry
			}
			username, err := a.prompter.Input("Enter your Docker registry username:", notEmpty("username"))
			if err != nil {
				return err
			}
			password, err := a.prompter.Password("Enter your Docker registry password:")
			if err != nil {
				return err
			}
			in.credentials = username + ":" + password
		}
	}

	if strings.TrimSpace(in.envPath) == "" {
		addEnv, err := a.prompter.Confirm("Do you want to add or update environment variables (secrets)?", false)
		if err != nil {
			return err
		}
		if addEnv {
			if in.secrets, err = a.prompter.Editor("Enter variables in VAR=VALUE format (opens in your default editor).", notEmpty("secrets")); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildForm turns the collected input into the multipart form: compose file
// read (and rewritten for TLS), secrets trimmed, credentials encrypted.
func (a *App) buildForm(in vmInput) (*apiclient.VMForm, *compose.DashboardCredential, error) {
	form := &apiclient.VMForm{
		Name:          strings.TrimSpace(in.name),
		VMTypeID:      strings.TrimSpace(in.vmType),
		InviteCode:    strings.TrimSpace(in.inviteCode),
		FSPersistence: in.persistence,
	}

	var cred *compose.DashboardCredential
	if path := strings.TrimSpace(in.composePath); path != "" {
		data, err := readFile(path)
		if err != nil {
			return nil, nil, err
		}
		if in.tls {
			if data, cred, err = a.enableTLS(data); err != nil {
				return nil, nil, err
			}
		}
		form.ComposeFileName = filepath.Base(path)
		form.Compose = data
	}

	secrets := in.secrets
	if path := strings.TrimSpace(in.envPath); path != "" {
		data, err := readFile(path)
		if err != nil {
			return nil, nil, err
		}
		secrets = string(data)
	}
	if strings.TrimSpace(secrets) != "" {
		// The portal owns secrets validation; the text is forwarded as is.
		if env, err := godotenv.Parse(strings.NewReader(secrets)); err != nil {
			a.log.Debug("secrets are not in dotenv format", "error", err)
		} else {
			a.log.Debug("attaching secrets", "variables", len(env))
		}
		form.Secrets = strings.TrimSpace(secrets)
	}

	if creds := strings.TrimSpace(in.credentials); creds != "" {
		registry := strings.TrimSpace(in.registry)
		if registry == "" {
			return nil, nil, domain.ErrEmptyRegistry
		}
		username, password, ok := strings.Cut(creds, ":")
		if !ok || username == "" || password == "" {
			return nil, nil, domain.ErrInvalidDockerCredentials
		}
		sealed, err := a.encrypter.EncryptCredentials(registry, username, password)
		if err != nil {
			return nil, nil, err
		}
		form.Credentials = sealed
	}

	return form, cred, nil
}

func (a *App) enableTLS(data []byte) ([]byte, *compose.DashboardCredential, error) {
	doc, err := compose.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	cred, err := a.rewriter.EnableTLS(doc)
	if err != nil {
		return nil, nil, err
	}
	out, err := doc.Marshal()
	if err != nil {
		return nil, nil, err
	}
	a.log.Debug("compose file rewritten for TLS", "services", len(doc.Services))
	return out, cred, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errUnreadableFile, path, err)
	}
	return data, nil
}

func renderVMResult(w io.Writer, headline string, res *vmResult) {
	var vm *domain.VMInstance
	if res != nil {
		vm = res.VMInstance
	}
	renderVMAccepted(w, headline, vm)

	if res != nil && res.TLSDashboard != nil {
		cliWriteLine(w, cliRenderWarning("Traefik dashboard login, shown only once:"))
		cliWriteLine(w, styles.RenderListItem("User: "+res.TLSDashboard.User))
		cliWriteLine(w, styles.RenderListItem("Password: "+res.TLSDashboard.Password))
	}
}
