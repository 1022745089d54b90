package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scrtlabs/secretvm-cli/internal/adapters/out/apiclient"
	"github.com/scrtlabs/secretvm-cli/internal/domain"
)

// newVMCmd creates the vm command group.
func newVMCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vm",
		Short: "Manage virtual machines",
		Long:  `Commands for creating, inspecting and controlling SecretVM instances.`,
	}

	cmd.AddCommand(newVMListCmd(a))
	cmd.AddCommand(newVMCreateCmd(a))
	cmd.AddCommand(newVMEditCmd(a))
	cmd.AddCommand(newVMLifecycleCmd(a, "start", "Start a virtual machine", "Starting", (*apiclient.Client).StartVM))
	cmd.AddCommand(newVMLifecycleCmd(a, "stop", "Stop a virtual machine", "Stopping", (*apiclient.Client).StopVM))
	cmd.AddCommand(newVMRemoveCmd(a))
	cmd.AddCommand(newVMTextCmd(a, "logs", "View the docker logs of a virtual machine", (*apiclient.Client).Logs))
	cmd.AddCommand(newVMTextCmd(a, "attestation", "View the CPU attestation of a virtual machine", (*apiclient.Client).Attestation))
	cmd.AddCommand(newVMStatusCmd(a))

	return cmd
}

// vmID returns the trimmed VM id argument. With no argument in interactive
// mode it is prompted for. Blank ids fail before any request is made.
func (a *App) vmID(args []string) (string, error) {
	if len(args) == 0 && a.opts.Interactive {
		answer, err := a.prompter.Input("Enter the VM ID:", notEmpty("VM ID"))
		if err != nil {
			return "", err
		}
		args = []string{answer}
	}

	var id string
	if len(args) > 0 {
		id = strings.TrimSpace(args[0])
	}
	if id == "" {
		return "", domain.ErrVMIDRequired
	}
	return id, nil
}

func newVMListCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List virtual machine instances",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), a, func(ctx context.Context) ([]domain.VMInstance, error) {
				vms, err := a.client().ListVMs(ctx)
				if err != nil {
					return nil, err
				}
				if vms == nil {
					vms = []domain.VMInstance{}
				}
				return vms, nil
			}, renderVMList)
		},
	}
}

type lifecycleCall func(*apiclient.Client, context.Context, string) (*domain.LifecycleResponse, error)

func newVMLifecycleCmd(a *App, verb, short, progress string, call lifecycleCall) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [vm-id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			return run(cmd.Context(), a, func(ctx context.Context) (*domain.LifecycleResponse, error) {
				var err error
				if id, err = a.vmID(args); err != nil {
					return nil, err
				}
				a.progress("%s VM %s...", progress, id)
				return call(a.client(), ctx, id)
			}, func(w io.Writer, resp *domain.LifecycleResponse) {
				renderLifecycle(w, fmt.Sprintf("VM %s request for %s processed successfully.", verb, id), resp)
			})
		},
	}
}

func newVMRemoveCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove [vm-id]",
		Aliases: []string{"rm"},
		Short:   "Terminate a virtual machine and delete its record",
		Long: `Terminate a virtual machine and delete its record. This cannot be undone.

In interactive mode you are asked to confirm first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			return run(cmd.Context(), a, func(ctx context.Context) (*domain.LifecycleResponse, error) {
				var err error
				if id, err = a.vmID(args); err != nil {
					return nil, err
				}
				if a.opts.Interactive {
					ok, err := a.prompter.Confirm(fmt.Sprintf(
						"Are you sure you want to remove VM %q? This terminates the VM and deletes its record. This cannot be undone.", id), false)
					if err != nil {
						return nil, err
					}
					if !ok {
						return nil, domain.ErrCancelled
					}
				}
				a.progress("Removing VM %s...", id)
				return a.client().TerminateVM(ctx, id)
			}, func(w io.Writer, resp *domain.LifecycleResponse) {
				renderLifecycle(w, fmt.Sprintf("VM %s has been removed.", id), resp)
			})
		},
	}
}

type textCall func(*apiclient.Client, context.Context, string) (string, error)

func newVMTextCmd(a *App, verb, short string, call textCall) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [vm-id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), a, func(ctx context.Context) (string, error) {
				id, err := a.vmID(args)
				if err != nil {
					return "", err
				}
				return call(a.client(), ctx, id)
			}, renderText)
		},
	}
}

func newVMStatusCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status [vm-id]",
		Short: "View the details of a virtual machine",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), a, func(ctx context.Context) (*domain.VMDetails, error) {
				id, err := a.vmID(args)
				if err != nil {
					return nil, err
				}
				return a.client().GetVM(ctx, id)
			}, renderVMDetails)
		},
	}
}
