package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/scrtlabs/secretvm-cli/internal/adapters/in/cli/ui/components"
	"github.com/scrtlabs/secretvm-cli/internal/adapters/in/cli/ui/styles"
	"github.com/scrtlabs/secretvm-cli/internal/domain"
)

// composeSnippetLength bounds the compose text shown by "vm status".
const composeSnippetLength = 250

const notAvailable = "N/A"

func cliWriteLine(w io.Writer, msg string) {
	_, _ = fmt.Fprintln(w, msg)
}

func cliRenderTitle(msg string) string {
	return styles.Theme.Title.Render(msg)
}

func cliRenderHeading(msg string) string {
	return styles.Theme.Heading.Render(msg)
}

func cliRenderMuted(msg string) string {
	return styles.Theme.Muted.Render(msg)
}

func cliRenderMeta(label, value string) string {
	return styles.Theme.Label.Render(label) + " " + value
}

func cliRenderSuccess(msg string) string {
	return styles.RenderSuccess(msg)
}

func cliRenderWarning(msg string) string {
	return styles.RenderWarning(msg)
}

func cliRenderInfo(msg string) string {
	return styles.RenderInfo(msg)
}

func cliRenderError(msg string) string {
	return styles.RenderError(msg)
}

// progress prints a step notice in interactive mode only.
func (a *App) progress(format string, args ...any) {
	if a.opts.Interactive {
		cliWriteLine(a.stdout, cliRenderInfo(fmt.Sprintf(format, args...)))
	}
}

func vmListTable(vms []domain.VMInstance) string {
	tbl := components.NewTable(components.WithColumns([]components.Column{
		{Title: "ID"},
		{Title: "UUID", Width: 38},
		{Title: "Name", Width: 24},
		{Title: "Status"},
		{Title: "Type"},
		{Title: "Price/h"},
		{Title: "IP"},
		{Title: "Domain", Width: 32},
		{Title: "Created At"},
	}))
	for _, vm := range vms {
		price := notAvailable
		if vm.VMType != nil {
			price = formatPrice(vm.VMType.PricePerHour)
		}
		tbl.AddRow(
			vm.VMID,
			vm.ID,
			domain.StringOr(vm.NameFromUser, vm.Name),
			styles.RenderBadge(vm.Status),
			vm.VMTypeID,
			price,
			domain.StringOr(vm.IPAddress, notAvailable),
			domain.StringOr(vm.VMDomain, notAvailable),
			vm.CreatedAt,
		)
	}
	return tbl.Render()
}

func vmSummaryTable(vm *domain.VMInstance) string {
	return components.SimpleTable(
		[]string{"ID", "Name", "Status", "Type", "IP", "Domain", "Created At"},
		[][]string{{
			vm.VMID,
			domain.StringOr(vm.NameFromUser, vm.Name),
			vm.Status,
			vm.VMTypeID,
			domain.StringOr(vm.IPAddress, notAvailable),
			domain.StringOr(vm.VMDomain, notAvailable),
			vm.CreatedAt,
		}},
	)
}

func renderVMList(w io.Writer, vms []domain.VMInstance) {
	if len(vms) == 0 {
		cliWriteLine(w, cliRenderMuted("No VM instances found."))
		return
	}
	cliWriteLine(w, vmListTable(vms))
}

// renderVMAccepted prints the snapshot returned by create and launch.
func renderVMAccepted(w io.Writer, headline string, vm *domain.VMInstance) {
	if vm == nil || vm.ID == "" {
		cliWriteLine(w, cliRenderWarning(headline+", but the response format was unexpected."))
		return
	}
	cliWriteLine(w, cliRenderSuccess(headline))
	cliWriteLine(w, vmSummaryTable(vm))
	cliWriteLine(w, cliRenderMuted(`You can check the VM status using the "vm status" command shortly.`))
}

func renderLifecycle(w io.Writer, headline string, resp *domain.LifecycleResponse) {
	cliWriteLine(w, cliRenderSuccess(headline))
	if resp == nil {
		return
	}
	if resp.Status != "" {
		cliWriteLine(w, cliRenderMeta("Status:", resp.Status))
	}
	if resp.Message != "" {
		cliWriteLine(w, cliRenderMeta("Message:", resp.Message))
	}
}

func renderVMDetails(w io.Writer, vm *domain.VMDetails) {
	if vm == nil {
		cliWriteLine(w, cliRenderWarning("VM details request processed, but the response was empty."))
		return
	}

	cliWriteLine(w, cliRenderTitle("VM Details"))
	cliWriteLine(w, cliRenderMeta("VM UUID:", vm.ID))
	cliWriteLine(w, cliRenderMeta("VM ID:", vm.VMID))
	cliWriteLine(w, cliRenderMeta("Name (User):", domain.StringOr(vm.NameFromUser, notAvailable)))
	cliWriteLine(w, cliRenderMeta("Name (System):", vm.Name))
	cliWriteLine(w, cliRenderMeta("Status:", fmt.Sprintf("%s (State: %s)", styles.RenderBadge(vm.Status), vm.State)))
	cliWriteLine(w, cliRenderMeta("User Sub:", vm.User))
	cliWriteLine(w, cliRenderMeta("IP Address:", domain.StringOr(vm.IPAddress, notAvailable)))
	cliWriteLine(w, cliRenderMeta("Domain:", domain.StringOr(vm.VMDomain, notAvailable)))
	cliWriteLine(w, cliRenderMeta("TLS:", yesNo(vm.TLSEnabled)))
	cliWriteLine(w, cliRenderMeta("Persistence:", yesNo(vm.FSPersistence)))
	cliWriteLine(w, cliRenderMeta("Created At:", vm.CreatedAt))
	cliWriteLine(w, cliRenderMeta("Updated At:", vm.UpdatedAt))

	cliWriteLine(w, cliRenderHeading("Configuration"))
	cliWriteLine(w, cliRenderMeta("Memory:", formatAmount(vm.Memory)+" GB"))
	cliWriteLine(w, cliRenderMeta("VCPUs:", strconv.Itoa(vm.VCPUs)))
	cliWriteLine(w, cliRenderMeta("Disk Size:", formatAmount(vm.DiskSize)+" GB"))

	if t := vm.VMType; t != nil {
		cliWriteLine(w, cliRenderHeading("VM Type"))
		cliWriteLine(w, cliRenderMeta("Type Name:", t.Type))
		cliWriteLine(w, cliRenderMeta("CPU:", formatAmount(t.CPU)+" cores"))
		cliWriteLine(w, cliRenderMeta("RAM:", formatAmount(t.RAM)+" GB"))
		cliWriteLine(w, cliRenderMeta("Disk:", formatAmount(t.Disk)+" GB"))
		cliWriteLine(w, cliRenderMeta("Price/Hour:", formatPrice(t.PricePerHour)))
	}

	if h := vm.Host; h != nil {
		cliWriteLine(w, cliRenderHeading("Host"))
		cliWriteLine(w, cliRenderMeta("Host Name:", fmt.Sprintf("%s (%s:%d)", h.Name, h.Host, h.Port)))
	}

	cliWriteLine(w, cliRenderHeading("Network"))
	cliWriteLine(w, cliRenderMeta("Gateway:", domain.StringOr(vm.Gateway, notAvailable)))
	cliWriteLine(w, cliRenderMeta("Bridge:", domain.StringOr(vm.NetworkBridge, notAvailable)))
	cliWriteLine(w, cliRenderMeta("TAP Device:", yesNo(vm.NetworkIsTap)))
	ports := notAvailable
	if raw := vm.Ports(); raw != nil {
		ports = string(raw)
	}
	cliWriteLine(w, cliRenderMeta("Ports:", ports))

	if vm.DockerFile != nil && strings.TrimSpace(*vm.DockerFile) != "" {
		cliWriteLine(w, cliRenderHeading("Docker Compose (snippet)"))
		cliWriteLine(w, styles.Theme.Snippet.Render(components.Truncate(*vm.DockerFile, composeSnippetLength)))
	}
}

func renderText(w io.Writer, text string) {
	if strings.TrimSpace(text) == "" {
		cliWriteLine(w, cliRenderMuted("The service returned no output."))
		return
	}
	cliWriteLine(w, text)
}

func yesNo(b *bool) string {
	if b != nil && *b {
		return "Yes"
	}
	return "No"
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPrice(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
