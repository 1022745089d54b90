package apiclient

import "net/url"

// Remote API paths.
const (
	PathCSRF           = "/api/auth/csrf"
	PathWalletCallback = "/api/auth/callback/keplr"
	PathSession        = "/api/auth/session"

	PathInstances = "/api/vm/instances"
	PathCreate    = "/api/vm/create"
)

// VM actions appended to the VM resource path.
const (
	ActionStop        = "stop"
	ActionStart       = "start"
	ActionTerminate   = "terminate"
	ActionLogs        = "docker_logs"
	ActionAttestation = "cpu"
	ActionLaunch      = "launch"
)

// VMPath returns /api/vm/{id} or /api/vm/{id}/{action}.
func VMPath(vmID, action string) string {
	p := "/api/vm/" + url.PathEscape(vmID)
	if action != "" {
		p += "/" + action
	}
	return p
}
