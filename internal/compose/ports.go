package compose

import (
	"fmt"

	"github.com/docker/go-connections/nat"
	"go.uber.org/multierr"
)

// proxyHostPorts are bound by the injected proxy.
var proxyHostPorts = map[string]bool{"80": true, "443": true}

// CheckPortConflicts reports every non-proxy service publishing a host port
// the proxy needs. Each finding is a separate error combined with multierr.
func CheckPortConflicts(doc *Document) error {
	var errs error
	for _, name := range doc.ServiceNames() {
		if name == ProxyService {
			continue
		}
		svc := doc.Services[name]
		if svc == nil {
			continue
		}
		for _, entry := range svc.Ports {
			hostPorts, err := publishedPorts(entry)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("service %q: %w", name, err))
				continue
			}
			for _, hp := range hostPorts {
				if proxyHostPorts[hp] {
					errs = multierr.Append(errs, fmt.Errorf("service %q publishes host port %s, which the TLS proxy binds", name, hp))
				}
			}
		}
	}
	return errs
}

// publishedPorts returns the host ports of one compose ports entry, in
// either short ("8080:80", 80) or long ({target, published}) syntax.
func publishedPorts(entry any) ([]string, error) {
	switch v := entry.(type) {
	case string:
		return parseShortSyntax(v)
	case int:
		return parseShortSyntax(fmt.Sprintf("%d", v))
	case map[string]any:
		published, ok := v["published"]
		if !ok || published == nil {
			return nil, nil
		}
		return []string{fmt.Sprint(published)}, nil
	default:
		return nil, fmt.Errorf("unsupported port entry %v", entry)
	}
}

func parseShortSyntax(spec string) ([]string, error) {
	mappings, err := nat.ParsePortSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", spec, err)
	}
	var hostPorts []string
	for _, m := range mappings {
		if m.Binding.HostPort != "" {
			hostPorts = append(hostPorts, m.Binding.HostPort)
		}
	}
	return hostPorts, nil
}
