// Package compose models the docker-compose documents sent to the VM service
// and rewrites them to run behind a TLS-terminating Traefik proxy.
package compose

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a docker-compose file. Keys the rewriter does not touch are
// kept in Extra and written back unchanged.
type Document struct {
	Version  string              `yaml:"version,omitempty"`
	Services map[string]*Service `yaml:"services,omitempty"`
	Networks map[string]*Network `yaml:"networks,omitempty"`
	Extra    map[string]any      `yaml:",inline"`
}

// Service is one entry of the services mapping.
type Service struct {
	Image    string          `yaml:"image,omitempty"`
	Command  any             `yaml:"command,omitempty"`
	Ports    []any           `yaml:"ports,omitempty"`
	Volumes  []any           `yaml:"volumes,omitempty"`
	Networks ServiceNetworks `yaml:"networks,omitempty"`
	Labels   Labels          `yaml:"labels,omitempty"`
	Extra    map[string]any  `yaml:",inline"`
}

// Network is one entry of the top-level networks mapping.
type Network struct {
	Driver string         `yaml:"driver,omitempty"`
	Extra  map[string]any `yaml:",inline"`
}

// Parse decodes a compose document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse compose file: %w", err)
	}
	return &doc, nil
}

// Marshal encodes the document with two-space indentation.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode compose file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode compose file: %w", err)
	}
	return buf.Bytes(), nil
}

// ServiceNames returns the service names in sorted order.
func (d *Document) ServiceNames() []string {
	names := make([]string, 0, len(d.Services))
	for name := range d.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Labels accepts both compose label syntaxes: a list of "key=value" strings
// or a mapping. It is always written back as a mapping.
type Labels map[string]string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *Labels) UnmarshalYAML(node *yaml.Node) error {
	out := Labels{}

	switch node.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		for _, item := range items {
			key, value, _ := strings.Cut(item, "=")
			out[key] = value
		}
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return err
		}
		for k, v := range m {
			out[k] = v
		}
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			return fmt.Errorf("line %d: labels must be a list or a mapping", node.Line)
		}
	default:
		return fmt.Errorf("line %d: labels must be a list or a mapping", node.Line)
	}

	*l = out
	return nil
}

// Merge sets every label of other, overwriting existing keys.
func (l *Labels) Merge(other Labels) {
	if *l == nil {
		*l = Labels{}
	}
	for k, v := range other {
		(*l)[k] = v
	}
}

// ServiceNetworks is a service's network membership. Compose allows a list
// of names or a mapping of name to per-network options; the original form
// is preserved on output.
type ServiceNetworks struct {
	names   []string
	options map[string]any
	mapping bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *ServiceNetworks) UnmarshalYAML(node *yaml.Node) error {
	*n = ServiceNetworks{}

	switch node.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		for _, name := range names {
			n.Add(name)
		}
	case yaml.MappingNode:
		n.mapping = true
		for i := 0; i+1 < len(node.Content); i += 2 {
			name := node.Content[i].Value
			var opts any
			if err := node.Content[i+1].Decode(&opts); err != nil {
				return err
			}
			n.set(name, opts)
		}
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			return fmt.Errorf("line %d: networks must be a list or a mapping", node.Line)
		}
	default:
		return fmt.Errorf("line %d: networks must be a list or a mapping", node.Line)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (n ServiceNetworks) MarshalYAML() (any, error) {
	if !n.mapping {
		return n.names, nil
	}

	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range n.names {
		value := &yaml.Node{}
		if err := value.Encode(n.options[name]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: name},
			value,
		)
	}
	return node, nil
}

// IsZero lets omitempty drop an empty membership.
func (n ServiceNetworks) IsZero() bool {
	return len(n.names) == 0
}

// Names returns the networks in declaration order.
func (n ServiceNetworks) Names() []string {
	return append([]string(nil), n.names...)
}

// Has reports membership in the named network.
func (n ServiceNetworks) Has(name string) bool {
	for _, existing := range n.names {
		if existing == name {
			return true
		}
	}
	return false
}

// Add joins the named network, keeping existing options.
func (n *ServiceNetworks) Add(name string) {
	if n.Has(name) {
		return
	}
	n.names = append(n.names, name)
}

func (n *ServiceNetworks) set(name string, opts any) {
	n.Add(name)
	if opts == nil {
		return
	}
	if n.options == nil {
		n.options = map[string]any{}
	}
	n.options[name] = opts
}

// NewServiceNetworks builds a list-style membership.
func NewServiceNetworks(names ...string) ServiceNetworks {
	var n ServiceNetworks
	for _, name := range names {
		n.Add(name)
	}
	return n
}
