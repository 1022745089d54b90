package domain

import "encoding/json"

// VMType describes the hardware profile assigned to a VM.
type VMType struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	CPU          float64 `json:"cpu"`
	RAM          float64 `json:"ram"`
	Disk         float64 `json:"disk"`
	Traffic      float64 `json:"traffic"`
	PricePerHour float64 `json:"pricePerHour"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

// Host is the machine a VM is scheduled on.
type Host struct {
	ID        string `json:"id"`
	Port      int    `json:"port"`
	Host      string `json:"host"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// VMInstance is the snapshot returned by list, create and launch.
// Pointer fields are nil when the service sends null or omits them.
type VMInstance struct {
	ID                 string  `json:"id"`
	VMID               string  `json:"vmId"`
	Name               string  `json:"name"`
	NameFromUser       *string `json:"nameFromUser,omitempty"`
	User               string  `json:"user"`
	VMTypeID           string  `json:"vmTypeId"`
	HostID             string  `json:"hostId"`
	IPAddress          *string `json:"ip_address"`
	VMDomain           *string `json:"vmDomain,omitempty"`
	CreatedAt          string  `json:"createdAt"`
	UpdatedAt          string  `json:"updatedAt"`
	Status             string  `json:"status"`
	State              string  `json:"state"`
	VMType             *VMType `json:"vmType,omitempty"`
	Host               *Host   `json:"host,omitempty"`
	DockerFile         *string `json:"docker_file,omitempty"`
	SecretFSPersistent *bool   `json:"secret_fs_persistent,omitempty"`
}

// VMDetails is the response of the get-by-id endpoint.
// NetworkPorts is kept as raw JSON; use Ports to read it.
type VMDetails struct {
	ID            string          `json:"id"`
	VMID          string          `json:"vmId"`
	Name          string          `json:"name"`
	NameFromUser  *string         `json:"nameFromUser"`
	State         string          `json:"state"`
	Status        string          `json:"status"`
	User          string          `json:"user"`
	VMTypeID      string          `json:"vmTypeId"`
	HostID        string          `json:"hostId"`
	Memory        float64         `json:"memory"`
	VCPUs         int             `json:"vcpus"`
	DiskSize      float64         `json:"disk_size"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
	IPAddress     *string         `json:"ip_address"`
	VMDomain      *string         `json:"vmDomain"`
	Gateway       *string         `json:"gateway"`
	NetworkBridge *string         `json:"network_bridge"`
	NetworkIsTap  *bool           `json:"network_is_tap"`
	NetworkPorts  json.RawMessage `json:"network_ports,omitempty"`
	DockerFile    *string         `json:"docker_file"`
	TLSEnabled    *bool           `json:"tls,omitempty"`
	FSPersistence *bool           `json:"secret_fs_persistent,omitempty"`
	VMType        *VMType         `json:"vmType,omitempty"`
	Host          *Host           `json:"host,omitempty"`
}

// LifecycleResponse is returned by start, stop and terminate.
// Data carries the optional service payload verbatim.
type LifecycleResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// StringOr returns *s or fallback when s is nil or empty.
func StringOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

// Ports returns the raw network ports payload, or nil when the service sent
// nothing or null.
func (d *VMDetails) Ports() json.RawMessage {
	if len(d.NetworkPorts) == 0 || string(d.NetworkPorts) == "null" {
		return nil
	}
	return d.NetworkPorts
}
