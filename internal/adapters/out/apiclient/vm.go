package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/scrtlabs/secretvm-cli/internal/domain"
	"github.com/scrtlabs/secretvm-cli/pkg/envelope"
)

// Multipart field names expected by the create and launch endpoints.
const (
	FieldName                 = "name"
	FieldVMTypeID             = "vmTypeId"
	FieldInviteCode           = "inviteCode"
	FieldDockerCompose        = "dockercompose"
	FieldSecrets              = "secrets_plaintext"
	FieldCredentialsEncrypted = "docker_credentials_encrypted"
	FieldCredentialsKey       = "docker_credentials_key"
	FieldFSPersistence        = "fs_persistence"
)

// VMForm is the multipart payload of create and launch. Empty fields are
// omitted from the request.
type VMForm struct {
	Name       string
	VMTypeID   string
	InviteCode string

	ComposeFileName string
	Compose         []byte

	Secrets       string
	Credentials   *envelope.Envelope
	FSPersistence bool
}

type formField struct{ name, value string }

func (f *VMForm) encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []formField{
		{FieldName, f.Name},
		{FieldVMTypeID, f.VMTypeID},
		{FieldInviteCode, f.InviteCode},
		{FieldSecrets, f.Secrets},
	}
	if f.Credentials != nil {
		fields = append(fields,
			formField{FieldCredentialsEncrypted, f.Credentials.EncryptedData},
			formField{FieldCredentialsKey, f.Credentials.EncryptedAESKey},
		)
	}
	if f.FSPersistence {
		fields = append(fields, formField{FieldFSPersistence, "1"})
	}

	for _, field := range fields {
		if field.value == "" {
			continue
		}
		if err := w.WriteField(field.name, field.value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", field.name, err)
		}
	}

	if f.Compose != nil {
		fileName := f.ComposeFileName
		if fileName == "" {
			fileName = "docker-compose.yml"
		}
		part, err := w.CreateFormFile(FieldDockerCompose, fileName)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create compose part: %w", err)
		}
		if _, err := part.Write(f.Compose); err != nil {
			return nil, "", fmt.Errorf("failed to write compose part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// ListVMs returns the caller's VM instances.
func (c *Client) ListVMs(ctx context.Context) ([]domain.VMInstance, error) {
	resp, err := c.request(ctx, http.MethodGet, PathInstances, nil, "")
	if err != nil {
		return nil, err
	}

	var vms []domain.VMInstance
	if err := parseResponse(resp, &vms); err != nil {
		return nil, err
	}
	return vms, nil
}

// GetVM returns the details of one VM.
func (c *Client) GetVM(ctx context.Context, vmID string) (*domain.VMDetails, error) {
	resp, err := c.request(ctx, http.MethodGet, VMPath(vmID, ""), nil, "")
	if err != nil {
		return nil, err
	}

	var details domain.VMDetails
	if err := parseResponse(resp, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// CreateVM provisions a new VM.
func (c *Client) CreateVM(ctx context.Context, form *VMForm) (*domain.VMInstance, error) {
	return c.postForm(ctx, PathCreate, form)
}

// LaunchVM relaunches a stopped VM with an updated configuration.
func (c *Client) LaunchVM(ctx context.Context, vmID string, form *VMForm) (*domain.VMInstance, error) {
	return c.postForm(ctx, VMPath(vmID, ActionLaunch), form)
}

func (c *Client) postForm(ctx context.Context, path string, form *VMForm) (*domain.VMInstance, error) {
	body, contentType, err := form.encode()
	if err != nil {
		return nil, err
	}

	resp, err := c.request(ctx, http.MethodPost, path, body, contentType)
	if err != nil {
		return nil, err
	}

	var vm domain.VMInstance
	if err := parseResponse(resp, &vm); err != nil {
		return nil, err
	}
	return &vm, nil
}

// StartVM requests a VM start.
func (c *Client) StartVM(ctx context.Context, vmID string) (*domain.LifecycleResponse, error) {
	return c.lifecycle(ctx, http.MethodPost, vmID, ActionStart)
}

// StopVM requests a VM stop.
func (c *Client) StopVM(ctx context.Context, vmID string) (*domain.LifecycleResponse, error) {
	return c.lifecycle(ctx, http.MethodPost, vmID, ActionStop)
}

// TerminateVM requests permanent removal of a VM.
func (c *Client) TerminateVM(ctx context.Context, vmID string) (*domain.LifecycleResponse, error) {
	return c.lifecycle(ctx, http.MethodDelete, vmID, ActionTerminate)
}

func (c *Client) lifecycle(ctx context.Context, method, vmID, action string) (*domain.LifecycleResponse, error) {
	resp, err := c.request(ctx, method, VMPath(vmID, action), nil, "")
	if err != nil {
		return nil, err
	}

	var result domain.LifecycleResponse
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logs returns the docker logs of a VM.
func (c *Client) Logs(ctx context.Context, vmID string) (string, error) {
	resp, err := c.request(ctx, http.MethodGet, VMPath(vmID, ActionLogs), nil, "")
	if err != nil {
		return "", err
	}
	return parseText(resp)
}

// Attestation returns the CPU attestation report of a VM.
func (c *Client) Attestation(ctx context.Context, vmID string) (string, error) {
	resp, err := c.request(ctx, http.MethodGet, VMPath(vmID, ActionAttestation), nil, "")
	if err != nil {
		return "", err
	}
	return parseText(resp)
}
