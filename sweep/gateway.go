package sweep

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// DeletionGateway requests server-side deletion of one file instance. Success
// means the archives app accepted the edit, not that the file is already
// gone; the app queues and executes edits on its own schedule.
type DeletionGateway interface {
	// RequestDeletion returns a reference for the accepted request, for the
	// audit trail.
	RequestDeletion(ctx context.Context, path string) (string, error)
}

// ArchivesClient calls the archives app's server_change API. Calls carry no
// timeout: a deletion request in flight runs to completion or failure.
type ArchivesClient struct {
	baseURL    string
	user       string
	password   string
	httpClient *http.Client
}

func NewArchivesClient(appURL, user, password string, insecureSkipVerify bool) *ArchivesClient {
	base := strings.TrimSpace(appURL)
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	base = strings.TrimRight(base, "/")

	client := &http.Client{}
	if insecureSkipVerify {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &ArchivesClient{baseURL: base, user: user, password: password, httpClient: client}
}

func (c *ArchivesClient) RequestDeletion(ctx context.Context, path string) (string, error) {
	ref := uuid.NewString()
	editURL := fmt.Sprintf("%s/api/server_change?edit_type=DELETE&old_path=%s&new_path=",
		c.baseURL, url.QueryEscape(path))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, editURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("user", c.user)
	req.Header.Set("password", c.password)
	req.Header.Set("X-Request-Ref", ref)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			return "", fmt.Errorf("archives app refused deletion of %q: %s", path, resp.Status)
		}
		return "", fmt.Errorf("archives app refused deletion of %q: %s: %s", path, resp.Status, msg)
	}
	return ref, nil
}
