package backup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/daybook/internal/auth"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/netx"
)

const defaultTokenValidity = 5 * time.Minute

type HTTPConfig struct {
	URL      string `json:"url" yaml:"url"`
	Secret   string `json:"secret" yaml:"secret"`
	DeviceID string `json:"device_id" yaml:"device_id"`
}

// HTTPTransport talks to backupd. Every request carries a short-lived bearer
// token signed with the shared secret.
type HTTPTransport struct {
	client   *http.Client
	blobURL  string
	secret   []byte
	deviceID string
}

func NewHTTPTransport(cfg HTTPConfig, name string, client *http.Client) (*HTTPTransport, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid backupd url %q", common.ErrValidation, cfg.URL)
	}
	if name == "" || cfg.Secret == "" || cfg.DeviceID == "" {
		return nil, fmt.Errorf("%w: blob name, secret and device id are required", common.ErrValidation)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{
		client:   client,
		blobURL:  strings.TrimRight(base.String(), "/") + "/v1/blobs/" + url.PathEscape(name),
		secret:   []byte(cfg.Secret),
		deviceID: cfg.DeviceID,
	}, nil
}

func (t *HTTPTransport) do(ctx context.Context, method string, body []byte) (*http.Response, error) {
	contentType := ""
	if body != nil {
		contentType = "application/octet-stream"
	}
	req, err := netx.NewRequest(ctx, method, t.blobURL, body, contentType)
	if err != nil {
		return nil, err
	}
	token, err := auth.GenerateToken(t.deviceID, t.secret, defaultTokenValidity)
	if err != nil {
		return nil, err
	}
	req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	return t.client.Do(req)
}

func (t *HTTPTransport) FindExisting(ctx context.Context) (*Handle, error) {
	resp, err := t.do(ctx, http.MethodHead, nil)
	if err != nil {
		return nil, wrap("find", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := netx.CheckStatus(resp, http.StatusOK); err != nil {
		return nil, wrap("find", err)
	}
	return &Handle{ID: t.blobURL}, nil
}

func (t *HTTPTransport) Upload(ctx context.Context, data []byte, h *Handle) (*Handle, error) {
	if data == nil {
		data = []byte{}
	}
	resp, err := t.do(ctx, http.MethodPut, data)
	if err != nil {
		return nil, wrap("upload", err)
	}
	defer resp.Body.Close()

	if err := netx.CheckStatus(resp, http.StatusOK, http.StatusCreated, http.StatusNoContent); err != nil {
		return nil, wrap("upload", err)
	}
	return &Handle{ID: t.blobURL}, nil
}

func (t *HTTPTransport) Download(ctx context.Context, h *Handle) ([]byte, error) {
	if h == nil {
		return nil, wrap("download", errNoHandle)
	}
	resp, err := t.do(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, wrap("download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, wrap("download", fmt.Errorf("%s: %w", t.blobURL, common.ErrNotFound))
	}
	if err := netx.CheckStatus(resp, http.StatusOK); err != nil {
		return nil, wrap("download", err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrap("download", err)
	}
	return data, nil
}
