package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Swiftline-Couriers/service-quotes/internal/domain/apperr"
)

// DefaultTimeout bounds how long a booking submission may take before the
// caller is told to try again.
const DefaultTimeout = 15 * time.Second

// Client forwards a completed booking form to the relay provider, which
// emails it to the operations inbox.
type Client interface {
	Submit(ctx context.Context, fields map[string]string) error
}

type client struct {
	baseURL string
	formID  string
	timeout time.Duration
	http    *http.Client
}

// New creates a relay client. A non-positive timeout falls back to
// DefaultTimeout.
func New(baseURL, formID string, timeout time.Duration, httpClient *http.Client) Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{baseURL: baseURL, formID: formID, timeout: timeout, http: httpClient}
}

func (c *client) Submit(ctx context.Context, fields map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}

	endpoint := fmt.Sprintf("%s/ajax/%s", c.baseURL, c.formID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return apperr.NewSubmissionTimeoutError(err)
		}
		return apperr.NewSubmissionFailedError(fmt.Sprintf("relay unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperr.NewSubmissionFailedError(
			fmt.Sprintf("relay responded %d: %s", resp.StatusCode, string(b)))
	}

	// The relay reports success as a string flag alongside a human message.
	var body struct {
		Success string `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return apperr.NewSubmissionFailedError(fmt.Sprintf("unreadable relay response: %v", err))
	}
	if body.Success != "true" {
		return apperr.NewSubmissionFailedError(fmt.Sprintf("relay rejected submission: %s", body.Message))
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
