package serviceability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/warp/rate-engine/ratecard"
)

// HTTPChecker asks a remote service:
//
//	GET {BaseURL}/{carrier}/serviceability/{pincode}  ->  {"serviceable": true}
//
// The caller's context bounds the request.
type HTTPChecker struct {
	baseURL string
	client  *http.Client
}

func NewHTTPChecker(baseURL string, client *http.Client) *HTTPChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPChecker{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type checkResponse struct {
	Serviceable bool `json:"serviceable"`
}

func (h *HTTPChecker) Check(ctx context.Context, carrier ratecard.Carrier, pincode string) (bool, error) {
	u := h.baseURL + "/" + url.PathEscape(string(carrier)) + "/serviceability/" + url.PathEscape(pincode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("build serviceability request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("serviceability request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("serviceability request: unexpected status %d", resp.StatusCode)
	}

	var body checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode serviceability response: %w", err)
	}
	return body.Serviceable, nil
}
