package ipam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"strand/internal/lifecycle"
)

// NetBox — клиент внешнего IPAM. Резервирование делается через
// available-prefixes родительского префикса, освобождение — DELETE по id.
type NetBox struct {
	base     string
	token    string
	parentID int
	plen     int
	hc       *http.Client
}

func NewNetBox(baseURL, token string, parentID, plen int) *NetBox {
	return &NetBox{
		base:     strings.TrimRight(baseURL, "/"),
		token:    token,
		parentID: parentID,
		plen:     plen,
		hc:       &http.Client{},
	}
}

// ReservePrefix — POST /api/ipam/prefixes/{parent}/available-prefixes/.
func (c *NetBox) ReservePrefix(ctx context.Context, subscriberID string) (lifecycle.PrefixLease, error) {
	body, _ := json.Marshal(map[string]any{
		"prefix_length": c.plen,
		"status":        "active",
		"description":   "strand subscriber " + subscriberID,
	})
	url := fmt.Sprintf("%s/api/ipam/prefixes/%d/available-prefixes/", c.base, c.parentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return lifecycle.PrefixLease{}, err
	}
	c.setHeaders(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return lifecycle.PrefixLease{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return lifecycle.PrefixLease{}, fmt.Errorf("netbox reserve: %s: %s", resp.Status, snippet(resp.Body))
	}
	var out struct {
		ID     int64  `json:"id"`
		Prefix string `json:"prefix"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return lifecycle.PrefixLease{}, fmt.Errorf("netbox reserve: decode: %w", err)
	}
	return lifecycle.PrefixLease{ID: strconv.FormatInt(out.ID, 10), CIDR: out.Prefix}, nil
}

// ReleasePrefix — DELETE /api/ipam/prefixes/{id}/. 404 считаем успехом
// (префикс уже освобождён), revoke остаётся идемпотентным при повторе.
func (c *NetBox) ReleasePrefix(ctx context.Context, prefixID string) error {
	url := fmt.Sprintf("%s/api/ipam/prefixes/%s/", c.base, prefixID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return fmt.Errorf("netbox release: %s: %s", resp.Status, snippet(resp.Body))
	}
}

func (c *NetBox) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}

func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 200))
	return strings.TrimSpace(string(b))
}
