package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ConfigItem is one setting within a category, as returned by
// GET /v1/configs/<category>/<item>.
type ConfigItem struct {
	Name    string   `json:"name"`
	Value   any      `json:"current"`
	Default any      `json:"default"`
	Min     *int     `json:"min,omitempty"`
	Max     *int     `json:"max,omitempty"`
	Options []string `json:"values,omitempty"`
	Format  string   `json:"format,omitempty"`
}

// ConfigCategories lists the device's configuration categories.
func (c *Client) ConfigCategories(ctx context.Context) ([]string, error) {
	var body struct {
		Categories []string `json:"categories"`
	}
	if err := c.getJSON(ctx, "/v1/configs", &body); err != nil {
		return nil, err
	}
	return body.Categories, nil
}

// ConfigCategory fetches all items of one category with full details,
// using the wildcard item form.
func (c *Client) ConfigCategory(ctx context.Context, category string) (map[string]ConfigItem, error) {
	path := fmt.Sprintf("/v1/configs/%s/*", url.PathEscape(category))
	items := make(map[string]ConfigItem)
	if err := c.getJSON(ctx, path, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ConfigValue fetches a single setting.
func (c *Client) ConfigValue(ctx context.Context, category, item string) (*ConfigItem, error) {
	path := fmt.Sprintf("/v1/configs/%s/%s", url.PathEscape(category), url.PathEscape(item))
	var ci ConfigItem
	if err := c.getJSON(ctx, path, &ci); err != nil {
		return nil, err
	}
	return &ci, nil
}

// SetConfigs writes settings in batch: POST /v1/configs with a body of
// the shape {category: {item: value}}.
func (c *Client) SetConfigs(ctx context.Context, changes map[string]map[string]any) error {
	buf, err := json.Marshal(changes)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/v1/configs", nil, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

// Flash-persistence operations for the device configuration.
func (c *Client) SaveConfigToFlash(ctx context.Context) error {
	return c.put(ctx, "/v1/configs:save_to_flash", nil)
}

func (c *Client) LoadConfigFromFlash(ctx context.Context) error {
	return c.put(ctx, "/v1/configs:load_from_flash", nil)
}

func (c *Client) ResetConfigToDefault(ctx context.Context) error {
	return c.put(ctx, "/v1/configs:reset_to_default", nil)
}
