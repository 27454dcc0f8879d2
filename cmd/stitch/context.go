package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"stitch/internal/api"
	"stitch/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	httpClient *http.Client
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// apiBase resolves the daemon address: the --api flag wins, then the
// configured bind address.
func (c *commandContext) apiBase() string {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return "http://" + strings.TrimSpace(*c.apiFlag)
	}
	if cfg := c.configValue(); cfg != nil && cfg.APIBind != "" {
		return "http://" + cfg.APIBind
	}
	return "http://127.0.0.1:8317"
}

func (c *commandContext) getJSON(path string, out any) error {
	resp, err := c.httpClient.Get(c.apiBase() + path)
	if err != nil {
		return wrapDialError(err, c.apiBase())
	}
	return decodeResponse(resp, out)
}

func (c *commandContext) postJSON(path string, payload, out any) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	resp, err := c.httpClient.Post(c.apiBase()+path, "application/json", &body)
	if err != nil {
		return wrapDialError(err, c.apiBase())
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func wrapDialError(err error, base string) error {
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return fmt.Errorf("connect to daemon at %s: %v; start it with `stitchd`", base, netErr.Err)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}
