package main

import (
	"strings"
	"sync"

	"webmill/internal/api"
	"webmill/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) baseURL() string {
	if c.apiFlag != nil {
		if url := strings.TrimSpace(*c.apiFlag); url != "" {
			return url
		}
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg.Server.BaseURL != "" {
		return cfg.Server.BaseURL
	}
	return "http://localhost:5001"
}

func (c *commandContext) client() *api.Client {
	return api.NewClient(c.baseURL())
}
