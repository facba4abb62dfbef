package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"flowline/internal/config"
	"flowline/internal/flowaccess"
)

type commandContext struct {
	bindFlag   *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(bindFlag, configFlag *string) *commandContext {
	return &commandContext{
		bindFlag:   bindFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
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

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// sessionConfig applies the --bind override on top of the loaded config.
func (c *commandContext) sessionConfig() (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	bind := ""
	if c.bindFlag != nil {
		bind = strings.TrimSpace(*c.bindFlag)
	}
	if bind == "" {
		return cfg, nil
	}
	overlay := *cfg
	overlay.Paths.APIBind = bind
	return &overlay, nil
}

// withAccess runs fn against the daemon API when one is serving, or against
// a direct store session otherwise.
func (c *commandContext) withAccess(fn func(flowaccess.Access) error) error {
	cfg, err := c.sessionConfig()
	if err != nil {
		return err
	}
	session, err := flowaccess.OpenWithFallback(cfg)
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session.Access)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
