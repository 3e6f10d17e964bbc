package config

import (
	"fmt"
	"net/url"
)

func validate(c *Config) error {
	if c.Budget <= 0 {
		return fmt.Errorf("budget must be > 0")
	}
	if c.StepTimeout <= 0 || c.ItemTimeout <= 0 {
		return fmt.Errorf("step timeouts must be > 0")
	}
	if c.StepTimeout > c.Budget {
		return fmt.Errorf("step timeout %s exceeds budget %s", c.StepTimeout, c.Budget)
	}
	if c.MaxMediaItems <= 0 {
		return fmt.Errorf("max media items must be > 0")
	}
	if c.MaxComments < 0 {
		return fmt.Errorf("max comments must be >= 0")
	}
	if c.ScrollIterations < 0 {
		return fmt.Errorf("scroll iterations must be >= 0")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max concurrency must be > 0")
	}
	switch c.SessionBackend {
	case "file", "keyring", "auto":
	default:
		return fmt.Errorf("unknown session backend %q (use: file, keyring, auto)", c.SessionBackend)
	}
	switch c.Isolation {
	case "process", "inprocess":
	default:
		return fmt.Errorf("unknown isolation %q (use: process, inprocess)", c.Isolation)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base url %q is not absolute", c.BaseURL)
	}
	return nil
}
