package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnv()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	if err := c.normalizeTMSU(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv("DERPISYNC_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.API.APIKey = value
	}
	if value, ok := os.LookupEnv("DERPISYNC_BASE_URL"); ok && strings.TrimSpace(value) != "" {
		c.API.BaseURL = value
	}
	if value, ok := os.LookupEnv("DERPISYNC_INDEX_FILE"); ok && strings.TrimSpace(value) != "" {
		c.Paths.IndexFile = value
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.IndexFile) == "" {
		c.Paths.IndexFile = defaultIndexFile
	}
	if c.Paths.IndexFile, err = expandPath(strings.TrimSpace(c.Paths.IndexFile)); err != nil {
		return fmt.Errorf("paths.index_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	c.API.APIKey = strings.TrimSpace(c.API.APIKey)
	c.API.UserAgent = strings.TrimSpace(c.API.UserAgent)
	if c.API.UserAgent == "" {
		c.API.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeTMSU() error {
	c.TMSU.Binary = strings.TrimSpace(c.TMSU.Binary)
	if c.TMSU.Binary == "" {
		c.TMSU.Binary = defaultTMSUBinary
	}
	database, err := expandPath(strings.TrimSpace(c.TMSU.Database))
	if err != nil {
		return fmt.Errorf("tmsu.database: %w", err)
	}
	c.TMSU.Database = database
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
