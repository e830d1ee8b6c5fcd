// Copyright 2022-2026 aquova et al.

package curator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the bot's full configuration surface. It is loaded once at
// startup and treated as read-only afterwards.
type Config struct {
	// ServerURL is the base URL of the Mattermost server.
	ServerURL string `yaml:"server_url"`
	// Token is the bot account's access token.
	Token string `yaml:"token"`
	// Team is the name of the team (community) the bot operates in.
	Team string `yaml:"team"`
	// AdminAddr is the listen address for the ops HTTP API.
	AdminAddr string `yaml:"admin_addr"`
	// StringsPath optionally overrides the embedded string catalog.
	StringsPath string `yaml:"strings_path"`

	Channels ChannelConfig `yaml:"channels"`
	Roles    RoleConfig    `yaml:"roles"`
	Emoji    EmojiConfig   `yaml:"emoji"`

	// AllowPublishForOthers permits showcase-role holders to publish
	// self-curated posts they did not author.
	AllowPublishForOthers bool `yaml:"allow_publish_for_others"`
}

// ChannelConfig holds the channel ID sets that drive stage classification
// plus the publication targets.
type ChannelConfig struct {
	Listening    []string `yaml:"listening"`
	Verification string   `yaml:"verification"`
	Gallery      string   `yaml:"gallery"`
	SelfCurated  []string `yaml:"self_curated"`
	Showcase     string   `yaml:"showcase"`
	// Roles is the roles-reference channel pointed to in denial messages.
	Roles string `yaml:"roles"`
}

// RoleConfig holds the role ID sets required per stage. An empty set fails
// closed (see Authorized).
type RoleConfig struct {
	Verify   []string `yaml:"verify"`
	Showcase []string `yaml:"showcase"`
	// Colors maps role IDs to display colours used for attribution.
	Colors map[string]string `yaml:"colors"`
	// DefaultColor is used when none of the author's roles has a colour.
	DefaultColor string `yaml:"default_color"`
}

// EmojiConfig names the reaction emoji the bot acts on and attaches.
type EmojiConfig struct {
	// Trigger is the emoji users react with to invoke the publish/remove
	// action.
	Trigger string `yaml:"trigger"`
	// Success and Failure are the bot's marker emoji.
	Success string `yaml:"success"`
	Failure string `yaml:"failure"`
}

// LoadConfig reads and validates a yaml config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AdminAddr == "" {
		c.AdminAddr = ":29600"
	}
	if c.Emoji.Trigger == "" {
		c.Emoji.Trigger = "star"
	}
	if c.Emoji.Success == "" {
		c.Emoji.Success = "white_check_mark"
	}
	if c.Emoji.Failure == "" {
		c.Emoji.Failure = "x"
	}
	if c.Roles.DefaultColor == "" {
		c.Roles.DefaultColor = "#28517f"
	}
}

// Validate checks the fields the workflow cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.ServerURL == "":
		return fmt.Errorf("config: server_url is required")
	case c.Token == "":
		return fmt.Errorf("config: token is required")
	case c.Team == "":
		return fmt.Errorf("config: team is required")
	case c.Channels.Verification == "":
		return fmt.Errorf("config: channels.verification is required")
	case c.Channels.Gallery == "":
		return fmt.Errorf("config: channels.gallery is required")
	case c.Channels.Showcase == "":
		return fmt.Errorf("config: channels.showcase is required")
	}
	if c.Emoji.Success == c.Emoji.Failure {
		return fmt.Errorf("config: emoji.success and emoji.failure must differ")
	}
	return nil
}

// RoleColor returns the configured colour for the first of the member's
// roles that has one, falling back to the default colour.
func (c *Config) RoleColor(roles []string) string {
	for _, r := range roles {
		if color, ok := c.Roles.Colors[r]; ok {
			return color
		}
	}
	return c.Roles.DefaultColor
}
