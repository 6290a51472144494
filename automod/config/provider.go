package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/cachestore"

	"gopkg.in/yaml.v3"
)

// Provider resolves the moderation config for a guild. Implementations return a fresh copy on each call.
type Provider interface {
	GuildConfig(ctx context.Context, guildID string) (*GuildConfig, error)
}

type ProviderFunc func(ctx context.Context, guildID string) (*GuildConfig, error)

func (f ProviderFunc) GuildConfig(ctx context.Context, guildID string) (*GuildConfig, error) {
	return f(ctx, guildID)
}

// StaticProvider serves configs held in memory, typically loaded from a YAML file. Guilds without an entry get Default.
type StaticProvider struct {
	Default GuildConfig
	Guilds  map[string]GuildConfig
}

var _ Provider = (*StaticProvider)(nil)

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		Default: DefaultGuildConfig(),
		Guilds:  make(map[string]GuildConfig),
	}
}

func (p *StaticProvider) GuildConfig(ctx context.Context, guildID string) (*GuildConfig, error) {
	cfg, ok := p.Guilds[guildID]
	if !ok {
		cfg = p.Default
	}
	out := cfg.Clone()
	out.GuildID = guildID
	return &out, nil
}

type configFile struct {
	Default yaml.Node            `yaml:"default"`
	Guilds  map[string]yaml.Node `yaml:"guilds"`
}

// ParseYAML reads a config file with a "default" section and per-guild sections under "guilds". Fields missing from a guild section inherit from the file's default, which itself starts from DefaultGuildConfig.
func ParseYAML(raw []byte) (*StaticProvider, error) {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing moderation config: %w", err)
	}
	p := NewStaticProvider()
	if !f.Default.IsZero() {
		if err := f.Default.Decode(&p.Default); err != nil {
			return nil, fmt.Errorf("parsing default moderation config: %w", err)
		}
	}
	for guildID, node := range f.Guilds {
		cfg := p.Default.Clone()
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parsing moderation config for guild %s: %w", guildID, err)
		}
		cfg.GuildID = guildID
		p.Guilds[guildID] = cfg
	}
	return p, nil
}

func LoadFile(path string) (*StaticProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(raw)
}

const cacheName = "guild-config"

// CachedProvider fronts a slower provider (eg, a dashboard database) with a CacheStore. Guilds without a config are cached too, so they don't reach the inner provider on every event.
type CachedProvider struct {
	Inner  Provider
	Cache  cachestore.CacheStore
	Logger *slog.Logger
}

var _ Provider = (*CachedProvider)(nil)

func (p *CachedProvider) GuildConfig(ctx context.Context, guildID string) (*GuildConfig, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cached, ok, err := cachestore.GetJSON[GuildConfig](ctx, p.Cache, cacheName, guildID)
	if err != nil {
		logger.Warn("guild config cache read failed", "guild", guildID, "err", err)
	} else if ok {
		return cached, nil
	}

	cfg, err := p.Inner.GuildConfig(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if err := cachestore.SetJSON(ctx, p.Cache, cacheName, guildID, cfg); err != nil {
		logger.Warn("guild config cache write failed", "guild", guildID, "err", err)
	}
	return cfg, nil
}

// Invalidate drops the cached config for a guild, eg after a dashboard edit.
func (p *CachedProvider) Invalidate(ctx context.Context, guildID string) error {
	return p.Cache.Purge(ctx, cacheName, guildID)
}
