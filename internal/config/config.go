// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/petclinic-edge/config.toml",
	"configs/config.toml",
}

// defaultCacheExtensions are the static-asset extensions eligible for caching.
// Everything else always bypasses the cache.
var defaultCacheExtensions = []string{
	".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".ico",
	".svg", ".woff", ".woff2", ".map",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`

	Serve  ServeCmd  `kong:"cmd,default='withargs',help='Run the edge proxy.'"`
	Deploy DeployCmd `kong:"cmd,help='Render or apply the Kubernetes deployment manifests.'"`
}

// ServeCmd holds flags for the serve command. Non-zero values override config.
type ServeCmd struct {
	Host     string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	Upstream string `kong:"help='Upstream endpoint host:port (overrides config, single endpoint).',env='UPSTREAM'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// DeployCmd holds flags shared by the deploy subcommands.
type DeployCmd struct {
	Render RenderCmd `kong:"cmd,help='Write the manifests as YAML to stdout or a file.'"`
	Apply  ApplyCmd  `kong:"cmd,help='Create the manifests in a cluster.'"`

	Namespace  string `kong:"help='Target namespace (overrides config).',env='NAMESPACE'"`
	DBUser     string `kong:"help='Database username for the credentials Secret.',env='DB_USER'"`
	DBPassword string `kong:"help='Database password for the credentials Secret.',env='DB_PASSWORD'"`
}

// RenderCmd writes manifests without contacting a cluster.
type RenderCmd struct {
	Output string `kong:"short='o',help='Output file; defaults to stdout.'"`
}

// ApplyCmd creates manifests in the cluster selected by kubeconfig.
type ApplyCmd struct {
	Kubeconfig string `kong:"help='Path to kubeconfig; defaults to automatic discovery.',env='KUBECONFIG'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Cache    CacheConfig    `toml:"cache"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Deploy   DeployConfig   `toml:"deploy"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (80); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// UpstreamConfig holds the application-server pool settings.
type UpstreamConfig struct {
	// Endpoints are host:port pairs; the host is typically a DNS-resolved
	// service name. Requests round-robin across them.
	Endpoints       []string `toml:"endpoints"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	IdleConnections int      `toml:"idle_connections"`
	CooldownSeconds int      `toml:"cooldown_seconds"`
}

// CacheConfig holds static-asset cache settings. The cache is on by default;
// the field is inverted because TOML cannot distinguish false from unset.
type CacheConfig struct {
	Disabled     bool     `toml:"disabled"`
	TTLSeconds   int      `toml:"ttl_seconds"`
	Capacity     int      `toml:"capacity"`
	MaxBodyBytes int      `toml:"max_body_bytes"`
	Extensions   []string `toml:"extensions"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// DeployConfig describes the two-tier Kubernetes topology produced by the
// deploy command: an edge Deployment/Service in front of a WAS
// Deployment/Service, plus a database-credentials Secret.
type DeployConfig struct {
	Namespace    string `toml:"namespace"`
	EdgeImage    string `toml:"edge_image"`
	AppImage     string `toml:"app_image"`
	EdgeReplicas int    `toml:"edge_replicas"`
	AppReplicas  int    `toml:"app_replicas"`
	SecretName   string `toml:"secret_name"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/petclinic-edge/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Serve.Host != "" {
		c.Server.Host = cli.Serve.Host
	}
	if cli.Serve.Port != 0 {
		c.Server.Port = cli.Serve.Port
	}
	if cli.Serve.Upstream != "" {
		c.Upstream.Endpoints = []string{cli.Serve.Upstream}
	}
	if cli.Serve.LogLevel != "" {
		c.Log.Level = cli.Serve.LogLevel
	}
	if cli.Deploy.Namespace != "" {
		c.Deploy.Namespace = cli.Deploy.Namespace
	}
}

// normalize lowercases cache extensions and ensures each carries a leading dot.
func (c *Config) normalize() {
	for i, ext := range c.Cache.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && ext[0] != '.' {
			ext = "." + ext
		}
		c.Cache.Extensions[i] = ext
	}
}

func (c *Config) validate() error {
	// Upstream endpoints: at least one well-formed host:port.
	if len(c.Upstream.Endpoints) == 0 {
		return fmt.Errorf("upstream.endpoints is required")
	}
	for _, ep := range c.Upstream.Endpoints {
		host, port, err := net.SplitHostPort(ep)
		if err != nil {
			return fmt.Errorf("upstream.endpoints entry %q is not host:port: %w", ep, err)
		}
		if host == "" || port == "" {
			return fmt.Errorf("upstream.endpoints entry %q has empty host or port", ep)
		}
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.Upstream.CooldownSeconds < 0 {
		return fmt.Errorf("upstream.cooldown_seconds must be non-negative; got %d", c.Upstream.CooldownSeconds)
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must be non-negative; got %d", c.Cache.TTLSeconds)
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must be non-negative; got %d", c.Cache.Capacity)
	}
	if c.Cache.MaxBodyBytes < 0 {
		return fmt.Errorf("cache.max_body_bytes must be non-negative; got %d", c.Cache.MaxBodyBytes)
	}
	for _, ext := range c.Cache.Extensions {
		if ext == "" || ext == "." {
			return fmt.Errorf("cache.extensions contains an empty entry")
		}
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	if c.Deploy.EdgeReplicas < 0 || c.Deploy.AppReplicas < 0 {
		return fmt.Errorf("deploy replica counts must be non-negative; got edge=%d app=%d", c.Deploy.EdgeReplicas, c.Deploy.AppReplicas)
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range []string{"/health", "/edge/status"} {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, TTLSeconds, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key. Setting port=0
// in the config file therefore results in the default port (80).
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 80
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 60
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Upstream.CooldownSeconds == 0 {
		c.Upstream.CooldownSeconds = 10
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 3600 // 1 hour freshness window
	}
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = 1024
	}
	if c.Cache.MaxBodyBytes == 0 {
		c.Cache.MaxBodyBytes = 5 * 1024 * 1024 // 5 MB per asset
	}
	if len(c.Cache.Extensions) == 0 {
		c.Cache.Extensions = append([]string(nil), defaultCacheExtensions...)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Deploy.Namespace == "" {
		c.Deploy.Namespace = "default"
	}
	if c.Deploy.EdgeImage == "" {
		c.Deploy.EdgeImage = "petclinic-edge:latest"
	}
	if c.Deploy.AppImage == "" {
		c.Deploy.AppImage = "spring-petclinic:latest"
	}
	if c.Deploy.EdgeReplicas == 0 {
		c.Deploy.EdgeReplicas = 1
	}
	if c.Deploy.AppReplicas == 0 {
		c.Deploy.AppReplicas = 2
	}
	if c.Deploy.SecretName == "" {
		c.Deploy.SecretName = "petclinic-db"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
