package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config wraps a viper instance and provides typed accessors for every
// configuration key. Create one via New().
type Config struct {
	v *viper.Viper
}

// New initialises a Config by loading values from the config file,
// environment variables, and compiled defaults (in that priority
// order; CLI flags, bound later via BindFlags, take highest priority).
func New() (*Config, error) {
	v := viper.New()

	for _, o := range Options {
		v.SetDefault(o.Key, o.Default)
	}

	// Attempt to load a config file from the current directory or
	// the system-wide location.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/orka/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables are prefixed with ORKA_ and match spec's
	// ORKA_* names one-to-one (viper keys are flat, so no dot
	// replacement is needed beyond AutomaticEnv's own uppercasing).
	v.SetEnvPrefix("ORKA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

// BindFlags registers a CLI flag for every entry in Options and binds
// it to the underlying viper key so that flag values override file and
// environment sources.
func (c *Config) BindFlags(fs *pflag.FlagSet) error {
	for _, o := range Options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Watcher / ingest accessors
// ---------------------------------------------------------------------------

// RelistSecs returns the full-relist interval. The watcher jitters this
// by ±10% per cycle.
func (c *Config) RelistSecs() time.Duration {
	return time.Duration(c.v.GetInt(keyRelistSecs)) * time.Second
}

// WatchBackoffMaxSecs returns the ceiling for exponential watch-restart
// backoff.
func (c *Config) WatchBackoffMaxSecs() time.Duration {
	return time.Duration(c.v.GetInt(keyWatchBackoffMaxSecs)) * time.Second
}

// SnapshotPageLimit returns the page size used while relisting.
func (c *Config) SnapshotPageLimit() int64 {
	return int64(c.v.GetInt(keySnapshotPageLimit))
}

// QueueCap returns the delta channel capacity between the watcher and
// the coalescer.
func (c *Config) QueueCap() int {
	return c.v.GetInt(keyQueueCap)
}

// CoalescerCap returns the coalescer's per-UID capacity before it starts
// evicting the oldest still-pending entry.
func (c *Config) CoalescerCap() int {
	return c.v.GetInt(keyCoalescerCap)
}

// ---------------------------------------------------------------------------
// Ops accessors
// ---------------------------------------------------------------------------

// OpsQueueCap returns the bounded channel capacity for ops streams (logs,
// exec, port-forward events).
func (c *Config) OpsQueueCap() int {
	return c.v.GetInt(keyOpsQueueCap)
}

// DrainTimeoutSecs returns the wall-clock timeout for a node drain.
func (c *Config) DrainTimeoutSecs() time.Duration {
	return time.Duration(c.v.GetInt(keyDrainTimeoutSecs)) * time.Second
}

// DrainPollSecs returns the retry interval between eviction attempts
// during a drain.
func (c *Config) DrainPollSecs() time.Duration {
	return time.Duration(c.v.GetInt(keyDrainPollSecs)) * time.Second
}

// PortForwardBindAddr returns the local bind address for port-forward
// listeners.
func (c *Config) PortForwardBindAddr() string {
	return c.v.GetString(keyPortForwardBindAddr)
}

// ---------------------------------------------------------------------------
// Listing / projection accessors
// ---------------------------------------------------------------------------

// ListLiteBuiltins reports whether the lite-list fast path is enabled
// for built-in kinds.
func (c *Config) ListLiteBuiltins() bool {
	return c.v.GetBool(keyListLiteBuiltins)
}

// ListLiteGroups returns the allow-list of API groups eligible for the
// lite-list fast path. A single "*" entry (the default) means all
// groups are eligible.
func (c *Config) ListLiteGroups() []string {
	raw := c.v.GetString(keyListLiteGroups)
	if raw == "" {
		return nil
	}
	groups := strings.Split(raw, ",")
	for i := range groups {
		groups[i] = strings.TrimSpace(groups[i])
	}
	return groups
}

// LiteProject reports whether the projector runs in lite-list mode.
func (c *Config) LiteProject() bool {
	return c.v.GetBool(keyLiteProject)
}

// ListEnrich reports whether lite-list responses also carry labels and
// annotations.
func (c *Config) ListEnrich() bool {
	return c.v.GetBool(keyListEnrich)
}

// ---------------------------------------------------------------------------
// Apply / diff accessors
// ---------------------------------------------------------------------------

// MaxYAMLBytes returns the maximum accepted size, in bytes, of a YAML
// document submitted to apply or diff.
func (c *Config) MaxYAMLBytes() int {
	return c.v.GetInt(keyMaxYAMLBytes)
}

// MaxYAMLNodes returns the maximum accepted node count of a parsed YAML
// or JSON document.
func (c *Config) MaxYAMLNodes() int {
	return c.v.GetInt(keyMaxYAMLNodes)
}

// DisableApplyPreflight reports whether the stale resourceVersion
// preflight guard is disabled.
func (c *Config) DisableApplyPreflight() bool {
	return c.v.GetBool(keyDisableApplyPreflight)
}

// DisableLastApplied reports whether persisting last-applied records
// after a successful apply is turned off.
func (c *Config) DisableLastApplied() bool {
	return c.v.GetBool(keyDisableLastApplied)
}

// ---------------------------------------------------------------------------
// Persistence accessors
// ---------------------------------------------------------------------------

// ZstdLevel returns the zstd compression level used for persisted
// last-applied YAML bodies.
func (c *Config) ZstdLevel() int {
	return c.v.GetInt(keyZstdLevel)
}

// DBPath returns the last-applied log path, defaulting to
// $HOME/.orka/lastapplied.log when unset.
func (c *Config) DBPath() string {
	if p := c.v.GetString(keyDBPath); p != "" {
		return p
	}
	return defaultUnderHome(".orka/lastapplied.log")
}

// ---------------------------------------------------------------------------
// Search accessors
// ---------------------------------------------------------------------------

// MaxIndexBytes returns the memory-pressure cap, in bytes, that triggers
// staged search index pruning.
func (c *Config) MaxIndexBytes() int64 {
	return int64(c.v.GetInt(keyMaxIndexBytes))
}

// MaxPostingsPerKey returns the maximum postings recorded per
// label/annotation key; once a list is full, later documents are not
// added to it.
func (c *Config) MaxPostingsPerKey() int {
	return c.v.GetInt(keyMaxPostingsPerKey)
}

// ---------------------------------------------------------------------------
// Metrics accessors
// ---------------------------------------------------------------------------

// MetricsAddr returns the Prometheus metrics listen address, or "" to
// disable the metrics server.
func (c *Config) MetricsAddr() string {
	return c.v.GetString(keyMetricsAddr)
}

// ---------------------------------------------------------------------------
// Discovery / schema accessors
// ---------------------------------------------------------------------------

// DiscoveryPath returns the discovery disk-cache path, defaulting to
// $HOME/.orka/cache/discovery/default.json when unset.
func (c *Config) DiscoveryPath() string {
	if p := c.v.GetString(keyDiscoveryPath); p != "" {
		return p
	}
	return defaultUnderHome(".orka/cache/discovery/default.json")
}

// DiscoveryTTLSecs returns the TTL applied to the discovery disk cache.
func (c *Config) DiscoveryTTLSecs() time.Duration {
	return time.Duration(c.v.GetInt(keyDiscoveryTTLSecs)) * time.Second
}

// DeferSchema reports whether CRD schema lookup is kept off the
// snapshot critical path.
func (c *Config) DeferSchema() bool {
	return c.v.GetBool(keyDeferSchema)
}

// SchemaOfflineOnly reports whether CRD schema is only ever served from
// cache, never fetched live.
func (c *Config) SchemaOfflineOnly() bool {
	return c.v.GetBool(keySchemaOfflineOnly)
}

// SchemaBuiltinSkip reports whether schema lookup is skipped entirely
// for built-in kinds.
func (c *Config) SchemaBuiltinSkip() bool {
	return c.v.GetBool(keySchemaBuiltinSkip)
}

// ---------------------------------------------------------------------------
// Kube client accessors
// ---------------------------------------------------------------------------

// Kubeconfig returns the configured kubeconfig path, or "" to fall back
// to $KUBECONFIG / $HOME/.kube/config / in-cluster config resolution.
func (c *Config) Kubeconfig() string {
	return c.v.GetString(keyKubeconfig)
}

// KubeContext returns the kubeconfig context to use, or "" for
// current-context.
func (c *Config) KubeContext() string {
	return c.v.GetString(keyKubeContext)
}

// defaultUnderHome joins rel onto the user's home directory, falling
// back to a relative path if the home directory can't be resolved.
func defaultUnderHome(rel string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return rel
	}
	return home + string(os.PathSeparator) + rel
}
