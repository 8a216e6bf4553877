// Package config provides unified configuration loading from files,
// environment variables, and CLI flags using viper and pflag.
//
// Resolution order (highest wins):
//  1. CLI flags
//  2. Environment variables (prefix ORKA_, matching spec's ORKA_* names)
//  3. Config file (config.yaml in . or /etc/orka/)
//  4. Compiled defaults
//
// Viper keys below are deliberately flat and lower-cased mirrors of the
// ORKA_* environment variables from spec §6, e.g. key "relist_secs" binds
// to env var ORKA_RELIST_SECS. Dotted namespacing was dropped so the
// external contract (the env var names) stays exact.
package config

const (
	keyRelistSecs            = "relist_secs"
	keyWatchBackoffMaxSecs    = "watch_backoff_max_secs"
	keySnapshotPageLimit      = "snapshot_page_limit"
	keyQueueCap               = "queue_cap"
	keyCoalescerCap           = "coalescer_cap"
	keyOpsQueueCap            = "ops_queue_cap"
	keyListLiteBuiltins       = "list_lite_builtins"
	keyListLiteGroups         = "list_lite_groups"
	keyLiteProject            = "lite_project"
	keyListEnrich             = "list_enrich"
	keyMaxYAMLBytes           = "max_yaml_bytes"
	keyMaxYAMLNodes           = "max_yaml_nodes"
	keyDisableApplyPreflight  = "disable_apply_preflight"
	keyDisableLastApplied     = "disable_lastapplied"
	keyZstdLevel              = "zstd_level"
	keyDBPath                 = "db_path"
	keyMaxIndexBytes          = "max_index_bytes"
	keyMaxPostingsPerKey      = "max_postings_per_key"
	keyDrainTimeoutSecs       = "drain_timeout_secs"
	keyDrainPollSecs          = "drain_poll_secs"
	keyPortForwardBindAddr    = "pf_bind"
	keyMetricsAddr            = "metrics_addr"
	keyDiscoveryPath          = "discovery_path"
	keyDiscoveryTTLSecs       = "discovery_ttl_secs"
	keyDeferSchema            = "defer_schema"
	keySchemaOfflineOnly      = "schema_offline_only"
	keySchemaBuiltinSkip      = "schema_builtin_skip"
	keyKubeconfig             = "kubeconfig"
	keyKubeContext            = "kube_context"
)
