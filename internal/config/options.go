package config

import "strings"

// Option describes a single configuration entry: its viper key, the
// corresponding CLI flag name, the compiled default, and a
// human-readable description shown in --help output.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// Options defines every configuration entry Orka recognizes, registered
// as both a viper default and a CLI flag. Order mirrors spec §6's
// environment variable table.
var Options = []Option{
	{Key: keyRelistSecs, Flag: toFlag(keyRelistSecs), Default: 300, Description: "Watcher relist interval in seconds (jittered ±10%)"},
	{Key: keyWatchBackoffMaxSecs, Flag: toFlag(keyWatchBackoffMaxSecs), Default: 30, Description: "Watcher max backoff in seconds"},
	{Key: keySnapshotPageLimit, Flag: toFlag(keySnapshotPageLimit), Default: 500, Description: "List page size during relist"},
	{Key: keyQueueCap, Flag: toFlag(keyQueueCap), Default: 2048, Description: "Delta channel capacity"},
	{Key: keyCoalescerCap, Flag: toFlag(keyCoalescerCap), Default: 2048, Description: "Coalescer per-UID capacity"},
	{Key: keyOpsQueueCap, Flag: toFlag(keyOpsQueueCap), Default: 1024, Description: "Ops stream channel capacity"},
	{Key: keyListLiteBuiltins, Flag: toFlag(keyListLiteBuiltins), Default: true, Description: "Enable lite-list fast path for built-in kinds"},
	{Key: keyListLiteGroups, Flag: toFlag(keyListLiteGroups), Default: "*", Description: "Comma-separated API groups eligible for the lite-list fast path"},
	{Key: keyLiteProject, Flag: toFlag(keyLiteProject), Default: true, Description: "Apply projector in lite mode"},
	{Key: keyListEnrich, Flag: toFlag(keyListEnrich), Default: false, Description: "Carry labels/annotations in lite mode"},
	{Key: keyMaxYAMLBytes, Flag: toFlag(keyMaxYAMLBytes), Default: 1_000_000, Description: "Maximum accepted YAML document size in bytes"},
	{Key: keyMaxYAMLNodes, Flag: toFlag(keyMaxYAMLNodes), Default: 100_000, Description: "Maximum accepted YAML/JSON node count"},
	{Key: keyDisableApplyPreflight, Flag: toFlag(keyDisableApplyPreflight), Default: false, Description: "Disable the stale resourceVersion preflight guard on apply"},
	{Key: keyDisableLastApplied, Flag: toFlag(keyDisableLastApplied), Default: false, Description: "Disable persisting last-applied records"},
	{Key: keyZstdLevel, Flag: toFlag(keyZstdLevel), Default: 3, Description: "zstd compression level for last-applied YAML"},
	{Key: keyDBPath, Flag: toFlag(keyDBPath), Default: "", Description: "Last-applied log path (defaults to $HOME/.orka/lastapplied.log)"},
	{Key: keyMaxIndexBytes, Flag: toFlag(keyMaxIndexBytes), Default: 64 << 20, Description: "Search index memory-pressure cap in bytes"},
	{Key: keyMaxPostingsPerKey, Flag: toFlag(keyMaxPostingsPerKey), Default: 50_000, Description: "Maximum postings recorded per label/annotation key"},
	{Key: keyDrainTimeoutSecs, Flag: toFlag(keyDrainTimeoutSecs), Default: 300, Description: "Node drain wall-clock timeout in seconds"},
	{Key: keyDrainPollSecs, Flag: toFlag(keyDrainPollSecs), Default: 2, Description: "Node drain eviction retry interval in seconds"},
	{Key: keyPortForwardBindAddr, Flag: toFlag(keyPortForwardBindAddr), Default: "127.0.0.1", Description: "Local bind address for port-forward listeners"},
	{Key: keyMetricsAddr, Flag: toFlag(keyMetricsAddr), Default: "", Description: "Prometheus metrics listen address (disabled when empty)"},
	{Key: keyDiscoveryPath, Flag: toFlag(keyDiscoveryPath), Default: "", Description: "Discovery disk cache path (defaults to $HOME/.orka/cache/discovery/default.json)"},
	{Key: keyDiscoveryTTLSecs, Flag: toFlag(keyDiscoveryTTLSecs), Default: 86400, Description: "Discovery disk cache TTL in seconds"},
	{Key: keyDeferSchema, Flag: toFlag(keyDeferSchema), Default: true, Description: "Keep CRD schema lookup out of the snapshot critical path"},
	{Key: keySchemaOfflineOnly, Flag: toFlag(keySchemaOfflineOnly), Default: false, Description: "Never fetch CRD schema from the live cluster"},
	{Key: keySchemaBuiltinSkip, Flag: toFlag(keySchemaBuiltinSkip), Default: true, Description: "Never fetch CRD schema for built-in kinds"},
	{Key: keyKubeconfig, Flag: toFlag(keyKubeconfig), Default: "", Description: "Path to kubeconfig (defaults to $KUBECONFIG or $HOME/.kube/config)"},
	{Key: keyKubeContext, Flag: toFlag(keyKubeContext), Default: "", Description: "kubeconfig context to use (defaults to current-context)"},
}

// toFlag converts a viper key like "max_yaml_bytes" into a CLI flag like
// "max-yaml-bytes" by replacing underscores with hyphens.
func toFlag(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "_", "-")
}
