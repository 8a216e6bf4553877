// Package kubernetes provides direct Kubernetes API access for the
// single cluster Orka was started against. It implements
// core.DiscoveryClient, core.ResourceRepo, and core.RuntimeRepo.
//
// Unlike a multi-tenant proxy, Orka runs as the user's own process: the
// kubeconfig's current (or explicitly selected) context supplies both
// the server address and the client identity, and RBAC is enforced by
// the API server exactly as it would be for any kubectl invocation.
package kubernetes

import (
	"fmt"
	"time"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// clientTimeout is the default HTTP timeout applied to rest.Configs
// built from the session, bounding calls that don't themselves accept
// a context.Context (e.g. the legacy discovery client constructors).
const clientTimeout = 30 * time.Second

// Session holds the single rest.Config Orka talks to the cluster
// through. discoveryClient, resourceRepo, and runtimeRepo each build
// lightweight per-call clients from it — cheap relative to the actual
// API call latency, and it keeps this type free of per-client locking.
type Session struct {
	config *rest.Config
}

// NewSession loads a rest.Config from the given kubeconfig path and
// context name. An empty kubeconfig path falls back to $KUBECONFIG,
// then $HOME/.kube/config, then in-cluster config (when running inside
// a pod). An empty context name uses the kubeconfig's current-context.
func NewSession(kubeconfigPath, contextName string) (*Session, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		loadingRules.ExplicitPath = kubeconfigPath
	}

	overrides := &clientcmd.ConfigOverrides{}
	if contextName != "" {
		overrides.CurrentContext = contextName
	}

	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)

	config, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	config.Timeout = clientTimeout

	return &Session{config: config}, nil
}

// RESTConfig returns a copy of the underlying rest.Config, safe for a
// caller to further customize (e.g. clearing Timeout for a streaming
// call) without mutating the session's own config.
func (s *Session) RESTConfig() *rest.Config {
	return rest.CopyConfig(s.config)
}
