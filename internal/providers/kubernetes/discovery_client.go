package kubernetes

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/version"
	"k8s.io/apiserver/pkg/cel/openapi/resolver"
	"k8s.io/client-go/discovery"
	"k8s.io/kube-openapi/pkg/validation/spec"

	"github.com/orka-sh/orka/internal/core"
)

// minWatchListVersion is the minimum Kubernetes version that supports
// the WatchList streaming feature (beta, default-on since 1.34).
var minWatchListVersion = semver.MustParse("v1.34.0")

// discoveryClient implements core.DiscoveryClient against the single
// cluster the session was built for.
type discoveryClient struct {
	session *Session
}

// NewDiscoveryClient returns a core.DiscoveryClient backed by the
// Kubernetes discovery API.
func NewDiscoveryClient(session *Session) core.DiscoveryClient {
	return &discoveryClient{session: session}
}

var _ core.DiscoveryClient = (*discoveryClient)(nil)

// LookupResource verifies that the given group/version/resource triple
// exists on the cluster. It returns the validated GVR or a validation
// error if the resource is not recognised.
func (d *discoveryClient) LookupResource(ctx context.Context, group, version, resource string) (schema.GroupVersionResource, error) {
	client, err := d.client()
	if err != nil {
		return schema.GroupVersionResource{}, err
	}

	gvr := schema.GroupVersionResource{
		Group:    group,
		Version:  version,
		Resource: resource,
	}

	resources, err := client.ServerResourcesForGroupVersion(gvr.GroupVersion().String())
	if err != nil {
		return schema.GroupVersionResource{}, wrapK8sError(err)
	}

	for i := range resources.APIResources {
		if resources.APIResources[i].Name == gvr.Resource {
			return gvr, nil
		}
	}
	return schema.GroupVersionResource{}, wrapK8sError(apierrors.NewBadRequest(fmt.Sprintf("unable to recognize resource %s", gvr)))
}

// ServerResources returns the full list of API resources available on
// the cluster.
func (d *discoveryClient) ServerResources(ctx context.Context) ([]*metav1.APIResourceList, error) {
	client, err := d.client()
	if err != nil {
		return nil, err
	}

	_, resources, err := client.ServerGroupsAndResources()
	return resources, wrapK8sError(err)
}

// ResolveSchema fetches the OpenAPI schema for the given GVK from the
// cluster's discovery endpoint.
func (d *discoveryClient) ResolveSchema(ctx context.Context, group, version, kind string) (*spec.Schema, error) {
	client, err := d.client()
	if err != nil {
		return nil, err
	}

	schemaResolver := &resolver.ClientDiscoveryResolver{
		Discovery: client,
	}
	gvk := schema.GroupVersionKind{
		Group:   group,
		Version: version,
		Kind:    kind,
	}
	resolved, err := schemaResolver.ResolveSchema(gvk)
	return resolved, wrapK8sError(err)
}

// ServerVersion returns the Kubernetes version of the cluster.
func (d *discoveryClient) ServerVersion(ctx context.Context) (*version.Info, error) {
	client, err := d.client()
	if err != nil {
		return nil, err
	}
	info, err := client.ServerVersion()
	return info, wrapK8sError(err)
}

// SupportsWatchList reports whether the cluster supports the WatchList
// streaming feature (Kubernetes >= 1.34).
// See https://kubernetes.io/docs/reference/using-api/api-concepts/#streaming-lists
func (d *discoveryClient) SupportsWatchList(ctx context.Context) (bool, error) {
	info, err := d.ServerVersion(ctx)
	if err != nil {
		return false, err
	}

	kubeVersion, err := semver.NewVersion(info.String())
	if err != nil {
		return false, err
	}

	return kubeVersion.GreaterThanEqual(minWatchListVersion), nil
}

// client returns a discovery client built from the session's shared
// rest.Config.
func (d *discoveryClient) client() (*discovery.DiscoveryClient, error) {
	dc, err := discovery.NewDiscoveryClientForConfig(d.session.RESTConfig())
	if err != nil {
		return nil, wrapK8sError(err)
	}
	return dc, nil
}
