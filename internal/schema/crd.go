// Package schema discovers CRD schemas and builds the schema-derived
// projector used for kinds without a built-in column set
// (internal/projector). Ground truth for the extraction rules below is
// original_source/crates/schema.
package schema

import (
	"context"
	"fmt"
	"strings"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/rest"

	"github.com/orka-sh/orka/internal/core"
)

// maxProjectedPaths mirrors core.maxProjectedPaths: a CrdSchema never
// carries more than 6 projected paths.
const maxProjectedPaths = 6

// maxWalkDepth and maxWalkCandidates bound the OpenAPI-walk fallback so
// a deeply nested or very wide CRD schema can't make discovery
// unreasonably slow.
const (
	maxWalkDepth      = 3
	maxWalkCandidates = 16
)

// Fetcher discovers CrdSchemas for a single cluster by listing
// CustomResourceDefinitions and inspecting their served version's
// printer columns or OpenAPI schema.
type Fetcher struct {
	client apiextensionsclientset.Interface
}

// NewFetcher returns a Fetcher backed by the given rest.Config.
func NewFetcher(config *rest.Config) (*Fetcher, error) {
	client, err := apiextensionsclientset.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("create apiextensions clientset: %w", err)
	}
	return &Fetcher{client: client}, nil
}

// FetchSchema looks up the CRD matching group/kind and builds a
// CrdSchema describing its served version, printer columns, and
// projected paths. It returns (nil, nil) for built-in (non-CRD) kinds,
// recognized by an empty group — Orka never looks those up against the
// apiextensions API.
func (f *Fetcher) FetchSchema(ctx context.Context, group, version, kind string) (*core.CrdSchema, error) {
	if group == "" {
		return nil, nil
	}

	crds, err := f.client.ApiextensionsV1().CustomResourceDefinitions().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, core.NewDomainError(core.KindInternal, "list CustomResourceDefinitions", err)
	}

	var found *apiextensionsv1.CustomResourceDefinition
	for i := range crds.Items {
		crd := &crds.Items[i]
		if crd.Spec.Group == group && crd.Spec.Names.Kind == kind {
			found = crd
			break
		}
	}
	if found == nil {
		return nil, core.NewDomainError(core.KindNotFound, fmt.Sprintf("no CustomResourceDefinition found for %s/%s/%s", group, version, kind), nil)
	}

	servedVersion := selectServedVersion(found.Spec.Versions, version)
	crdVersion := versionByName(found.Spec.Versions, servedVersion)

	printerCols := printerColumnsFor(crdVersion)

	var projectedPaths []core.PathSpec
	if len(printerCols) > 0 {
		for i, c := range printerCols {
			if i >= maxProjectedPaths {
				break
			}
			projectedPaths = append(projectedPaths, core.PathSpec{ID: uint32(i), JSONPath: c.JSONPath})
		}
	} else {
		candidates := derivedPathsFor(crdVersion)
		for i, p := range candidates {
			if i >= maxProjectedPaths {
				break
			}
			projectedPaths = append(projectedPaths, core.PathSpec{ID: uint32(i), JSONPath: p})
		}
	}

	return &core.CrdSchema{
		ServedVersion:  servedVersion,
		PrinterCols:    printerCols,
		ProjectedPaths: projectedPaths,
		Flags:          core.SchemaFlags{FromPrinterColumns: len(printerCols) > 0, FromOpenAPIWalk: len(printerCols) == 0},
	}, nil
}

// selectServedVersion prefers the storage version, then the first
// served version, falling back to the caller-requested version if
// neither is found (e.g. an inconsistent or partially-applied CRD).
func selectServedVersion(versions []apiextensionsv1.CustomResourceDefinitionVersion, requested string) string {
	for _, v := range versions {
		if v.Storage {
			return v.Name
		}
	}
	for _, v := range versions {
		if v.Served {
			return v.Name
		}
	}
	return requested
}

func versionByName(versions []apiextensionsv1.CustomResourceDefinitionVersion, name string) *apiextensionsv1.CustomResourceDefinitionVersion {
	for i := range versions {
		if versions[i].Name == name {
			return &versions[i]
		}
	}
	return nil
}

func printerColumnsFor(v *apiextensionsv1.CustomResourceDefinitionVersion) []core.PrinterCol {
	if v == nil {
		return nil
	}
	var out []core.PrinterCol
	for _, c := range v.AdditionalPrinterColumns {
		if c.Name == "" {
			continue
		}
		jp, ok := normalizeJSONPath(c.JSONPath)
		if !ok {
			continue
		}
		out = append(out, core.PrinterCol{Name: c.Name, JSONPath: jp})
	}
	return out
}

// normalizeJSONPath strips the leading dot from a printer-column path
// (e.g. ".spec.foo.bar[0]"), rejecting empty paths and JSONPath
// wildcards ('*' or '?'); other path syntax is not checked here.
func normalizeJSONPath(jp string) (string, bool) {
	if strings.ContainsAny(jp, "*?") {
		return "", false
	}
	s := strings.TrimPrefix(jp, ".")
	if s == "" {
		return "", false
	}
	return s, true
}

// derivedPathsFor falls back to walking the version's OpenAPI schema
// when the CRD defines no additional printer columns.
func derivedPathsFor(v *apiextensionsv1.CustomResourceDefinitionVersion) []string {
	if v == nil || v.Schema == nil || v.Schema.OpenAPIV3Schema == nil {
		return []string{"spec.name", "spec.namespace"}
	}

	specProps, ok := v.Schema.OpenAPIV3Schema.Properties["spec"]
	if !ok {
		return []string{"spec.name", "spec.namespace"}
	}

	var out []string
	walkObject(specProps.Properties, "spec", 1, &out)
	if len(out) == 0 {
		return []string{"spec.name", "spec.namespace"}
	}
	return out
}

func isScalarType(ty string) bool {
	switch ty {
	case "string", "integer", "number", "boolean":
		return true
	default:
		return false
	}
}

func walkObject(props map[string]apiextensionsv1.JSONSchemaProps, base string, depth int, out *[]string) {
	if depth > maxWalkDepth || len(*out) >= maxWalkCandidates {
		return
	}
	for key, prop := range props {
		path := key
		if base != "" {
			path = base + "." + key
		}

		switch prop.Type {
		case "object":
			if len(prop.Properties) > 0 {
				walkObject(prop.Properties, path, depth+1, out)
			}
		case "array":
			if prop.Items == nil || prop.Items.Schema == nil {
				continue
			}
			item := prop.Items.Schema
			if isScalarType(item.Type) {
				*out = append(*out, path+"[0]")
			} else if item.Type == "object" && len(item.Properties) > 0 {
				walkObject(item.Properties, path+"[0]", depth+1, out)
			}
		default:
			if isScalarType(prop.Type) {
				*out = append(*out, path)
			}
		}

		if len(*out) >= maxWalkCandidates {
			return
		}
	}
}
