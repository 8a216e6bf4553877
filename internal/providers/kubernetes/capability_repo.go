package kubernetes

import (
	"context"

	authorizationv1 "k8s.io/api/authorization/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/orka-sh/orka/internal/core"
)

// capabilityRepo implements core.CapabilityRepo via
// SelfSubjectAccessReview, the same RBAC self-check Kubernetes clients
// use to answer "can I do this" without attempting the action.
type capabilityRepo struct {
	session *Session
}

// NewCapabilityRepo returns a core.CapabilityRepo backed by
// SelfSubjectAccessReview.
func NewCapabilityRepo(session *Session) core.CapabilityRepo {
	return &capabilityRepo{session: session}
}

var _ core.CapabilityRepo = (*capabilityRepo)(nil)

// CanI issues a SelfSubjectAccessReview for the given check and
// returns the allowed verdict. A failed review (e.g. the reviews API
// itself is unreachable) is returned as an error; callers that only
// want a best-effort probe should treat any error as "not allowed".
func (r *capabilityRepo) CanI(ctx context.Context, check core.AccessCheck) (bool, error) {
	clientset, err := kubernetes.NewForConfig(r.session.RESTConfig())
	if err != nil {
		return false, core.NewDomainError(core.KindInternal, "create clientset for access review", err)
	}

	ssar := &authorizationv1.SelfSubjectAccessReview{
		Spec: authorizationv1.SelfSubjectAccessReviewSpec{
			ResourceAttributes: &authorizationv1.ResourceAttributes{
				Namespace:   check.Namespace,
				Verb:        check.Verb,
				Group:       check.Group,
				Resource:    check.Resource,
				Subresource: check.Subresource,
			},
		},
	}

	created, err := clientset.AuthorizationV1().SelfSubjectAccessReviews().Create(ctx, ssar, metav1.CreateOptions{})
	if err != nil {
		return false, wrapK8sError(err)
	}
	return created.Status.Allowed, nil
}
