package kubernetes

import (
	"errors"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/orka-sh/orka/internal/core"
)

// statusReasonToDomainKind maps Kubernetes StatusReason values onto the
// five-kind domain error taxonomy. This keeps the K8s-specific mapping
// inside the adapter layer, preventing it from leaking into the api or
// core layers.
var statusReasonToDomainKind = map[metav1.StatusReason]core.ErrorKind{
	metav1.StatusReasonUnauthorized:          core.KindCapability,
	metav1.StatusReasonForbidden:             core.KindCapability,
	metav1.StatusReasonNotFound:              core.KindNotFound,
	metav1.StatusReasonGone:                  core.KindNotFound,
	metav1.StatusReasonAlreadyExists:         core.KindConflict,
	metav1.StatusReasonConflict:              core.KindConflict,
	metav1.StatusReasonInvalid:               core.KindValidation,
	metav1.StatusReasonBadRequest:            core.KindValidation,
	metav1.StatusReasonNotAcceptable:         core.KindValidation,
	metav1.StatusReasonRequestEntityTooLarge: core.KindValidation,
	metav1.StatusReasonUnsupportedMediaType:  core.KindValidation,
	metav1.StatusReasonExpired:               core.KindValidation,
	metav1.StatusReasonMethodNotAllowed:      core.KindCapability,
	metav1.StatusReasonServerTimeout:         core.KindInternal,
	metav1.StatusReasonStoreReadError:        core.KindInternal,
	metav1.StatusReasonTimeout:               core.KindInternal,
	// TooManyRequests is how a PodDisruptionBudget-blocked eviction
	// surfaces; treat it as a conflict so drain's retry loop can tell
	// it apart from a genuine internal failure.
	metav1.StatusReasonTooManyRequests:       core.KindConflict,
	metav1.StatusReasonInternalError:         core.KindInternal,
	metav1.StatusReasonServiceUnavailable:    core.KindInternal,
}

// wrapK8sError converts a Kubernetes API error into a core.DomainError
// carrying the appropriate kind. Non-K8s errors are returned as-is;
// callers should only pass errors originating from K8s API calls.
func wrapK8sError(err error) error {
	if err == nil {
		return nil
	}

	var apiStatus apierrors.APIStatus
	if !errors.As(err, &apiStatus) {
		return err
	}

	kind, ok := statusReasonToDomainKind[apiStatus.Status().Reason]
	if !ok {
		kind = core.KindInternal
	}

	return core.NewDomainError(kind, apiStatus.Status().Message, err)
}
