// Package projector implements core.Projector for Orka's built-in
// Kubernetes kinds (Pod, Deployment, StatefulSet, DaemonSet, Service,
// Ingress, Job, CronJob, PersistentVolumeClaim, Node, Namespace), plus
// the registry that looks a projector up by GVK. Schema-derived
// projection for CRDs and other unrecognized kinds lives in
// internal/schema.
package projector

// Stable per-kind column IDs. Ranges are deliberately spaced by
// 1_000 per kind so a future built-in can grow its own column set
// without colliding with its neighbors.
const (
	PodReady     = 10_001
	PodStatus    = 10_002
	PodRestarts  = 10_003
	PodNode      = 10_004

	DeploymentReady     = 11_001
	DeploymentUpdated   = 11_002
	DeploymentAvailable = 11_003

	StatefulSetReady = 12_001

	ServiceType       = 13_001
	ServiceClusterIP  = 13_002
	ServiceExternalIP = 13_003
	ServicePorts      = 13_004

	IngressClass   = 14_001
	IngressHosts   = 14_002
	IngressAddress = 14_003
	IngressTLS     = 14_004

	DaemonSetDesired   = 15_001
	DaemonSetCurrent   = 15_002
	DaemonSetReady     = 15_003
	DaemonSetUpdated   = 15_004
	DaemonSetAvailable = 15_005

	JobCompletions = 16_001
	JobStatus      = 16_002

	CronJobSchedule     = 17_001
	CronJobSuspend      = 17_002
	CronJobActive       = 17_003
	CronJobLastSchedule = 17_004

	PVCStatus       = 18_001
	PVCVolume       = 18_002
	PVCCapacity     = 18_003
	PVCAccessModes  = 18_004
	PVCStorageClass = 18_005

	NodeStatus  = 19_001
	NodeRoles   = 19_002
	NodeVersion = 19_003

	NamespaceStatus = 20_001
)
