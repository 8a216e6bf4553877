package projector

import (
	"fmt"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/orka-sh/orka/internal/core"
)

func field(id uint32, value string) core.ProjectedField {
	return core.ProjectedField{FieldID: id, Value: value}
}

func projectPod(raw map[string]any) []core.ProjectedField {
	var out []core.ProjectedField

	containerStatuses, _, _ := unstructured.NestedSlice(raw, "status", "containerStatuses")
	var ready, restarts int64
	total := int64(len(containerStatuses))
	for _, cs := range containerStatuses {
		m, ok := cs.(map[string]any)
		if !ok {
			continue
		}
		if r, _, _ := unstructured.NestedBool(m, "ready"); r {
			ready++
		}
		if rc, _, _ := unstructured.NestedInt64(m, "restartCount"); rc > 0 {
			restarts += rc
		}
	}
	out = append(out, field(PodReady, fmt.Sprintf("%d/%d", ready, total)))
	out = append(out, field(PodRestarts, strconv.FormatInt(restarts, 10)))

	phase, _, _ := unstructured.NestedString(raw, "status", "phase")
	reason, _, _ := unstructured.NestedString(raw, "status", "reason")
	status := phase
	if reason != "" {
		status = reason
	}
	if status != "" {
		out = append(out, field(PodStatus, status))
	}

	if node, ok, _ := unstructured.NestedString(raw, "spec", "nodeName"); ok && node != "" {
		out = append(out, field(PodNode, node))
	}

	return out
}

func projectDeployment(raw map[string]any) []core.ProjectedField {
	replicas, _, _ := unstructured.NestedInt64(raw, "status", "replicas")
	ready, _, _ := unstructured.NestedInt64(raw, "status", "readyReplicas")
	updated, _, _ := unstructured.NestedInt64(raw, "status", "updatedReplicas")
	available, _, _ := unstructured.NestedInt64(raw, "status", "availableReplicas")

	return []core.ProjectedField{
		field(DeploymentReady, fmt.Sprintf("%d/%d", ready, replicas)),
		field(DeploymentUpdated, strconv.FormatInt(updated, 10)),
		field(DeploymentAvailable, strconv.FormatInt(available, 10)),
	}
}

func projectStatefulSet(raw map[string]any) []core.ProjectedField {
	replicas, _, _ := unstructured.NestedInt64(raw, "status", "replicas")
	ready, _, _ := unstructured.NestedInt64(raw, "status", "readyReplicas")

	return []core.ProjectedField{
		field(StatefulSetReady, fmt.Sprintf("%d/%d", ready, replicas)),
	}
}

func projectDaemonSet(raw map[string]any) []core.ProjectedField {
	desired, _, _ := unstructured.NestedInt64(raw, "status", "desiredNumberScheduled")
	current, _, _ := unstructured.NestedInt64(raw, "status", "currentNumberScheduled")
	ready, _, _ := unstructured.NestedInt64(raw, "status", "numberReady")
	updated, _, _ := unstructured.NestedInt64(raw, "status", "updatedNumberScheduled")
	available, _, _ := unstructured.NestedInt64(raw, "status", "numberAvailable")

	return []core.ProjectedField{
		field(DaemonSetDesired, strconv.FormatInt(desired, 10)),
		field(DaemonSetCurrent, strconv.FormatInt(current, 10)),
		field(DaemonSetReady, strconv.FormatInt(ready, 10)),
		field(DaemonSetUpdated, strconv.FormatInt(updated, 10)),
		field(DaemonSetAvailable, strconv.FormatInt(available, 10)),
	}
}

func projectService(raw map[string]any) []core.ProjectedField {
	var out []core.ProjectedField

	if t, ok, _ := unstructured.NestedString(raw, "spec", "type"); ok && t != "" {
		out = append(out, field(ServiceType, t))
	}
	if ip, ok, _ := unstructured.NestedString(raw, "spec", "clusterIP"); ok && ip != "" {
		out = append(out, field(ServiceClusterIP, ip))
	}

	var externalIPs []string
	if ips, _, _ := unstructured.NestedStringSlice(raw, "spec", "externalIPs"); len(ips) > 0 {
		externalIPs = ips
	} else if ingress, _, _ := unstructured.NestedSlice(raw, "status", "loadBalancer", "ingress"); len(ingress) > 0 {
		for _, it := range ingress {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if ip, _, _ := unstructured.NestedString(m, "ip"); ip != "" {
				externalIPs = append(externalIPs, ip)
			} else if host, _, _ := unstructured.NestedString(m, "hostname"); host != "" {
				externalIPs = append(externalIPs, host)
			}
		}
	}
	if len(externalIPs) > 0 {
		out = append(out, field(ServiceExternalIP, strings.Join(externalIPs, ",")))
	}

	if ports, _, _ := unstructured.NestedSlice(raw, "spec", "ports"); len(ports) > 0 {
		var formatted []string
		for i, p := range ports {
			if i >= 4 {
				break
			}
			m, ok := p.(map[string]any)
			if !ok {
				continue
			}
			portNum, _, _ := unstructured.NestedInt64(m, "port")
			proto, _, _ := unstructured.NestedString(m, "protocol")
			if proto == "" {
				proto = "TCP"
			}
			if name, ok, _ := unstructured.NestedString(m, "name"); ok && name != "" {
				formatted = append(formatted, fmt.Sprintf("%s:%d", name, portNum))
			} else {
				formatted = append(formatted, fmt.Sprintf("%d/%s", portNum, proto))
			}
		}
		if len(formatted) > 0 {
			out = append(out, field(ServicePorts, strings.Join(formatted, ",")))
		}
	}

	return out
}

func projectIngress(raw map[string]any) []core.ProjectedField {
	var out []core.ProjectedField

	if class, ok, _ := unstructured.NestedString(raw, "spec", "ingressClassName"); ok && class != "" {
		out = append(out, field(IngressClass, class))
	}

	if rules, _, _ := unstructured.NestedSlice(raw, "spec", "rules"); len(rules) > 0 {
		var hosts []string
		for _, r := range rules {
			m, ok := r.(map[string]any)
			if !ok {
				continue
			}
			if host, _, _ := unstructured.NestedString(m, "host"); host != "" {
				hosts = append(hosts, host)
			}
		}
		if len(hosts) > 0 {
			out = append(out, field(IngressHosts, strings.Join(hosts, ",")))
		}
	}

	if ingress, _, _ := unstructured.NestedSlice(raw, "status", "loadBalancer", "ingress"); len(ingress) > 0 {
		var addrs []string
		for _, it := range ingress {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if ip, _, _ := unstructured.NestedString(m, "ip"); ip != "" {
				addrs = append(addrs, ip)
			} else if host, _, _ := unstructured.NestedString(m, "hostname"); host != "" {
				addrs = append(addrs, host)
			}
		}
		if len(addrs) > 0 {
			out = append(out, field(IngressAddress, strings.Join(addrs, ",")))
		}
	}

	if tls, _, _ := unstructured.NestedSlice(raw, "spec", "tls"); len(tls) > 0 {
		out = append(out, field(IngressTLS, "Y"))
	} else {
		out = append(out, field(IngressTLS, "N"))
	}

	return out
}

func projectJob(raw map[string]any) []core.ProjectedField {
	var out []core.ProjectedField

	desired, ok, _ := unstructured.NestedInt64(raw, "spec", "completions")
	if !ok {
		desired = 1
	}
	succeeded, _, _ := unstructured.NestedInt64(raw, "status", "succeeded")
	out = append(out, field(JobCompletions, fmt.Sprintf("%d/%d", succeeded, desired)))

	status := ""
	if conditions, _, _ := unstructured.NestedSlice(raw, "status", "conditions"); len(conditions) > 0 {
		for _, c := range conditions {
			m, ok := c.(map[string]any)
			if !ok {
				continue
			}
			t, _, _ := unstructured.NestedString(m, "type")
			s, _, _ := unstructured.NestedString(m, "status")
			if t == "Complete" && s == "True" {
				status = "Complete"
				break
			}
			if t == "Failed" && s == "True" {
				status = "Failed"
			}
		}
	}
	if status == "" {
		if active, _, _ := unstructured.NestedInt64(raw, "status", "active"); active > 0 {
			status = fmt.Sprintf("Active (%d)", active)
		}
	}
	if status == "" {
		status = "-"
	}
	out = append(out, field(JobStatus, status))

	return out
}

func projectCronJob(raw map[string]any) []core.ProjectedField {
	var out []core.ProjectedField

	if schedule, ok, _ := unstructured.NestedString(raw, "spec", "schedule"); ok && schedule != "" {
		out = append(out, field(CronJobSchedule, schedule))
	}
	if suspend, ok, _ := unstructured.NestedBool(raw, "spec", "suspend"); ok {
		val := "False"
		if suspend {
			val = "True"
		}
		out = append(out, field(CronJobSuspend, val))
	}
	active, _, _ := unstructured.NestedSlice(raw, "status", "active")
	out = append(out, field(CronJobActive, strconv.Itoa(len(active))))
	if ts, ok, _ := unstructured.NestedString(raw, "status", "lastScheduleTime"); ok && ts != "" {
		out = append(out, field(CronJobLastSchedule, ts))
	}

	return out
}

func projectPVC(raw map[string]any) []core.ProjectedField {
	var out []core.ProjectedField

	if phase, ok, _ := unstructured.NestedString(raw, "status", "phase"); ok && phase != "" {
		out = append(out, field(PVCStatus, phase))
	}
	if volume, ok, _ := unstructured.NestedString(raw, "spec", "volumeName"); ok && volume != "" {
		out = append(out, field(PVCVolume, volume))
	}
	if capacity, ok, _ := unstructured.NestedString(raw, "status", "capacity", "storage"); ok && capacity != "" {
		out = append(out, field(PVCCapacity, capacity))
	}
	if modes, _, _ := unstructured.NestedStringSlice(raw, "spec", "accessModes"); len(modes) > 0 {
		out = append(out, field(PVCAccessModes, strings.Join(modes, ",")))
	}
	if sc, ok, _ := unstructured.NestedString(raw, "spec", "storageClassName"); ok && sc != "" {
		out = append(out, field(PVCStorageClass, sc))
	}

	return out
}

func projectNode(raw map[string]any) []core.ProjectedField {
	var out []core.ProjectedField

	status := "Unknown"
	if conditions, _, _ := unstructured.NestedSlice(raw, "status", "conditions"); len(conditions) > 0 {
		for _, c := range conditions {
			m, ok := c.(map[string]any)
			if !ok {
				continue
			}
			if t, _, _ := unstructured.NestedString(m, "type"); t == "Ready" {
				if s, _, _ := unstructured.NestedString(m, "status"); s == "True" {
					status = "Ready"
				} else {
					status = "NotReady"
				}
				break
			}
		}
	}
	out = append(out, field(NodeStatus, status))

	var roles []string
	labels, _, _ := unstructured.NestedStringMap(raw, "metadata", "labels")
	for k := range labels {
		if role, ok := strings.CutPrefix(k, "node-role.kubernetes.io/"); ok {
			if role == "" {
				role = "node"
			}
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		if r, ok := labels["kubernetes.io/role"]; ok && r != "" {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		roles = append(roles, "none")
	}
	out = append(out, field(NodeRoles, strings.Join(roles, ",")))

	if version, ok, _ := unstructured.NestedString(raw, "status", "nodeInfo", "kubeletVersion"); ok && version != "" {
		out = append(out, field(NodeVersion, version))
	}

	return out
}

func projectNamespace(raw map[string]any) []core.ProjectedField {
	if phase, ok, _ := unstructured.NestedString(raw, "status", "phase"); ok && phase != "" {
		return []core.ProjectedField{field(NamespaceStatus, phase)}
	}
	return nil
}
