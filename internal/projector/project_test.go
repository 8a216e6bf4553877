package projector

import "testing"

func TestBuiltinFor_RecognizesKinds(t *testing.T) {
	cases := []struct {
		group, version, kind string
		want                 bool
	}{
		{"", "v1", "Pod", true},
		{"apps", "v1", "Deployment", true},
		{"example.com", "v1", "Widget", false},
	}

	for _, c := range cases {
		if got := IsBuiltin(c.group, c.version, c.kind); got != c.want {
			t.Errorf("IsBuiltin(%s,%s,%s) = %v, want %v", c.group, c.version, c.kind, got, c.want)
		}
		p := BuiltinFor(c.group, c.version, c.kind)
		if (p != nil) != c.want {
			t.Errorf("BuiltinFor(%s,%s,%s) non-nil = %v, want %v", c.group, c.version, c.kind, p != nil, c.want)
		}
	}
}

func TestProjectPod_ReadyAndRestarts(t *testing.T) {
	raw := map[string]any{
		"spec": map[string]any{"nodeName": "node-1"},
		"status": map[string]any{
			"phase": "Running",
			"containerStatuses": []any{
				map[string]any{"ready": true, "restartCount": int64(2)},
				map[string]any{"ready": false, "restartCount": int64(1)},
			},
		},
	}

	fields := projectPod(raw)

	want := map[uint32]string{
		PodReady:    "1/2",
		PodRestarts: "3",
		PodStatus:   "Running",
		PodNode:     "node-1",
	}
	got := map[uint32]string{}
	for _, f := range fields {
		got[f.FieldID] = f.Value
	}
	for id, wantVal := range want {
		if gotVal := got[id]; gotVal != wantVal {
			t.Errorf("field %d = %q, want %q", id, gotVal, wantVal)
		}
	}
}

func TestProjectDeployment_ReadyRatio(t *testing.T) {
	raw := map[string]any{
		"status": map[string]any{
			"replicas":          int64(3),
			"readyReplicas":     int64(2),
			"updatedReplicas":   int64(3),
			"availableReplicas": int64(2),
		},
	}

	fields := projectDeployment(raw)
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	if fields[0].Value != "2/3" {
		t.Errorf("DeploymentReady = %q, want %q", fields[0].Value, "2/3")
	}
}

func TestProjectNamespace_NoPhase(t *testing.T) {
	if fields := projectNamespace(map[string]any{}); fields != nil {
		t.Errorf("expected nil fields for namespace with no phase, got %v", fields)
	}
}
