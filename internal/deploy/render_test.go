package deploy

import (
	"strings"
	"testing"
)

func TestDeployer_Render(t *testing.T) {
	d := testDeployer(t)

	var sb strings.Builder
	if err := d.Render(&sb); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := sb.String()

	docs := strings.Split(out, "---\n")
	if len(docs) != 5 {
		t.Fatalf("rendered %d documents, want 5", len(docs))
	}

	for _, want := range []string{
		"kind: Secret",
		"kind: Deployment",
		"kind: Service",
		"name: petclinic-was",
		"name: petclinic-edge",
		"name: petclinic-db",
		"path: /livez",
		"path: /readyz",
		"path: /health",
		"containerPort: 8080",
		"containerPort: 80",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output missing %q", want)
		}
	}

	// Secret values render under stringData, not in any log path.
	if !strings.Contains(out, "stringData:") {
		t.Error("secret should render stringData")
	}
}
