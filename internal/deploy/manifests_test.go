package deploy

import (
	"io"
	"log/slog"
	"testing"

	"github.com/reynecat/petclinic-edge/internal/config"
)

func testDeployConfig() config.DeployConfig {
	return config.DeployConfig{
		Namespace:    "petclinic",
		EdgeImage:    "petclinic-edge:1.0",
		AppImage:     "spring-petclinic:3.0",
		EdgeReplicas: 1,
		AppReplicas:  2,
		SecretName:   "petclinic-db",
	}
}

func testDeployer(t *testing.T) *Deployer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d, err := NewDeployer(nil, testDeployConfig(), Credentials{Username: "petclinic", Password: "s3cret"}, logger)
	if err != nil {
		t.Fatalf("NewDeployer: %v", err)
	}
	return d
}

func TestNewDeployer_RequiresCredentials(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := NewDeployer(nil, testDeployConfig(), Credentials{}, logger); err == nil {
		t.Error("NewDeployer should reject empty credentials")
	}
	if _, err := NewDeployer(nil, testDeployConfig(), Credentials{Username: "u"}, logger); err == nil {
		t.Error("NewDeployer should reject missing password")
	}
}

func TestBuildSecret(t *testing.T) {
	d := testDeployer(t)
	s := d.buildSecret()

	if s.Name != "petclinic-db" || s.Namespace != "petclinic" {
		t.Errorf("secret name/ns = %s/%s, want petclinic-db/petclinic", s.Name, s.Namespace)
	}
	if s.StringData["username"] != "petclinic" {
		t.Errorf("username = %q, want petclinic", s.StringData["username"])
	}
	if s.StringData["password"] != "s3cret" {
		t.Errorf("password = %q, want s3cret", s.StringData["password"])
	}
}

func TestBuildAppDeployment(t *testing.T) {
	d := testDeployer(t)
	dep := d.buildAppDeployment()

	if got := *dep.Spec.Replicas; got != 2 {
		t.Errorf("replicas = %d, want 2", got)
	}

	containers := dep.Spec.Template.Spec.Containers
	if len(containers) != 1 {
		t.Fatalf("containers = %d, want 1", len(containers))
	}
	c := containers[0]

	if c.Image != "spring-petclinic:3.0" {
		t.Errorf("image = %q, want spring-petclinic:3.0", c.Image)
	}
	if len(c.Ports) != 1 || c.Ports[0].ContainerPort != 8080 {
		t.Errorf("ports = %v, want containerPort 8080", c.Ports)
	}

	if c.LivenessProbe == nil || c.LivenessProbe.HTTPGet.Path != "/livez" {
		t.Error("liveness probe should hit /livez")
	}
	if c.ReadinessProbe == nil || c.ReadinessProbe.HTTPGet.Path != "/readyz" {
		t.Error("readiness probe should hit /readyz")
	}
	if c.LivenessProbe.HTTPGet.Port.IntValue() != 8080 {
		t.Errorf("liveness probe port = %d, want 8080", c.LivenessProbe.HTTPGet.Port.IntValue())
	}

	// Credentials come from the Secret, never inline.
	envBySecret := map[string]string{}
	for _, env := range c.Env {
		if env.Value != "" {
			t.Errorf("env %s has inline value %q; credentials must come from the Secret", env.Name, env.Value)
		}
		if env.ValueFrom != nil && env.ValueFrom.SecretKeyRef != nil {
			envBySecret[env.Name] = env.ValueFrom.SecretKeyRef.Key
		}
	}
	if envBySecret["SPRING_DATASOURCE_USERNAME"] != "username" {
		t.Errorf("SPRING_DATASOURCE_USERNAME key = %q, want username", envBySecret["SPRING_DATASOURCE_USERNAME"])
	}
	if envBySecret["SPRING_DATASOURCE_PASSWORD"] != "password" {
		t.Errorf("SPRING_DATASOURCE_PASSWORD key = %q, want password", envBySecret["SPRING_DATASOURCE_PASSWORD"])
	}
}

func TestBuildAppService(t *testing.T) {
	d := testDeployer(t)
	svc := d.buildAppService()

	if svc.Name != "petclinic-was" {
		t.Errorf("name = %q, want petclinic-was", svc.Name)
	}
	if len(svc.Spec.Ports) != 1 {
		t.Fatalf("ports = %d, want 1", len(svc.Spec.Ports))
	}
	p := svc.Spec.Ports[0]
	if p.Port != 8080 || p.TargetPort.IntValue() != 8080 {
		t.Errorf("port mapping = %d->%d, want 8080->8080", p.Port, p.TargetPort.IntValue())
	}
	if svc.Spec.Selector["app.kubernetes.io/name"] != "petclinic-was" {
		t.Errorf("selector = %v, want app.kubernetes.io/name=petclinic-was", svc.Spec.Selector)
	}
}

func TestBuildEdgeDeployment(t *testing.T) {
	d := testDeployer(t)
	dep := d.buildEdgeDeployment()

	if got := *dep.Spec.Replicas; got != 1 {
		t.Errorf("replicas = %d, want 1", got)
	}

	c := dep.Spec.Template.Spec.Containers[0]
	if c.Image != "petclinic-edge:1.0" {
		t.Errorf("image = %q, want petclinic-edge:1.0", c.Image)
	}
	if len(c.Ports) != 1 || c.Ports[0].ContainerPort != 80 {
		t.Errorf("ports = %v, want containerPort 80", c.Ports)
	}
	if c.LivenessProbe == nil || c.LivenessProbe.HTTPGet.Path != "/health" {
		t.Error("edge liveness probe should hit /health")
	}

	// The edge is pointed at the WAS service.
	found := false
	for _, env := range c.Env {
		if env.Name == "UPSTREAM" && env.Value == "petclinic-was:8080" {
			found = true
		}
	}
	if !found {
		t.Error("edge container should carry UPSTREAM=petclinic-was:8080")
	}
}

func TestBuildEdgeService(t *testing.T) {
	d := testDeployer(t)
	svc := d.buildEdgeService()

	if svc.Name != "petclinic-edge" {
		t.Errorf("name = %q, want petclinic-edge", svc.Name)
	}
	p := svc.Spec.Ports[0]
	if p.Port != 80 || p.TargetPort.IntValue() != 80 {
		t.Errorf("port mapping = %d->%d, want 80->80", p.Port, p.TargetPort.IntValue())
	}
	if svc.Spec.Type != "LoadBalancer" {
		t.Errorf("type = %q, want LoadBalancer", svc.Spec.Type)
	}
}
