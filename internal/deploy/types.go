// Package deploy builds, renders, and applies the Kubernetes objects for the
// two-tier PetClinic topology: an edge Deployment/Service in front of a WAS
// Deployment/Service, with database credentials injected from a Secret.
package deploy

import (
	"fmt"
	"log/slog"

	"k8s.io/client-go/kubernetes"

	"github.com/reynecat/petclinic-edge/internal/config"
)

// Resource names and ports for the two tiers.
const (
	edgeName = "petclinic-edge"
	appName  = "petclinic-was"

	edgePort = 80
	appPort  = 8080

	// Probe paths. The edge answers /health itself; /livez and /readyz are
	// served by the Spring actuator on the WAS.
	edgeProbePath    = "/health"
	appLivenessPath  = "/livez"
	appReadinessPath = "/readyz"

	secretUsernameKey = "username"
	secretPasswordKey = "password"
)

// Credentials are the database username/password stored in the Secret.
// Values are supplied via flags or environment at deploy time and are never
// written to the config file or logs.
type Credentials struct {
	Username string
	Password string
}

// Deployer builds and applies the topology's Kubernetes resources.
type Deployer struct {
	clientset kubernetes.Interface
	cfg       config.DeployConfig
	creds     Credentials
	logger    *slog.Logger
}

// NewDeployer creates a Deployer. clientset may be nil when only Render is used.
func NewDeployer(clientset kubernetes.Interface, cfg config.DeployConfig, creds Credentials, logger *slog.Logger) (*Deployer, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("database credentials required: set --db-user/--db-password or DB_USER/DB_PASSWORD")
	}
	return &Deployer{
		clientset: clientset,
		cfg:       cfg,
		creds:     creds,
		logger:    logger.With("component", "deployer"),
	}, nil
}
