package deploy

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Apply creates the topology's resources in the cluster, in dependency order:
// the Secret first so the WAS pods can mount it, then the WAS tier, then the
// edge tier. Creation is idempotent; resources that already exist are kept.
func (d *Deployer) Apply(ctx context.Context) error {
	ns := d.cfg.Namespace

	_, err := d.clientset.CoreV1().Secrets(ns).
		Create(ctx, d.buildSecret(), metav1.CreateOptions{})
	if err := ignoreAlreadyExists(err); err != nil {
		return fmt.Errorf("create Secret: %w", err)
	}
	d.logger.Info("secret ensured", "name", d.cfg.SecretName, "namespace", ns)

	_, err = d.clientset.AppsV1().Deployments(ns).
		Create(ctx, d.buildAppDeployment(), metav1.CreateOptions{})
	if err := ignoreAlreadyExists(err); err != nil {
		return fmt.Errorf("create WAS Deployment: %w", err)
	}

	_, err = d.clientset.CoreV1().Services(ns).
		Create(ctx, d.buildAppService(), metav1.CreateOptions{})
	if err := ignoreAlreadyExists(err); err != nil {
		return fmt.Errorf("create WAS Service: %w", err)
	}
	d.logger.Info("was tier ensured", "name", appName, "replicas", d.cfg.AppReplicas)

	_, err = d.clientset.AppsV1().Deployments(ns).
		Create(ctx, d.buildEdgeDeployment(), metav1.CreateOptions{})
	if err := ignoreAlreadyExists(err); err != nil {
		return fmt.Errorf("create edge Deployment: %w", err)
	}

	_, err = d.clientset.CoreV1().Services(ns).
		Create(ctx, d.buildEdgeService(), metav1.CreateOptions{})
	if err := ignoreAlreadyExists(err); err != nil {
		return fmt.Errorf("create edge Service: %w", err)
	}
	d.logger.Info("edge tier ensured", "name", edgeName, "replicas", d.cfg.EdgeReplicas)

	return nil
}

// ignoreAlreadyExists returns nil if the error is "already exists", otherwise
// returns the error. Used to make resource creation idempotent.
func ignoreAlreadyExists(err error) error {
	if errors.IsAlreadyExists(err) {
		return nil
	}
	return err
}
