package deploy

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"
)

func labelsFor(name string) map[string]string {
	return map[string]string{
		"app.kubernetes.io/name":    name,
		"app.kubernetes.io/part-of": "petclinic",
	}
}

// buildSecret holds the database credentials injected into the WAS pods.
func (d *Deployer) buildSecret() *corev1.Secret {
	return &corev1.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      d.cfg.SecretName,
			Namespace: d.cfg.Namespace,
			Labels:    labelsFor(appName),
		},
		Type: corev1.SecretTypeOpaque,
		StringData: map[string]string{
			secretUsernameKey: d.creds.Username,
			secretPasswordKey: d.creds.Password,
		},
	}
}

// buildAppDeployment declares the WAS replicas: the Spring Boot container on
// port 8080 with actuator-backed liveness/readiness probes and DB credentials
// from the Secret.
func (d *Deployer) buildAppDeployment() *appsv1.Deployment {
	labels := labelsFor(appName)
	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      appName,
			Namespace: d.cfg.Namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(int32(d.cfg.AppReplicas)),
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  appName,
							Image: d.cfg.AppImage,
							Ports: []corev1.ContainerPort{
								{Name: "http", ContainerPort: appPort},
							},
							Env: []corev1.EnvVar{
								{
									Name: "SPRING_DATASOURCE_USERNAME",
									ValueFrom: &corev1.EnvVarSource{
										SecretKeyRef: &corev1.SecretKeySelector{
											LocalObjectReference: corev1.LocalObjectReference{Name: d.cfg.SecretName},
											Key:                  secretUsernameKey,
										},
									},
								},
								{
									Name: "SPRING_DATASOURCE_PASSWORD",
									ValueFrom: &corev1.EnvVarSource{
										SecretKeyRef: &corev1.SecretKeySelector{
											LocalObjectReference: corev1.LocalObjectReference{Name: d.cfg.SecretName},
											Key:                  secretPasswordKey,
										},
									},
								},
							},
							LivenessProbe: &corev1.Probe{
								ProbeHandler: corev1.ProbeHandler{
									HTTPGet: &corev1.HTTPGetAction{
										Path: appLivenessPath,
										Port: intstr.FromInt32(appPort),
									},
								},
								InitialDelaySeconds: 30,
								PeriodSeconds:       10,
							},
							ReadinessProbe: &corev1.Probe{
								ProbeHandler: corev1.ProbeHandler{
									HTTPGet: &corev1.HTTPGetAction{
										Path: appReadinessPath,
										Port: intstr.FromInt32(appPort),
									},
								},
								InitialDelaySeconds: 15,
								PeriodSeconds:       5,
							},
						},
					},
				},
			},
		},
	}
}

// buildAppService exposes the WAS pool inside the cluster on port 8080. The
// edge reaches it through this service name.
func (d *Deployer) buildAppService() *corev1.Service {
	labels := labelsFor(appName)
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      appName,
			Namespace: d.cfg.Namespace,
			Labels:    labels,
		},
		Spec: corev1.ServiceSpec{
			Selector: labels,
			Ports: []corev1.ServicePort{
				{
					Name:       "http",
					Port:       appPort,
					TargetPort: intstr.FromInt32(appPort),
				},
			},
		},
	}
}

// buildEdgeDeployment declares the edge proxy replicas, pointed at the WAS
// service.
func (d *Deployer) buildEdgeDeployment() *appsv1.Deployment {
	labels := labelsFor(edgeName)
	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      edgeName,
			Namespace: d.cfg.Namespace,
			Labels:    labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(int32(d.cfg.EdgeReplicas)),
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  edgeName,
							Image: d.cfg.EdgeImage,
							Ports: []corev1.ContainerPort{
								{Name: "http", ContainerPort: edgePort},
							},
							Env: []corev1.EnvVar{
								{Name: "UPSTREAM", Value: upstreamAddr()},
							},
							LivenessProbe: &corev1.Probe{
								ProbeHandler: corev1.ProbeHandler{
									HTTPGet: &corev1.HTTPGetAction{
										Path: edgeProbePath,
										Port: intstr.FromInt32(edgePort),
									},
								},
								InitialDelaySeconds: 5,
								PeriodSeconds:       10,
							},
						},
					},
				},
			},
		},
	}
}

// buildEdgeService is the external entrypoint on port 80.
func (d *Deployer) buildEdgeService() *corev1.Service {
	labels := labelsFor(edgeName)
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      edgeName,
			Namespace: d.cfg.Namespace,
			Labels:    labels,
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeLoadBalancer,
			Selector: labels,
			Ports: []corev1.ServicePort{
				{
					Name:       "http",
					Port:       edgePort,
					TargetPort: intstr.FromInt32(edgePort),
				},
			},
		},
	}
}

// upstreamAddr is the in-cluster address the edge forwards to.
func upstreamAddr() string {
	return fmt.Sprintf("%s:%d", appName, appPort)
}
