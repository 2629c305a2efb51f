/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package kubeclient adapts k8s.io/client-go's typed clients to the narrow
// interface the scheduling pipeline actually needs: list
// nodes/pods/PVs/PVCs/statefulsets, patch a PV/PVC, create a pod binding,
// and watch the pod stream. The rest of this module treats the orchestrator
// API as this interface and nothing more, rather than importing the whole
// generated client surface everywhere.
package kubeclient

import (
	"context"

	appsv1 "k8s.io/api/apps/v1"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
)

// Interface is the orchestrator API surface this component consumes.
// Everything else about the cluster (scheduling of other pods, taints,
// preemption, ...) is out of scope.
type Interface interface {
	ListNodes(ctx context.Context) ([]v1.Node, error)
	ListPods(ctx context.Context, namespace string) ([]v1.Pod, error)
	ListPersistentVolumes(ctx context.Context) ([]v1.PersistentVolume, error)
	ListPersistentVolumeClaims(ctx context.Context, namespace string) ([]v1.PersistentVolumeClaim, error)
	ListStatefulSets(ctx context.Context, namespace string) ([]appsv1.StatefulSet, error)

	PatchPersistentVolume(ctx context.Context, name string, patch []byte) error
	PatchPersistentVolumeClaim(ctx context.Context, namespace, name string, patch []byte) error
	CreateBinding(ctx context.Context, namespace, podName, nodeName string) error

	WatchPods(ctx context.Context, namespace string) (watch.Interface, error)
}

// client is the production Interface implementation, backed by a real
// client-go clientset.
type client struct {
	clientset kubernetes.Interface
}

// New wraps a client-go kubernetes.Interface (typically built with
// kubernetes.NewForConfig against the in-cluster config) as a kubeclient.Interface.
func New(clientset kubernetes.Interface) Interface {
	return &client{clientset: clientset}
}

func (c *client) ListNodes(ctx context.Context) ([]v1.Node, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *client) ListPods(ctx context.Context, namespace string) ([]v1.Pod, error) {
	list, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *client) ListPersistentVolumes(ctx context.Context) ([]v1.PersistentVolume, error) {
	list, err := c.clientset.CoreV1().PersistentVolumes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *client) ListPersistentVolumeClaims(ctx context.Context, namespace string) ([]v1.PersistentVolumeClaim, error) {
	list, err := c.clientset.CoreV1().PersistentVolumeClaims(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *client) ListStatefulSets(ctx context.Context, namespace string) ([]appsv1.StatefulSet, error) {
	list, err := c.clientset.AppsV1().StatefulSets(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *client) PatchPersistentVolume(ctx context.Context, name string, patch []byte) error {
	_, err := c.clientset.CoreV1().PersistentVolumes().Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
	return err
}

func (c *client) PatchPersistentVolumeClaim(ctx context.Context, namespace, name string, patch []byte) error {
	_, err := c.clientset.CoreV1().PersistentVolumeClaims(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
	return err
}

func (c *client) CreateBinding(ctx context.Context, namespace, podName, nodeName string) error {
	binding := &v1.Binding{
		ObjectMeta: metav1.ObjectMeta{Name: podName, Namespace: namespace},
		Target: v1.ObjectReference{
			Kind:       "Node",
			Name:       nodeName,
			APIVersion: "v1",
		},
	}
	return c.clientset.CoreV1().Pods(namespace).Bind(ctx, binding, metav1.CreateOptions{})
}

func (c *client) WatchPods(ctx context.Context, namespace string) (watch.Interface, error) {
	return c.clientset.CoreV1().Pods(namespace).Watch(ctx, metav1.ListOptions{})
}
