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

// Package schedulertest provides declarative constructors for the
// Kubernetes objects the scheduling pipeline consumes, mirroring the
// teacher's pkg/test package (constructors for Node, Pod, etc. with sane
// defaults so specs stay terse).
package schedulertest

import (
	appsv1 "k8s.io/api/apps/v1"
	v1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// NodeOptions configures Node.
type NodeOptions struct {
	Name     string
	Labels   map[string]string
	Ready    bool
	CPU      string
	Memory   string
}

// Node builds a v1.Node with sane defaults: 4 CPU, 16Gi memory. Its Ready
// condition is True only when opts.Ready is set; otherwise it is False.
func Node(opts NodeOptions) v1.Node {
	if opts.CPU == "" {
		opts.CPU = "4"
	}
	if opts.Memory == "" {
		opts.Memory = "16Gi"
	}
	status := v1.ConditionFalse
	if opts.Ready {
		status = v1.ConditionTrue
	}
	return v1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: opts.Name, Labels: opts.Labels},
		Status: v1.NodeStatus{
			Conditions: []v1.NodeCondition{{Type: v1.NodeReady, Status: status}},
			Capacity: v1.ResourceList{
				v1.ResourceCPU:    resource.MustParse(opts.CPU),
				v1.ResourceMemory: resource.MustParse(opts.Memory),
			},
		},
	}
}

// PodOptions configures Pod.
type PodOptions struct {
	Name            string
	Namespace       string
	SchedulerName   string
	Phase           v1.PodPhase
	OwnerStatefulSet string
	Labels          map[string]string
	NodeName        string
	Affinity        *v1.Affinity
	CPURequest      string
	MemoryRequest   string
	Conditions      []v1.PodCondition
}

// Pod builds a v1.Pod with sane defaults: namespace "default", phase
// Pending, owned by OwnerStatefulSet when set.
func Pod(opts PodOptions) *v1.Pod {
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	if opts.Phase == "" {
		opts.Phase = v1.PodPending
	}
	var owners []metav1.OwnerReference
	if opts.OwnerStatefulSet != "" {
		owners = []metav1.OwnerReference{{Kind: "StatefulSet", Name: opts.OwnerStatefulSet}}
	}
	resources := v1.ResourceRequirements{Requests: v1.ResourceList{}}
	if opts.CPURequest != "" {
		resources.Requests[v1.ResourceCPU] = resource.MustParse(opts.CPURequest)
	}
	if opts.MemoryRequest != "" {
		resources.Requests[v1.ResourceMemory] = resource.MustParse(opts.MemoryRequest)
	}
	return &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:            opts.Name,
			Namespace:       opts.Namespace,
			Labels:          opts.Labels,
			OwnerReferences: owners,
		},
		Spec: v1.PodSpec{
			SchedulerName: opts.SchedulerName,
			NodeName:      opts.NodeName,
			Affinity:      opts.Affinity,
			Containers:    []v1.Container{{Name: "main", Resources: resources}},
		},
		Status: v1.PodStatus{
			Phase:      opts.Phase,
			Conditions: opts.Conditions,
		},
	}
}

// StatefulSetOptions configures StatefulSet.
type StatefulSetOptions struct {
	Name                 string
	Namespace            string
	Replicas             int32
	VolumeClaimTemplates []v1.PersistentVolumeClaim
}

func StatefulSet(opts StatefulSetOptions) appsv1.StatefulSet {
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	replicas := opts.Replicas
	return appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: opts.Name, Namespace: opts.Namespace},
		Spec: appsv1.StatefulSetSpec{
			Replicas:             &replicas,
			VolumeClaimTemplates: opts.VolumeClaimTemplates,
		},
	}
}

// VolumeClaimTemplate builds a PersistentVolumeClaim usable both as a
// stateful-set template and (via PVC below) as a live claim.
func VolumeClaimTemplate(name, storageClass, capacity string) v1.PersistentVolumeClaim {
	return v1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec: v1.PersistentVolumeClaimSpec{
			StorageClassName: &storageClass,
			Resources: v1.VolumeResourceRequirements{
				Requests: v1.ResourceList{v1.ResourceStorage: resource.MustParse(capacity)},
			},
		},
	}
}

// PVCOptions configures PVC.
type PVCOptions struct {
	Name         string
	Namespace    string
	StorageClass string
	Capacity     string
	Phase        v1.PersistentVolumeClaimPhase
	VolumeName   string
}

func PVC(opts PVCOptions) v1.PersistentVolumeClaim {
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	if opts.Phase == "" {
		opts.Phase = v1.ClaimPending
	}
	return v1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: opts.Name, Namespace: opts.Namespace},
		Spec: v1.PersistentVolumeClaimSpec{
			StorageClassName: &opts.StorageClass,
			VolumeName:       opts.VolumeName,
			Resources: v1.VolumeResourceRequirements{
				Requests: v1.ResourceList{v1.ResourceStorage: resource.MustParse(opts.Capacity)},
			},
		},
		Status: v1.PersistentVolumeClaimStatus{Phase: opts.Phase},
	}
}

// PVOptions configures PV.
type PVOptions struct {
	Name         string
	StorageClass string
	Capacity     string
	Phase        v1.PersistentVolumePhase
	ClaimRef     *v1.ObjectReference
	NodeAffinity *v1.VolumeNodeAffinity
}

func PV(opts PVOptions) v1.PersistentVolume {
	if opts.Phase == "" {
		opts.Phase = v1.VolumeAvailable
	}
	return v1.PersistentVolume{
		ObjectMeta: metav1.ObjectMeta{Name: opts.Name},
		Spec: v1.PersistentVolumeSpec{
			StorageClassName: opts.StorageClass,
			Capacity:         v1.ResourceList{v1.ResourceStorage: resource.MustParse(opts.Capacity)},
			ClaimRef:         opts.ClaimRef,
			NodeAffinity:     opts.NodeAffinity,
		},
		Status: v1.PersistentVolumeStatus{Phase: opts.Phase},
	}
}


