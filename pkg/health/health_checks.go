package health

import "time"

// Common health check functions

// SimpleCheck creates a simple health check that always returns healthy
func SimpleCheck(name string) Check {
	return Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now(),
	}
}

// PrimaryCheck creates a health check reporting whether a cluster currently
// has a primary and how stale its heartbeat is.
func PrimaryCheck(clusterName string, getPrimaryState func() (hasPrimary bool, ageSeconds int64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "primary:" + clusterName,
			Details: make(map[string]any),
		}

		hasPrimary, age := getPrimaryState()

		check.Details["has_primary"] = hasPrimary
		check.Details["heartbeat_age_seconds"] = age

		if !hasPrimary {
			check.Status = StatusUnhealthy
			check.Message = "No primary"
		} else {
			check.Status = StatusHealthy
			check.Message = "Primary present"
		}

		return check
	}
}

// ClusterCheck creates a health check for the replica population of a cluster
func ClusterCheck(clusterName string, getClusterState func() (healthyReplicas, lostReplicas, outNodes int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "cluster:" + clusterName,
			Details: make(map[string]any),
		}

		healthyReplicas, lostReplicas, outNodes := getClusterState()

		check.Details["healthy_replicas"] = healthyReplicas
		check.Details["lost_replicas"] = lostReplicas
		check.Details["out_nodes"] = outNodes

		if lostReplicas > 0 {
			check.Status = StatusDegraded
			check.Message = "Some replicas lost"
		} else {
			check.Status = StatusHealthy
			check.Message = "All replicas in sync"
		}

		return check
	}
}

// ClusterlessCheck creates a health check for nodes that could not be
// partitioned into any cluster.
func ClusterlessCheck(getCount func() int) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "clusterless",
			Details: make(map[string]any),
		}

		count := getCount()
		check.Details["count"] = count

		if count > 0 {
			check.Status = StatusDegraded
			check.Message = "Unassigned nodes present"
		} else {
			check.Status = StatusHealthy
			check.Message = "No unassigned nodes"
		}

		return check
	}
}
