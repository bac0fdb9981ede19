// Package memory configures the Go runtime memory limit for containers.
//
// Kubernetes does not set GOMEMLIMIT, so a pod that receives its memory
// limit through the Downward API exports it as MEMORY_LIMIT:
//
//	env:
//	  - name: MEMORY_LIMIT
//	    valueFrom:
//	      resourceFieldRef:
//	        resource: limits.memory
//
// ConfigureFromEnv then sets GOMEMLIMIT to MEMORY_RATIO (default 0.85) of
// that value. An explicit GOMEMLIMIT always wins.
package memory
