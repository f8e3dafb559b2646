package util

import "strings"

// RootPkgName is the synthetic package name for tasks declared directly in
// the root manifest rather than in a workspace package.
const RootPkgName = "//"

const taskIDDelimiter = ":"

// GetTaskID renders the (package, task) pair as the "pkg:task" identity
// spec.md §3 defines for TaskNode.
func GetTaskID(pkg string, task string) string {
	if IsPackageTask(task) {
		return task
	}
	return pkg + taskIDDelimiter + task
}

// GetPackageTaskFromID splits a "pkg:task" identity back into its parts.
func GetPackageTaskFromID(taskID string) (pkg string, task string) {
	idx := strings.LastIndex(taskID, taskIDDelimiter)
	if idx < 0 {
		return "", taskID
	}
	return taskID[:idx], taskID[idx+1:]
}

// IsPackageTask reports whether a task name is already fully qualified as
// "pkg:task" (used e.g. for root-scoped overrides).
func IsPackageTask(taskName string) bool {
	return strings.Contains(taskName, taskIDDelimiter)
}

// StripTopoMarker strips the leading "^" upstream-dependency marker from a
// dependsOn entry, reporting whether it was present.
func StripTopoMarker(dep string) (name string, isTopo bool) {
	if strings.HasPrefix(dep, "^") {
		return dep[1:], true
	}
	return dep, false
}
