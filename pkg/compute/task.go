package compute

import "time"

// TaskStatus is the portable state of an asynchronous provider task.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "QUEUED"
	TaskRunning   TaskStatus = "RUNNING"
	TaskSucceeded TaskStatus = "SUCCEEDED"
	TaskFailed    TaskStatus = "FAILED"
	TaskUnknown   TaskStatus = "UNKNOWN"
)

// TaskInfo holds the fields every task kind shares.
type TaskInfo struct {
	ID       string     `json:"id"`
	OwnerID  string     `json:"ownerId"`
	Command  string     `json:"command"`
	Status   TaskStatus `json:"status"`
	Started  time.Time  `json:"started"`
	Finished time.Time  `json:"finished,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Done reports whether the task reached a terminal status.
func (t TaskInfo) Done() bool {
	return t.Status == TaskSucceeded || t.Status == TaskFailed
}

// Task is a sum type over the finite set of task kinds.
// Consumers dispatch with a type switch; the set is closed by the
// unexported marker method.
type Task interface {
	Info() TaskInfo
	isTask()
}

// DeployTask creates a node.
type DeployTask struct {
	TaskInfo
	ImageID string `json:"imageId,omitempty"`
}

// UndeployTask destroys a node.
type UndeployTask struct{ TaskInfo }

// PowerTask changes the power state of a node.
type PowerTask struct {
	TaskInfo
	On bool `json:"on"`
}

// RebootTask restarts a node.
type RebootTask struct {
	TaskInfo
	Hard bool `json:"hard"`
}

// SnapshotTask captures a node into an image.
type SnapshotTask struct {
	TaskInfo
	ImageID string `json:"imageId,omitempty"`
}

// ReconfigureTask changes hardware, networks or rules of a node.
type ReconfigureTask struct{ TaskInfo }

// GenericTask is any task whose kind is not modelled above.
type GenericTask struct{ TaskInfo }

func (t DeployTask) Info() TaskInfo      { return t.TaskInfo }
func (t UndeployTask) Info() TaskInfo    { return t.TaskInfo }
func (t PowerTask) Info() TaskInfo       { return t.TaskInfo }
func (t RebootTask) Info() TaskInfo      { return t.TaskInfo }
func (t SnapshotTask) Info() TaskInfo    { return t.TaskInfo }
func (t ReconfigureTask) Info() TaskInfo { return t.TaskInfo }
func (t GenericTask) Info() TaskInfo     { return t.TaskInfo }

func (DeployTask) isTask()      {}
func (UndeployTask) isTask()    {}
func (PowerTask) isTask()       {}
func (RebootTask) isTask()      {}
func (SnapshotTask) isTask()    {}
func (ReconfigureTask) isTask() {}
func (GenericTask) isTask()     {}

// TaskKind names the variant of t.
func TaskKind(t Task) string {
	switch t.(type) {
	case DeployTask:
		return "deploy"
	case UndeployTask:
		return "undeploy"
	case PowerTask:
		return "power"
	case RebootTask:
		return "reboot"
	case SnapshotTask:
		return "snapshot"
	case ReconfigureTask:
		return "reconfigure"
	default:
		return "generic"
	}
}
