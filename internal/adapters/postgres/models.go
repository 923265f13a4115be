package postgres

import "time"

type processInstanceModel struct {
	ID                      string     `gorm:"column:id;primaryKey"`
	ProcessID               string     `gorm:"column:process_id"`
	ProcessName             string     `gorm:"column:process_name"`
	Version                 string     `gorm:"column:version"`
	State                   string     `gorm:"column:state"`
	BusinessKey             string     `gorm:"column:business_key"`
	Endpoint                string     `gorm:"column:endpoint"`
	Roles                   string     `gorm:"column:roles"`
	RootProcessInstanceID   *string    `gorm:"column:root_process_instance_id"`
	ParentProcessInstanceID *string    `gorm:"column:parent_process_instance_id"`
	Variables               string     `gorm:"column:variables"`
	StartedAt               *time.Time `gorm:"column:started_at"`
	EndedAt                 *time.Time `gorm:"column:ended_at"`
	LastUpdate              time.Time  `gorm:"column:last_update"`
	LastSequence            int64      `gorm:"column:last_sequence"`
}

func (processInstanceModel) TableName() string { return "process_instances" }

type userTaskInstanceModel struct {
	ID                string     `gorm:"column:id;primaryKey"`
	ProcessInstanceID string     `gorm:"column:process_instance_id"`
	ProcessID         string     `gorm:"column:process_id"`
	Name              string     `gorm:"column:name"`
	Description       string     `gorm:"column:description"`
	State             string     `gorm:"column:state"`
	Priority          string     `gorm:"column:priority"`
	ReferenceName     string     `gorm:"column:reference_name"`
	ActualOwner       string     `gorm:"column:actual_owner"`
	PotentialUsers    string     `gorm:"column:potential_users"`
	PotentialGroups   string     `gorm:"column:potential_groups"`
	Inputs            string     `gorm:"column:inputs"`
	Outputs           string     `gorm:"column:outputs"`
	Comments          string     `gorm:"column:comments"`
	Attachments       string     `gorm:"column:attachments"`
	StartedAt         *time.Time `gorm:"column:started_at"`
	CompletedAt       *time.Time `gorm:"column:completed_at"`
	LastUpdate        time.Time  `gorm:"column:last_update"`
	LastSequence      int64      `gorm:"column:last_sequence"`
}

func (userTaskInstanceModel) TableName() string { return "user_task_instances" }

type jobModel struct {
	ID                string     `gorm:"column:id;primaryKey"`
	ProcessInstanceID string     `gorm:"column:process_instance_id"`
	ProcessID         string     `gorm:"column:process_id"`
	Status            string     `gorm:"column:status"`
	ExpirationTime    *time.Time `gorm:"column:expiration_time"`
	Priority          int        `gorm:"column:priority"`
	CallbackEndpoint  string     `gorm:"column:callback_endpoint"`
	RepeatInterval    int64      `gorm:"column:repeat_interval"`
	RepeatLimit       int        `gorm:"column:repeat_limit"`
	ScheduledID       string     `gorm:"column:scheduled_id"`
	Retries           int        `gorm:"column:retries"`
	ExecutionCounter  int        `gorm:"column:execution_counter"`
	LastUpdate        time.Time  `gorm:"column:last_update"`
	LastSequence      int64      `gorm:"column:last_sequence"`
}

func (jobModel) TableName() string { return "jobs" }

// Column maps back the IR field names onto physical columns, per kind. A
// field missing here is not queryable on this backend.
var processInstanceColumns = map[string]string{
	"id":                      "id",
	"processId":               "process_id",
	"processName":             "process_name",
	"version":                 "version",
	"state":                   "state",
	"businessKey":             "business_key",
	"endpoint":                "endpoint",
	"rootProcessInstanceId":   "root_process_instance_id",
	"parentProcessInstanceId": "parent_process_instance_id",
	"start":                   "started_at",
	"end":                     "ended_at",
	"lastUpdate":              "last_update",
}

var userTaskInstanceColumns = map[string]string{
	"id":                "id",
	"processInstanceId": "process_instance_id",
	"processId":         "process_id",
	"name":              "name",
	"state":             "state",
	"priority":          "priority",
	"referenceName":     "reference_name",
	"actualOwner":       "actual_owner",
	"started":           "started_at",
	"completed":         "completed_at",
	"lastUpdate":        "last_update",
}

var jobColumns = map[string]string{
	"id":                "id",
	"processInstanceId": "process_instance_id",
	"processId":         "process_id",
	"status":            "status",
	"priority":          "priority",
	"scheduledId":       "scheduled_id",
	"expirationTime":    "expiration_time",
	"lastUpdate":        "last_update",
}
