package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("validation failed")

// DefaultPriority is assigned to todos created without an explicit priority.
const DefaultPriority = "Medium"

// Todo represents a task with its owned subtasks.
type Todo struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Task      string    `json:"task" gorm:"type:varchar;not null"`
	Completed bool      `json:"completed" gorm:"not null"`
	Priority  string    `json:"priority" gorm:"type:varchar;not null"`
	DueDate   *string   `json:"dueDate" gorm:"column:dueDate;type:varchar"`
	RemindMe  bool      `json:"remindMe" gorm:"column:remindMe;not null"`
	SubTasks  []SubTask `json:"subTasks" gorm:"foreignKey:TodoID"`
}

// TableName keeps the table name used by existing data files.
func (Todo) TableName() string { return "todo" }

// SubTask is a checklist item owned by exactly one Todo.
type SubTask struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	Task      string `json:"task" gorm:"type:varchar;not null"`
	Completed bool   `json:"completed" gorm:"not null"`
	TodoID    int64  `json:"-" gorm:"column:todo_id;not null;index"`
	Todo      *Todo  `json:"-" gorm:"foreignKey:TodoID;constraint:OnDelete:CASCADE"`
}

// TableName keeps the table name used by existing data files.
func (SubTask) TableName() string { return "subtask" }

// SubTaskInput is the client-supplied form of a subtask. It never carries an id.
type SubTaskInput struct {
	Task      *string `json:"task"`
	Completed bool    `json:"completed"`

	nulls []string
}

// UnmarshalJSON implements json.Unmarshaler, remembering keys sent as null.
func (in *SubTaskInput) UnmarshalJSON(data []byte) error {
	type plain SubTaskInput
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	nulls, err := nullKeys(data, "completed")
	if err != nil {
		return err
	}
	*in = SubTaskInput(p)
	in.nulls = nulls
	return nil
}

// TodoInput is the request body for creating or updating a todo.
// Pointer fields are nil when the client omitted them.
type TodoInput struct {
	Task      *string        `json:"task"`
	Completed *bool          `json:"completed"`
	Priority  *string        `json:"priority"`
	DueDate   NullableString `json:"dueDate"`
	RemindMe  *bool          `json:"remindMe"`
	SubTasks  []SubTaskInput `json:"subTasks"`

	// nulls lists the non-nullable keys the client sent as null.
	nulls []string
}

// UnmarshalJSON implements json.Unmarshaler. Null is accepted for dueDate
// only; other null keys are kept so validation can reject them.
func (in *TodoInput) UnmarshalJSON(data []byte) error {
	type plain TodoInput
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	nulls, err := nullKeys(data, "task", "completed", "priority", "remindMe", "subTasks")
	if err != nil {
		return err
	}
	*in = TodoInput(p)
	in.nulls = nulls
	return nil
}

// nullKeys returns which of keys appear in the object data with a null value.
func nullKeys(data []byte, keys ...string) ([]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var nulls []string
	for _, key := range keys {
		if v, ok := raw[key]; ok && bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			nulls = append(nulls, key)
		}
	}
	return nulls, nil
}

// NullableString records whether a JSON field was present and whether it was null.
type NullableString struct {
	Set   bool
	Valid bool
	Value string
}

// UnmarshalJSON implements json.Unmarshaler. It is only invoked for keys present in the document.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Valid = false
		n.Value = ""
		return nil
	}
	if err := json.Unmarshal(data, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// Ptr returns the value as a *string, nil when null or unset.
func (n NullableString) Ptr() *string {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// ValidationError describes a client input that cannot be accepted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ValidateCreate checks the fields required to create a todo.
func (in TodoInput) ValidateCreate() error {
	if err := in.validateNulls(); err != nil {
		return err
	}
	if in.Task == nil {
		return &ValidationError{Field: "task", Message: "field required"}
	}
	return in.validateSubTasks()
}

// ValidateUpdate checks a partial update.
func (in TodoInput) ValidateUpdate() error {
	if err := in.validateNulls(); err != nil {
		return err
	}
	return in.validateSubTasks()
}

func (in TodoInput) validateNulls() error {
	if len(in.nulls) > 0 {
		return &ValidationError{Field: in.nulls[0], Message: "may not be null"}
	}
	return nil
}

func (in TodoInput) validateSubTasks() error {
	for i, st := range in.SubTasks {
		if st.Task == nil {
			return &ValidationError{Field: fmt.Sprintf("subTasks.%d.task", i), Message: "field required"}
		}
		if len(st.nulls) > 0 {
			return &ValidationError{Field: fmt.Sprintf("subTasks.%d.%s", i, st.nulls[0]), Message: "may not be null"}
		}
	}
	return nil
}

// NewTodo builds an unsaved Todo from the input, applying defaults for omitted fields.
// Subtasks are not included; stores persist them separately once the todo has an id.
func NewTodo(in TodoInput) Todo {
	t := Todo{Priority: DefaultPriority}
	if in.Task != nil {
		t.Task = *in.Task
	}
	if in.Completed != nil {
		t.Completed = *in.Completed
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	t.DueDate = in.DueDate.Ptr()
	if in.RemindMe != nil {
		t.RemindMe = *in.RemindMe
	}
	return t
}

// Fields returns the scalar attributes the client explicitly set, keyed by stored name.
func (in TodoInput) Fields() map[string]any {
	fields := make(map[string]any)
	if in.Task != nil {
		fields["task"] = *in.Task
	}
	if in.Completed != nil {
		fields["completed"] = *in.Completed
	}
	if in.Priority != nil {
		fields["priority"] = *in.Priority
	}
	if in.DueDate.Set {
		fields["dueDate"] = in.DueDate.Ptr()
	}
	if in.RemindMe != nil {
		fields["remindMe"] = *in.RemindMe
	}
	return fields
}

// NewSubTasks builds unsaved subtasks owned by todoID.
func NewSubTasks(todoID int64, inputs []SubTaskInput) []SubTask {
	subs := make([]SubTask, 0, len(inputs))
	for _, in := range inputs {
		st := SubTask{Completed: in.Completed, TodoID: todoID}
		if in.Task != nil {
			st.Task = *in.Task
		}
		subs = append(subs, st)
	}
	return subs
}
