package scheduling

import (
	"fmt"

	"github.com/google/uuid"
)

// TaskAccumulator holds the tasks attached to an appointment and keeps the derived
// DurationState in step with every mutation. Template tasks come from the appointment type
// and are replaced wholesale; custom tasks survive type changes.
type TaskAccumulator struct {
	template []MedicalTask
	custom   []MedicalTask
	state    DurationState
}

func NewTaskAccumulator() *TaskAccumulator {
	a := &TaskAccumulator{}
	a.recompute()
	return a
}

// SetTemplateTasks replaces the template tasks. Custom tasks are kept.
func (a *TaskAccumulator) SetTemplateTasks(tasks []MedicalTask) error {
	for _, t := range tasks {
		if err := validateTask(t); err != nil {
			return err
		}
	}
	a.template = append([]MedicalTask(nil), tasks...)
	a.recompute()
	return nil
}

// AddTask appends a custom task. A zero ID is replaced by a fresh one.
func (a *TaskAccumulator) AddTask(task MedicalTask) (MedicalTask, error) {
	if err := validateTask(task); err != nil {
		return MedicalTask{}, err
	}
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Status == "" {
		task.Status = TaskPending
	}
	a.custom = append(a.custom, task)
	a.recompute()
	return task, nil
}

// UpdateTask replaces the custom task at index. The stored ID is kept when task has none.
func (a *TaskAccumulator) UpdateTask(index int, task MedicalTask) error {
	if index < 0 || index >= len(a.custom) {
		return fmt.Errorf("%w: %d", ErrTaskIndexOutOfRange, index)
	}
	if err := validateTask(task); err != nil {
		return err
	}
	if task.ID == uuid.Nil {
		task.ID = a.custom[index].ID
	}
	if task.Status == "" {
		task.Status = a.custom[index].Status
	}
	a.custom[index] = task
	a.recompute()
	return nil
}

func (a *TaskAccumulator) RemoveTask(index int) error {
	if index < 0 || index >= len(a.custom) {
		return fmt.Errorf("%w: %d", ErrTaskIndexOutOfRange, index)
	}
	a.custom = append(a.custom[:index:index], a.custom[index+1:]...)
	a.recompute()
	return nil
}

func (a *TaskAccumulator) RemoveTaskByID(id uuid.UUID) error {
	for i, t := range a.custom {
		if t.ID == id {
			return a.RemoveTask(i)
		}
	}
	return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
}

// Reset drops every task.
func (a *TaskAccumulator) Reset() {
	a.template = nil
	a.custom = nil
	a.recompute()
}

// Tasks returns template tasks followed by custom tasks.
func (a *TaskAccumulator) Tasks() []MedicalTask {
	out := make([]MedicalTask, 0, len(a.template)+len(a.custom))
	out = append(out, a.template...)
	return append(out, a.custom...)
}

func (a *TaskAccumulator) TemplateTasks() []MedicalTask {
	return append([]MedicalTask(nil), a.template...)
}

func (a *TaskAccumulator) CustomTasks() []MedicalTask {
	return append([]MedicalTask(nil), a.custom...)
}

func (a *TaskAccumulator) Duration() DurationState {
	return a.state
}

func (a *TaskAccumulator) recompute() {
	a.state = ComputeDurationState(a.Tasks())
}

func validateTask(t MedicalTask) error {
	if t.EstimatedTime < 0 {
		return fmt.Errorf("%w: negative estimated time %d", ErrInvalidTask, t.EstimatedTime)
	}
	if t.EstimatedTime > minutesPerDay {
		return fmt.Errorf("%w: estimated time %d exceeds %d minutes", ErrInvalidTask, t.EstimatedTime, minutesPerDay)
	}
	return nil
}
