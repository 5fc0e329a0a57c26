package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day is a school day column of the timetable grid.
type Day int

const (
	Monday Day = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// WeekDays is the fixed column order of the grid.
var WeekDays = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

var dayNames = map[Day]string{
	Monday:    "Monday",
	Tuesday:   "Tuesday",
	Wednesday: "Wednesday",
	Thursday:  "Thursday",
	Friday:    "Friday",
	Saturday:  "Saturday",
}

// Valid reports whether d is one of the grid columns.
func (d Day) Valid() bool {
	_, ok := dayNames[d]
	return ok
}

func (d Day) String() string {
	if name, ok := dayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Day(%d)", int(d))
}

// MarshalJSON renders the day name.
func (d Day) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid day %d", int(d))
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a day name or its 1-based number.
func (d *Day) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var n int
		if errNum := json.Unmarshal(data, &n); errNum != nil {
			return fmt.Errorf("day must be a name or number: %w", err)
		}
		raw = strconv.Itoa(n)
	}
	parsed, err := ParseDay(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDay parses "Monday", "mon" or "1" (case-insensitive).
func ParseDay(raw string) (Day, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(value); err == nil {
		day := Day(n)
		if day.Valid() {
			return day, nil
		}
		return 0, fmt.Errorf("unknown day %q", raw)
	}
	for day, name := range dayNames {
		lower := strings.ToLower(name)
		if value == lower || (len(value) >= 3 && strings.HasPrefix(lower, value)) {
			return day, nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", raw)
}

// SlotKey addresses one grid cell: a day column and the index of a TimeSlot row.
type SlotKey struct {
	Day  Day `json:"day"`
	Slot int `json:"slot"`
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s#%d", k.Day, k.Slot)
}

// ClassType tags how a lesson is delivered.
type ClassType string

const (
	ClassTypeRegular  ClassType = "Regular"
	ClassTypeLab      ClassType = "Lab"
	ClassTypeTutorial ClassType = "Tutorial"
)

// Valid reports whether t is a known class type.
func (t ClassType) Valid() bool {
	switch t {
	case ClassTypeRegular, ClassTypeLab, ClassTypeTutorial:
		return true
	}
	return false
}

// TimeSlot is one generated row of the grid.
type TimeSlot struct {
	Label   string `json:"label"`
	Time    string `json:"time"`
	IsBreak bool   `json:"isBreak"`
}

// Bounds splits the display range "HH:MM - HH:MM" into start and end times.
func (s TimeSlot) Bounds() (start, end string, err error) {
	parts := strings.Split(s.Time, "-")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("time slot %q: expected \"HH:MM - HH:MM\", got %q", s.Label, s.Time)
	}
	start = strings.TrimSpace(parts[0])
	end = strings.TrimSpace(parts[1])
	if start == "" || end == "" {
		return "", "", fmt.Errorf("time slot %q: empty bound in %q", s.Label, s.Time)
	}
	return start, end, nil
}

// SubjectRef is the display snapshot of a subject kept on an entry.
type SubjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Code string `json:"code,omitempty"`
}

// TeacherRef is the display snapshot of a teacher kept on an entry.
type TeacherRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Entry is the assignment occupying one cell.
type Entry struct {
	Subject SubjectRef `json:"subject"`
	Teacher TeacherRef `json:"teacher"`
	Room    string     `json:"room"`
	Type    ClassType  `json:"type"`
}

// PlacedEntry is an entry together with its cell coordinates.
type PlacedEntry struct {
	Day      Day    `json:"day"`
	Slot     int    `json:"slot"`
	TimeSlot string `json:"timeSlot"`
	Time     string `json:"time"`
	Entry
}

// Configuration holds the academic identifiers and schedule parameters used to generate slots.
type Configuration struct {
	ClassID         string `json:"classId" validate:"required"`
	SectionID       string `json:"sectionId" validate:"required"`
	AcademicYearID  string `json:"academicYearId" validate:"required"`
	Semester        string `json:"semester" validate:"required"`
	PeriodDuration  int    `json:"periodDuration" validate:"required,gt=0"`
	SchoolStartTime string `json:"schoolStartTime" validate:"required,clock"`
	LunchStartTime  string `json:"lunchStartTime" validate:"required,clock"`
	LunchDuration   int    `json:"lunchDuration" validate:"required,gt=0"`
	TotalPeriods    int    `json:"totalPeriods" validate:"required,gt=0"`
}

// SameIdentity reports whether both configurations address the same class timetable.
func (c Configuration) SameIdentity(other Configuration) bool {
	return c.ClassID == other.ClassID &&
		c.SectionID == other.SectionID &&
		c.AcademicYearID == other.AcademicYearID &&
		c.Semester == other.Semester
}

// TimetableStatus distinguishes drafts from final timetables.
type TimetableStatus string

const (
	TimetableStatusDraft TimetableStatus = "draft"
	TimetableStatusFinal TimetableStatus = "final"
)

// TimetableIdentity is the saved identity the workflow is editing, if any.
type TimetableIdentity struct {
	ID     string          `json:"id,omitempty"`
	Status TimetableStatus `json:"status,omitempty"`
}

// IsDraft reports whether the workflow edits an existing draft.
func (i TimetableIdentity) IsDraft() bool {
	return i.ID != "" && i.Status == TimetableStatusDraft
}

// ConflictDescriptor describes one teacher double-booking reported by the backend.
type ConflictDescriptor struct {
	TeacherName string `json:"teacherName"`
	Day         string `json:"day"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	ClassName   string `json:"className,omitempty"`
	SectionName string `json:"sectionName,omitempty"`
	SubjectName string `json:"subjectName,omitempty"`
	Period      string `json:"period,omitempty"`
	Room        string `json:"room,omitempty"`
	TimetableID string `json:"timetableId,omitempty"`
}

// ConflictReport is the outcome of a per-entry teacher conflict check.
type ConflictReport struct {
	HasConflict bool                 `json:"hasConflict"`
	Count       int                  `json:"count"`
	Conflicts   []ConflictDescriptor `json:"conflicts"`
	Unchecked   bool                 `json:"unchecked,omitempty"`
	Warning     string               `json:"warning,omitempty"`
	CheckedAt   time.Time            `json:"checkedAt"`
}

// Summary renders the count shown in the conflict dialog.
func (r ConflictReport) Summary() string {
	if r.Unchecked {
		return "conflict check unavailable"
	}
	if r.HasConflict && r.Count < 1 {
		return "conflict found"
	}
	if r.Count == 1 {
		return "1 conflict found"
	}
	return fmt.Sprintf("%d conflicts found", r.Count)
}

// ValidationResult is the outcome of a bulk validation over the whole grid.
type ValidationResult struct {
	IsValid           bool      `json:"isValid"`
	ValidationMessage string    `json:"validationMessage"`
	Unreachable       bool      `json:"unreachable,omitempty"`
	CheckedAt         time.Time `json:"checkedAt"`
}

// WorkflowStep is the single state of a timetable workflow.
type WorkflowStep string

const (
	StepConfiguration WorkflowStep = "CONFIGURATION"
	StepGridEditing   WorkflowStep = "GRID_EDITING"
	StepValidated     WorkflowStep = "VALIDATED"
	StepSaving        WorkflowStep = "SAVING"
	StepCompleted     WorkflowStep = "COMPLETED"
)

// WorkflowOperation names a remote operation guarded against duplicate submission.
type WorkflowOperation string

const (
	OperationLoad     WorkflowOperation = "load"
	OperationGenerate WorkflowOperation = "generate"
	OperationValidate WorkflowOperation = "validate"
	OperationSave     WorkflowOperation = "save"
)
