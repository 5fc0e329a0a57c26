package models

// Class is a school class as listed by the backend.
type Class struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Grade string `json:"grade,omitempty"`
	Track string `json:"track,omitempty"`
}

// Section is a parallel group within a class.
type Section struct {
	ID      string `json:"id"`
	ClassID string `json:"classId"`
	Name    string `json:"name"`
}

// Teacher is a teacher available for assignment.
type Teacher struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Subject is a subject taught to a class.
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// ReferenceList wraps a reference list with a notice when it could not be fetched.
type ReferenceList[T any] struct {
	Items  []T    `json:"items"`
	Notice string `json:"notice,omitempty"`
	Cached bool   `json:"cached"`
}
