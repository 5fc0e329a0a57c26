package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens issued by the school backend.
type JWTClaims struct {
	UserID         string   `json:"user_id"`
	Role           UserRole `json:"role"`
	Email          string   `json:"email"`
	FullName       string   `json:"full_name"`
	AcademicYearID string   `json:"academic_year_id,omitempty"`
	jwt.RegisteredClaims
}

// SessionContext is the explicit user/session input of a timetable workflow.
type SessionContext struct {
	User           UserInfo
	AccessToken    string
	AcademicYearID string
}
