package model

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AddRepositoryRequest is the body of POST /api/repositories.
type AddRepositoryRequest struct {
	URL string `json:"url" binding:"required"`
}

// APIResponse is the envelope returned by every endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK wraps data in a successful envelope.
func OK(data any) APIResponse {
	return APIResponse{Success: true, Data: data}
}

// Fail wraps a user-facing message in a failed envelope.
func Fail(message string) APIResponse {
	return APIResponse{Success: false, Message: message}
}

// PaginationQuery holds the optional paging parameters of the list endpoint.
type PaginationQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// PaginatedResponse is the list payload when paging was requested.
type PaginatedResponse struct {
	Items      []Repository `json:"items"`
	Total      int64        `json:"total"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	TotalPages int          `json:"total_pages"`
}
