package model

type SuccessMessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type SuccessResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data,omitempty"`
}

type ProfileResponse struct {
	Success bool        `json:"success"`
	Data    ProfileData `json:"data"`
}

type LoginResponse struct {
	User  LoginUser `json:"user"`
	Token string    `json:"token"`
}

type LoginSuccessResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Data    LoginResponse `json:"data"`
}

// Pagination is the pagination block of the verification and staff listings.
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

type ListFilters struct {
	Status        string `json:"status,omitempty"`
	SubmitterRole string `json:"submitterRole,omitempty"`
	Course        string `json:"course,omitempty"`
	Search        string `json:"search,omitempty"`
	Session       string `json:"session,omitempty"`
}

type PendingListResponse struct {
	Success      bool                  `json:"success"`
	Applications []ApplicationResponse `json:"applications"`
	Pagination   Pagination            `json:"pagination"`
	Filters      ListFilters           `json:"filters"`
}

type StudentListResponse struct {
	Success    bool                  `json:"success"`
	Students   []ApplicationResponse `json:"students"`
	Pagination Pagination            `json:"pagination"`
}

type SessionsResponse struct {
	Current   string   `json:"current"`
	Available []string `json:"available"`
}
