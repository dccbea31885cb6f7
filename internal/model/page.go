package model

// PageQuery is the ?page=&per_page= pair accepted by list endpoints.
type PageQuery struct {
	Page    int `form:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// LeaderboardQuery bounds how many ranked rows a caller asks for.
type LeaderboardQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}
