package order

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// QueryOrdersModel represents filter parameters for listing orders.
type QueryOrdersModel struct {
	Status *Status `json:"status,omitempty"`
	Search string  `json:"search,omitempty"`
	Page   int     `json:"page,omitempty"`
	Limit  int     `json:"limit,omitempty"`
}

// Normalize applies paging defaults and clamps the limit.
func (q *QueryOrdersModel) Normalize() {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
}

func (q *QueryOrdersModel) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Page is one page of a list query together with the unpaged total.
type Page struct {
	Items []Order `json:"items"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}
