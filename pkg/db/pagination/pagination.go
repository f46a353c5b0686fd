// Package pagination holds shared list paging types.
package pagination

// Request is a limit/offset paging request.
type Request struct {
	Limit  int `form:"limit" json:"limit"`
	Offset int `form:"offset" json:"offset"`
}

// Normalize clamps the request to sane bounds.
func (r Request) Normalize() Request {
	if r.Limit <= 0 {
		r.Limit = 50
	}
	if r.Limit > 200 {
		r.Limit = 200
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	return r
}

// Info builds the page metadata for a normalized request.
func (r Request) Info(total int64) PageInfo {
	return PageInfo{TotalCount: total, Limit: r.Limit, Offset: r.Offset}
}

// PageInfo describes the page returned by a list operation.
type PageInfo struct {
	TotalCount int64 `json:"total_count"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}
