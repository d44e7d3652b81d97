package pagination

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 5
	MaxPageSize     = 100
)

var ErrInvalidPage = errors.New("invalid page parameters")

type Params struct {
	Page     int
	PageSize int
}

func (p Params) Limit() int  { return p.PageSize }
func (p Params) Offset() int { return (p.Page - 1) * p.PageSize }

// FromQuery reads ?page= and ?page_size=. Page sizes above MaxPageSize are clamped.
func FromQuery(c *gin.Context) (Params, error) {
	p := Params{Page: 1, PageSize: DefaultPageSize}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Params{}, ErrInvalidPage
		}
		p.Page = n
	}
	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Params{}, ErrInvalidPage
		}
		if n > MaxPageSize {
			n = MaxPageSize
		}
		p.PageSize = n
	}
	return p, nil
}
