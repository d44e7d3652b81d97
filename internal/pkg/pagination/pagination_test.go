package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextWithQuery(query string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/books?"+query, nil)
	return c
}

func TestFromQuery(t *testing.T) {
	cases := []struct {
		query    string
		page     int
		pageSize int
		offset   int
	}{
		{query: "", page: 1, pageSize: DefaultPageSize, offset: 0},
		{query: "page=3", page: 3, pageSize: DefaultPageSize, offset: 10},
		{query: "page=2&page_size=20", page: 2, pageSize: 20, offset: 20},
		{query: "page_size=1000", page: 1, pageSize: MaxPageSize, offset: 0},
	}

	for _, tc := range cases {
		p, err := FromQuery(contextWithQuery(tc.query))
		require.NoError(t, err, tc.query)
		assert.Equal(t, tc.page, p.Page, tc.query)
		assert.Equal(t, tc.pageSize, p.Limit(), tc.query)
		assert.Equal(t, tc.offset, p.Offset(), tc.query)
	}
}

func TestFromQuery_Invalid(t *testing.T) {
	for _, q := range []string{"page=0", "page=abc", "page_size=-1"} {
		_, err := FromQuery(contextWithQuery(q))
		assert.ErrorIs(t, err, ErrInvalidPage, q)
	}
}
