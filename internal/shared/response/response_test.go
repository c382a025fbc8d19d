package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-hris-leave/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	items := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		name  string
		query string
		want  []string
		meta  response.PaginationMeta
	}{
		{"defaults", "", items, response.PaginationMeta{Total: 5, TotalPages: 1, Page: 1, PageSize: 10}},
		{"second page", "?page=2&page_size=2", []string{"c", "d"}, response.PaginationMeta{Total: 5, TotalPages: 3, Page: 2, PageSize: 2}},
		{"past the end", "?page=9&page_size=2", []string{}, response.PaginationMeta{Total: 5, TotalPages: 3, Page: 9, PageSize: 2}},
		{"junk params", "?page=x&page_size=-1", items, response.PaginationMeta{Total: 5, TotalPages: 1, Page: 1, PageSize: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)

			response.Paginate(c, items)

			var env struct {
				Ok   bool                    `json:"ok"`
				Data []string                `json:"data"`
				Meta response.PaginationMeta `json:"meta"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, env.Ok)
			assert.Equal(t, tt.want, env.Data)
			assert.Equal(t, tt.meta, env.Meta)
		})
	}
}
