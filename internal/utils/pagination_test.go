package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name  string
		query string
		want  PaginationParams
	}{
		{"defaults", "", PaginationParams{Page: 1, Limit: DefaultPageSize, Order: "desc"}},
		{"explicit", "?page=3&limit=50&sort=title&order=ASC&search=+zikomo+&genre=+Gospel",
			PaginationParams{Page: 3, Limit: 50, Sort: "title", Order: "asc", Search: "zikomo", Genre: "gospel"}},
		{"limit too large", "?limit=1000", PaginationParams{Page: 1, Limit: DefaultPageSize, Order: "desc"}},
		{"garbage", "?page=abc&limit=-4&order=sideways", PaginationParams{Page: 1, Limit: DefaultPageSize, Order: "desc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			assert.Equal(t, tt.want, GetPaginationParams(c))
		})
	}
}

func TestCreatePaginationResult(t *testing.T) {
	result := CreatePaginationResult([]string{"a"}, 41, PaginationParams{Page: 2, Limit: 20})
	assert.Equal(t, 3, result.TotalPages)
	assert.Equal(t, 2, result.Page)

	// Zero-valued params are normalized rather than dividing by zero.
	result = CreatePaginationResult(nil, 5, PaginationParams{})
	assert.Equal(t, DefaultPageSize, result.Limit)
	assert.Equal(t, 1, result.TotalPages)
}

func TestPaginatedResponseHeadersAndMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	PaginatedResponse(c, CreatePaginationResult([]int{1, 2}, 45, PaginationParams{Page: 1, Limit: 20}))

	assert.Equal(t, "45", w.Header().Get("X-Total-Count"))
	assert.Equal(t, "3", w.Header().Get("X-Total-Pages"))
	assert.JSONEq(t, `{"success":true,"data":[1,2],"meta":{"pagination":{"page":1,"limit":20,"total":45,"total_pages":3}}}`, w.Body.String())
}

type sortRow struct {
	ID    uint
	Title string
	Plays int
}

func TestApplySortOnlyUsesAllowedColumns(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:pagination_sort?mode=memory&cache=shared"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&sortRow{}))
	assert.NoError(t, db.Create(&[]sortRow{{Title: "b", Plays: 1}, {Title: "a", Plays: 3}, {Title: "c", Plays: 2}}).Error)

	titles := func(params PaginationParams) []string {
		var rows []sortRow
		assert.NoError(t, ApplySort(db.Model(&sortRow{}), params, []string{"plays", "title"}).Find(&rows).Error)
		out := make([]string, 0, len(rows))
		for _, row := range rows {
			out = append(out, row.Title)
		}
		return out
	}

	assert.Equal(t, []string{"a", "c", "b"}, titles(PaginationParams{}), "defaults to the first allowed column, descending")
	assert.Equal(t, []string{"a", "b", "c"}, titles(PaginationParams{Sort: "title", Order: "asc"}))
	assert.Equal(t, []string{"b", "c", "a"}, titles(PaginationParams{Sort: "plays; DROP TABLE sort_rows", Order: "asc"}))
}
