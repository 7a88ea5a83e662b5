package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNewClamps(t *testing.T) {
	cases := []struct {
		page, limit int
		want        Params
	}{
		{0, 0, Params{Page: 1, Limit: DefaultLimit, Offset: 0}},
		{3, 10, Params{Page: 3, Limit: 10, Offset: 20}},
		{-2, 500, Params{Page: 1, Limit: MaxLimit, Offset: 0}},
		{2, MaxLimit, Params{Page: 2, Limit: MaxLimit, Offset: MaxLimit}},
	}
	for _, c := range cases {
		if got := New(c.page, c.limit); got != c.want {
			t.Errorf("New(%d, %d) = %+v, want %+v", c.page, c.limit, got, c.want)
		}
	}
}

func TestParseQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for query, want := range map[string]Params{
		"":                  {Page: 1, Limit: DefaultLimit},
		"?page=4&limit=25":  {Page: 4, Limit: 25, Offset: 75},
		"?page=abc&limit=x": {Page: 1, Limit: DefaultLimit},
	} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/orders"+query, nil)
		if got := Parse(c); got != want {
			t.Errorf("Parse(%q) = %+v, want %+v", query, got, want)
		}
	}
}
