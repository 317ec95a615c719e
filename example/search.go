package example

import (
	"math/rand"

	"github.com/freekieb7/bytegate/http"
)

// SearchService pretends to look up a text file for a keyword.
type SearchService struct {
	found func() bool
}

// NewSearchService returns a service that finds a file half of the time.
func NewSearchService() *SearchService {
	return &SearchService{found: func() bool { return rand.Intn(2) == 1 }}
}

func (s *SearchService) Search(keyword string) string {
	if s.found() {
		return "Text file found: " + keyword + ".txt"
	}
	return "Text file not found for keyword: " + keyword
}

type SearchController struct {
	search *SearchService
}

func NewSearchController(search *SearchService) *SearchController {
	return &SearchController{search: search}
}

func (c *SearchController) Routes() []http.Endpoint {
	return []http.Endpoint{
		{Method: "GET", Path: "/api/search", Handler: c.Search},
	}
}

func (c *SearchController) Search(req *http.Request) *http.Response {
	keyword, _ := req.QueryParam("keyword")
	if keyword == "" {
		return http.BadRequest("Missing required query parameter: keyword")
	}
	return http.OK(c.search.Search(keyword))
}
