package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

// FakeSource is an in-memory n2s.Source. It paginates query results by the
// requested page size and records every call.
type FakeSource struct {
	mu        sync.Mutex
	databases map[string][]*n2s.Page
	pages     map[string]*n2s.Page
	users     map[string]n2s.User

	// QueryErr, when set, fails every query.
	QueryErr error

	Queries     []n2s.QueryRequest
	PageLookups []string
	UserLookups []string
}

var _ n2s.Source = (*FakeSource)(nil)

func NewFakeSource() *FakeSource {
	return &FakeSource{
		databases: make(map[string][]*n2s.Page),
		pages:     make(map[string]*n2s.Page),
		users:     make(map[string]n2s.User),
	}
}

// AddRows appends pages to a database. They are also retrievable by ID.
func (s *FakeSource) AddRows(databaseID string, pages ...*n2s.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.databases[databaseID] = append(s.databases[databaseID], pages...)
	for _, p := range pages {
		s.pages[p.ID] = p
	}
}

// AddPage makes a page retrievable by ID without adding it to a database.
func (s *FakeSource) AddPage(page *n2s.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page.ID] = page
}

// AddUser makes a user retrievable by ID.
func (s *FakeSource) AddUser(u n2s.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *FakeSource) QueryDatabase(_ context.Context, req n2s.QueryRequest) (*n2s.QueryResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Queries = append(s.Queries, req)
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}

	var matching []*n2s.Page
	for _, p := range s.databases[req.DatabaseID] {
		if req.Filter != nil {
			edited, err := n2s.ParseTimestamp(p.LastEditedTime)
			if err != nil || edited.Before(req.Filter.OnOrAfter) {
				continue
			}
		}
		matching = append(matching, p)
	}

	start := 0
	if req.StartCursor != "" {
		n, err := strconv.Atoi(req.StartCursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q", req.StartCursor)
		}
		start = n
	}
	size := req.PageSize
	if size <= 0 {
		size = n2s.DefaultPageSize
	}
	end := min(start+size, len(matching))

	result := &n2s.QueryResult{Results: matching[start:end]}
	if end < len(matching) {
		result.HasMore = true
		result.NextCursor = strconv.Itoa(end)
	}
	return result, nil
}

func (s *FakeSource) GetPage(_ context.Context, id string) (*n2s.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.PageLookups = append(s.PageLookups, id)
	p, ok := s.pages[id]
	if !ok {
		return nil, fmt.Errorf("page %s not found", id)
	}
	return p, nil
}

func (s *FakeSource) GetUser(_ context.Context, id string) (n2s.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.UserLookups = append(s.UserLookups, id)
	u, ok := s.users[id]
	if !ok {
		return n2s.User{}, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}

// NewPage builds a page with the given properties and edit time.
func NewPage(id, lastEdited string, props ...n2s.Property) *n2s.Page {
	return &n2s.Page{
		ID:             id,
		Properties:     props,
		CreatedTime:    lastEdited,
		LastEditedTime: lastEdited,
		URL:            "https://www.notion.so/" + id,
	}
}

// TitleProp builds a title property with a single text span.
func TitleProp(name, text string) n2s.Property {
	return n2s.Property{Name: name, Value: n2s.Title{Text: []n2s.RichTextSpan{{Content: text, PlainText: text}}}}
}

// TextProp builds a rich_text property with a single text span.
func TextProp(name, text string) n2s.Property {
	return n2s.Property{Name: name, Value: n2s.RichText{Text: []n2s.RichTextSpan{{Content: text, PlainText: text}}}}
}
