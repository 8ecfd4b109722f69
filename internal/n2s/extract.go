package n2s

import (
	"context"
	"strconv"
	"strings"
)

// MaxDepth bounds nested extraction (relation → page → title, rollup → value).
// Notion schemas should never need more, but the data is not verified acyclic.
const MaxDepth = 4

// Extractor converts typed property values into display strings.
//
// An Extractor owns the page and user caches for a single collection run and
// must not be shared between runs. It is not safe for concurrent use.
type Extractor struct {
	source    Source
	formatter Formatter
	logger    Logger
	pages     map[string]*Page // nil value records a failed lookup
	users     map[string]User
}

// NewExtractor creates an Extractor with empty caches.
func NewExtractor(source Source, formatter Formatter, logger Logger) *Extractor {
	return &Extractor{
		source:    source,
		formatter: formatter,
		logger:    logger,
		pages:     make(map[string]*Page),
		users:     make(map[string]User),
	}
}

// Extract renders v. It never fails: unknown types, malformed payloads and
// failed lookups all render as the empty string.
func (e *Extractor) Extract(ctx context.Context, v PropertyValue) string {
	return e.extract(ctx, v, 0)
}

// ExtractCell renders v as a sheet cell. Numbers, unprefixed unique ids and
// formula or rollup results holding a number stay numeric unless the
// formatter is localized; everything else is the text Extract returns.
func (e *Extractor) ExtractCell(ctx context.Context, v PropertyValue) Cell {
	if !e.formatter.Localized() {
		if n, ok := rawNumber(v); ok {
			return Cell{Kind: NumberCell, Number: n}
		}
	}
	return Cell{Kind: StringCell, String: e.Extract(ctx, v)}
}

func rawNumber(v PropertyValue) (float64, bool) {
	switch p := v.(type) {
	case Number:
		if p.Value != nil {
			return *p.Value, true
		}
	case UniqueID:
		if p.Number != nil && p.Prefix == "" {
			return *p.Number, true
		}
	case Formula:
		if n, ok := p.Result.(Number); ok {
			return rawNumber(n)
		}
	case Rollup:
		if n, ok := p.Value.(Number); ok && p.Array == nil {
			return rawNumber(n)
		}
	}
	return 0, false
}

func (e *Extractor) extract(ctx context.Context, v PropertyValue, depth int) string {
	if depth > MaxDepth {
		e.logger.Warn("extraction depth exceeded", "type", TypeOf(v), "depth", depth)
		return ""
	}

	switch p := v.(type) {
	case Checkbox:
		return e.formatter.FormatBoolean(bool(p))
	case Number:
		if p.Value == nil {
			return ""
		}
		return e.formatter.FormatNumber(*p.Value)
	case Title:
		return joinSpans(p.Text)
	case RichText:
		return joinSpans(p.Text)
	case Select:
		return optionName(p.Option)
	case Status:
		return optionName(p.Option)
	case MultiSelect:
		names := make([]string, 0, len(p.Options))
		for _, o := range p.Options {
			if o.Name != "" {
				names = append(names, o.Name)
			}
		}
		return strings.Join(names, "\n")
	case Date:
		return e.formatDateRange(p)
	case People:
		names := make([]string, 0, len(p.Users))
		for _, u := range p.Users {
			if name := e.ResolveUser(ctx, u).Name; name != "" {
				names = append(names, name)
			}
		}
		return strings.Join(names, "\n")
	case CreatedBy:
		return e.ResolveUser(ctx, User(p)).Name
	case LastEditedBy:
		return e.ResolveUser(ctx, User(p)).Name
	case CreatedTime:
		return e.formatter.FormatDate(string(p))
	case LastEditedTime:
		return e.formatter.FormatDate(string(p))
	case Relation:
		return e.relationTitles(ctx, p.IDs, depth)
	case Formula:
		switch p.Result.(type) {
		case Formula, Rollup:
			return ""
		}
		return e.extract(ctx, p.Result, depth+1)
	case Rollup:
		if p.Array != nil {
			values := make([]string, len(p.Array))
			for i, item := range p.Array {
				values[i] = e.extract(ctx, item, depth+1)
			}
			return strings.Join(values, "\n")
		}
		return e.extract(ctx, p.Value, depth+1)
	case UniqueID:
		if p.Number == nil {
			return ""
		}
		n := strconv.FormatFloat(*p.Number, 'f', -1, 64)
		if p.Prefix == "" {
			return n
		}
		return p.Prefix + "-" + n
	case URL:
		return string(p)
	case Email:
		return string(p)
	case PhoneNumber:
		return string(p)
	case String:
		return string(p)
	default:
		return ""
	}
}

func (e *Extractor) formatDateRange(d Date) string {
	if d.Start == "" {
		return ""
	}
	start := e.formatter.FormatDate(d.Start)
	if d.End == "" {
		return start
	}
	return start + " → " + e.formatter.FormatDate(d.End)
}

// relationTitles resolves each referenced page's title, in reference order.
// Pages that cannot be loaded are skipped.
func (e *Extractor) relationTitles(ctx context.Context, ids []string, depth int) string {
	titles := make([]string, 0, len(ids))
	for _, id := range ids {
		page := e.Page(ctx, id)
		if page == nil {
			continue
		}
		titles = append(titles, e.extract(ctx, page.Title(), depth+1))
	}
	return strings.Join(titles, "\n")
}

// Page returns the page with the given ID from the cache, fetching it on a
// miss. It returns nil if the page cannot be retrieved.
func (e *Extractor) Page(ctx context.Context, id string) *Page {
	if page, ok := e.pages[id]; ok {
		return page
	}

	page, err := e.source.GetPage(ctx, id)
	if err != nil {
		e.logger.Warn("page lookup failed", "page_id", id, "error", err)
		page = nil
	}
	e.pages[id] = page
	return page
}

// Remember adds page to the page cache so relations to it need no lookup.
func (e *Extractor) Remember(page *Page) {
	if page == nil || page.ID == "" {
		return
	}
	if _, ok := e.pages[page.ID]; !ok {
		e.pages[page.ID] = page
	}
}

// ResolveUser fills in u's name from the user cache, fetching it on a miss.
// A failed lookup yields the user with an empty name.
func (e *Extractor) ResolveUser(ctx context.Context, u User) User {
	if u.ID == "" {
		return u
	}
	if cached, ok := e.users[u.ID]; ok {
		return cached
	}
	if u.Name != "" {
		e.users[u.ID] = u
		return u
	}

	fetched, err := e.source.GetUser(ctx, u.ID)
	if err != nil {
		e.logger.Warn("user lookup failed", "user_id", u.ID, "error", err)
		fetched = User{ID: u.ID}
	}
	if fetched.ID == "" {
		fetched.ID = u.ID
	}
	e.users[u.ID] = fetched
	return fetched
}

// CachedUsers returns a copy of the user cache.
func (e *Extractor) CachedUsers() map[string]User {
	users := make(map[string]User, len(e.users))
	for id, u := range e.users {
		users[id] = u
	}
	return users
}

func joinSpans(spans []RichTextSpan) string {
	var b strings.Builder
	for _, s := range spans {
		if s.Content != "" {
			b.WriteString(s.Content)
		} else {
			b.WriteString(s.PlainText)
		}
	}
	return b.String()
}

func optionName(o *Option) string {
	if o == nil {
		return ""
	}
	return o.Name
}
