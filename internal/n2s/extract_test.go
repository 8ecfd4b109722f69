package n2s_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
	"github.com/caiotarifa/notion2sheets/internal/testutil"
)

// stubFormatter marks every value it renders so tests can tell formatted
// output from raw output.
type stubFormatter struct{}

func (stubFormatter) FormatBoolean(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func (stubFormatter) FormatNumber(v float64) string {
	return "#" + strconv.FormatFloat(v, 'f', -1, 64)
}

func (stubFormatter) FormatDate(iso string) string {
	return "<" + iso + ">"
}

func (stubFormatter) Localized() bool { return true }

// plainFormatter renders like stubFormatter but without a locale, so numbers
// stay numeric.
type plainFormatter struct{ stubFormatter }

func (plainFormatter) Localized() bool { return false }

func num(f float64) *float64 { return &f }

func spans(texts ...string) []n2s.RichTextSpan {
	out := make([]n2s.RichTextSpan, len(texts))
	for i, t := range texts {
		out[i] = n2s.RichTextSpan{Content: t, PlainText: t}
	}
	return out
}

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name  string
		value n2s.PropertyValue
		want  string
	}{
		{"nil value", nil, ""},
		{"checkbox true", n2s.Checkbox(true), "yes"},
		{"checkbox false", n2s.Checkbox(false), "no"},
		{"number", n2s.Number{Value: num(1234.5)}, "#1234.5"},
		{"empty number", n2s.Number{}, ""},
		{"title concatenates spans", n2s.Title{Text: spans("Hello ", "world")}, "Hello world"},
		{"mention falls back to plain text", n2s.Title{Text: []n2s.RichTextSpan{{PlainText: "@Ada"}}}, "@Ada"},
		{"empty title", n2s.Title{}, ""},
		{"rich text", n2s.RichText{Text: spans("notes")}, "notes"},
		{"select", n2s.Select{Option: &n2s.Option{Name: "High"}}, "High"},
		{"empty select", n2s.Select{}, ""},
		{"status", n2s.Status{Option: &n2s.Option{Name: "Done"}}, "Done"},
		{"multi select", n2s.MultiSelect{Options: []n2s.Option{{Name: "a"}, {Name: ""}, {Name: "b"}}}, "a\nb"},
		{"date", n2s.Date{Start: "2024-01-01"}, "<2024-01-01>"},
		{"date range", n2s.Date{Start: "2024-01-01", End: "2024-01-05"}, "<2024-01-01> → <2024-01-05>"},
		{"empty date", n2s.Date{}, ""},
		{"people with names", n2s.People{Users: []n2s.User{{ID: "u1", Name: "Ada"}, {ID: "u2", Name: "Grace"}}}, "Ada\nGrace"},
		{"created time", n2s.CreatedTime("2024-01-01T10:00:00.000Z"), "<2024-01-01T10:00:00.000Z>"},
		{"last edited time", n2s.LastEditedTime("2024-01-02T10:00:00.000Z"), "<2024-01-02T10:00:00.000Z>"},
		{"string formula", n2s.Formula{Result: n2s.String("computed")}, "computed"},
		{"number formula", n2s.Formula{Result: n2s.Number{Value: num(2)}}, "#2"},
		{"boolean formula", n2s.Formula{Result: n2s.Checkbox(true)}, "yes"},
		{"date formula", n2s.Formula{Result: n2s.Date{Start: "2024-02-02"}}, "<2024-02-02>"},
		{"empty formula", n2s.Formula{}, ""},
		{"nested formula", n2s.Formula{Result: n2s.Formula{Result: n2s.String("x")}}, ""},
		{"rollup array keeps order", n2s.Rollup{Array: []n2s.PropertyValue{n2s.Number{Value: num(3)}, n2s.String("b"), n2s.Number{Value: num(1)}}}, "#3\nb\n#1"},
		{"rollup value", n2s.Rollup{Value: n2s.Number{Value: num(10)}}, "#10"},
		{"empty rollup array", n2s.Rollup{Array: []n2s.PropertyValue{}}, ""},
		{"unique id with prefix", n2s.UniqueID{Prefix: "TASK", Number: num(42)}, "TASK-42"},
		{"unique id without prefix", n2s.UniqueID{Number: num(7)}, "7"},
		{"empty unique id", n2s.UniqueID{Prefix: "TASK"}, ""},
		{"url", n2s.URL("https://example.com"), "https://example.com"},
		{"email", n2s.Email("a@example.com"), "a@example.com"},
		{"phone", n2s.PhoneNumber("+55 11 5555"), "+55 11 5555"},
		{"unsupported", n2s.Unsupported{Type: "files"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := n2s.NewExtractor(testutil.NewFakeSource(), stubFormatter{}, n2s.NewNopLogger())
			if got := e.Extract(context.Background(), tt.value); got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractor_Relation(t *testing.T) {
	src := testutil.NewFakeSource()
	src.AddPage(testutil.NewPage("p1", "", testutil.TextProp("Notes", "ignored"), testutil.TitleProp("Name", "Alpha")))
	src.AddPage(testutil.NewPage("p2", "", testutil.TitleProp("Name", "Beta")))
	src.AddPage(testutil.NewPage("untitled", "", testutil.TextProp("Notes", "no title")))

	tests := []struct {
		name string
		ids  []string
		want string
	}{
		{"empty relation", nil, ""},
		{"titles in reference order", []string{"p2", "p1"}, "Beta\nAlpha"},
		{"missing page is skipped", []string{"p1", "gone", "p2"}, "Alpha\nBeta"},
		{"page without title renders empty", []string{"untitled"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := n2s.NewExtractor(src, stubFormatter{}, n2s.NewNopLogger())
			if got := e.Extract(context.Background(), n2s.Relation{IDs: tt.ids}); got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractor_PageCache(t *testing.T) {
	src := testutil.NewFakeSource()
	src.AddPage(testutil.NewPage("p1", "", testutil.TitleProp("Name", "Alpha")))

	e := n2s.NewExtractor(src, stubFormatter{}, n2s.NewNopLogger())
	rel := n2s.Relation{IDs: []string{"p1", "p1", "gone"}}
	e.Extract(context.Background(), rel)
	e.Extract(context.Background(), rel)

	// One lookup per distinct page, failures included.
	if len(src.PageLookups) != 2 {
		t.Errorf("page lookups = %v, want one each for p1 and gone", src.PageLookups)
	}
}

func TestExtractor_RememberedPagesNeedNoLookup(t *testing.T) {
	src := testutil.NewFakeSource()
	e := n2s.NewExtractor(src, stubFormatter{}, n2s.NewNopLogger())
	e.Remember(testutil.NewPage("p1", "", testutil.TitleProp("Name", "Local")))

	if got := e.Extract(context.Background(), n2s.Relation{IDs: []string{"p1"}}); got != "Local" {
		t.Errorf("Extract() = %q, want Local", got)
	}
	if len(src.PageLookups) != 0 {
		t.Errorf("page lookups = %v, want none", src.PageLookups)
	}
}

func TestExtractor_DepthGuard(t *testing.T) {
	// Each rollup level adds one to the depth.
	var v n2s.PropertyValue = n2s.String("deep")
	for range n2s.MaxDepth + 2 {
		v = n2s.Rollup{Value: v}
	}

	logger := &testutil.RecordingLogger{}
	e := n2s.NewExtractor(testutil.NewFakeSource(), stubFormatter{}, logger)
	if got := e.Extract(context.Background(), v); got != "" {
		t.Errorf("Extract() = %q, want empty past max depth", got)
	}
	if !logger.Contains("WARN", "depth") {
		t.Error("expected a depth warning")
	}

	var shallow n2s.PropertyValue = n2s.String("ok")
	for range n2s.MaxDepth {
		shallow = n2s.Rollup{Value: shallow}
	}
	if got := e.Extract(context.Background(), shallow); got != "ok" {
		t.Errorf("Extract() = %q, want ok within max depth", got)
	}
}

func TestExtractor_ResolveUser(t *testing.T) {
	src := testutil.NewFakeSource()
	src.AddUser(n2s.User{ID: "u1", Name: "Ada"})

	e := n2s.NewExtractor(src, stubFormatter{}, n2s.NewNopLogger())
	ctx := context.Background()

	if got := e.Extract(ctx, n2s.CreatedBy{ID: "u1"}); got != "Ada" {
		t.Errorf("Extract(created_by) = %q, want Ada", got)
	}
	if got := e.Extract(ctx, n2s.LastEditedBy{ID: "u1"}); got != "Ada" {
		t.Errorf("Extract(last_edited_by) = %q, want Ada", got)
	}
	if got := e.Extract(ctx, n2s.People{Users: []n2s.User{{ID: "u1"}, {ID: "ghost"}}}); got != "Ada" {
		t.Errorf("Extract(people) = %q, want Ada", got)
	}

	if len(src.UserLookups) != 2 {
		t.Errorf("user lookups = %v, want one each for u1 and ghost", src.UserLookups)
	}

	cached := e.CachedUsers()
	if cached["u1"].Name != "Ada" {
		t.Errorf("cached u1 = %+v", cached["u1"])
	}
	if u, ok := cached["ghost"]; !ok || u.Name != "" {
		t.Errorf("cached ghost = %+v, %v; want nameless entry", u, ok)
	}
}

func TestExtractor_NamedUsersAreCachedWithoutLookup(t *testing.T) {
	src := testutil.NewFakeSource()
	e := n2s.NewExtractor(src, stubFormatter{}, n2s.NewNopLogger())

	e.Extract(context.Background(), n2s.People{Users: []n2s.User{{ID: "u1", Name: "Ada"}}})
	if got := e.Extract(context.Background(), n2s.CreatedBy{ID: "u1"}); got != "Ada" {
		t.Errorf("Extract(created_by) = %q, want Ada from cache", got)
	}
	if len(src.UserLookups) != 0 {
		t.Errorf("user lookups = %v, want none", src.UserLookups)
	}
}

func TestExtractor_ExtractCell(t *testing.T) {
	tests := []struct {
		name      string
		formatter n2s.Formatter
		in        n2s.PropertyValue
		want      n2s.Cell
	}{
		{"number", plainFormatter{}, n2s.Number{Value: num(42)}, n2s.Cell{Kind: n2s.NumberCell, Number: 42}},
		{"null number", plainFormatter{}, n2s.Number{}, n2s.Cell{Kind: n2s.StringCell}},
		{"unique id", plainFormatter{}, n2s.UniqueID{Number: num(7)}, n2s.Cell{Kind: n2s.NumberCell, Number: 7}},
		{"prefixed unique id", plainFormatter{}, n2s.UniqueID{Prefix: "TASK", Number: num(7)}, n2s.Cell{Kind: n2s.StringCell, String: "TASK-7"}},
		{"number formula", plainFormatter{}, n2s.Formula{Result: n2s.Number{Value: num(1.5)}}, n2s.Cell{Kind: n2s.NumberCell, Number: 1.5}},
		{"number rollup", plainFormatter{}, n2s.Rollup{Value: n2s.Number{Value: num(10)}}, n2s.Cell{Kind: n2s.NumberCell, Number: 10}},
		{"rollup array", plainFormatter{}, n2s.Rollup{Array: []n2s.PropertyValue{n2s.Number{Value: num(1)}}}, n2s.Cell{Kind: n2s.StringCell, String: "1"}},
		{"text", plainFormatter{}, n2s.String("abc"), n2s.Cell{Kind: n2s.StringCell, String: "abc"}},
		{"localized number", stubFormatter{}, n2s.Number{Value: num(42)}, n2s.Cell{Kind: n2s.StringCell, String: "#42"}},
		{"localized unique id", stubFormatter{}, n2s.UniqueID{Number: num(7)}, n2s.Cell{Kind: n2s.StringCell, String: "7"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := n2s.NewExtractor(testutil.NewFakeSource(), tt.formatter, n2s.NewNopLogger())
			if got := e.ExtractCell(context.Background(), tt.in); got != tt.want {
				t.Errorf("ExtractCell(%#v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
