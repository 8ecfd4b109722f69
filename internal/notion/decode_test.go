package notion

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/caiotarifa/notion2sheets/internal/format"
	"github.com/caiotarifa/notion2sheets/internal/n2s"
	"github.com/caiotarifa/notion2sheets/internal/testutil"
)

func ptr(f float64) *float64 { return &f }

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    n2s.PropertyValue
		wantErr bool
	}{
		{
			name: "checkbox",
			raw:  `{"type":"checkbox","checkbox":true}`,
			want: n2s.Checkbox(true),
		},
		{
			name: "number",
			raw:  `{"type":"number","number":42.5}`,
			want: n2s.Number{Value: ptr(42.5)},
		},
		{
			name: "null number",
			raw:  `{"type":"number","number":null}`,
			want: n2s.Number{},
		},
		{
			name: "title spans",
			raw:  `{"type":"title","title":[{"type":"text","text":{"content":"Hello "},"plain_text":"Hello "},{"type":"mention","plain_text":"@Ada"}]}`,
			want: n2s.Title{Text: []n2s.RichTextSpan{{Content: "Hello ", PlainText: "Hello "}, {PlainText: "@Ada"}}},
		},
		{
			name: "empty rich text",
			raw:  `{"type":"rich_text","rich_text":[]}`,
			want: n2s.RichText{Text: []n2s.RichTextSpan{}},
		},
		{
			name: "select",
			raw:  `{"type":"select","select":{"id":"x","name":"High","color":"red"}}`,
			want: n2s.Select{Option: &n2s.Option{Name: "High"}},
		},
		{
			name: "empty select",
			raw:  `{"type":"select","select":null}`,
			want: n2s.Select{},
		},
		{
			name: "status",
			raw:  `{"type":"status","status":{"name":"Done"}}`,
			want: n2s.Status{Option: &n2s.Option{Name: "Done"}},
		},
		{
			name: "multi select",
			raw:  `{"type":"multi_select","multi_select":[{"name":"a"},{"name":"b"}]}`,
			want: n2s.MultiSelect{Options: []n2s.Option{{Name: "a"}, {Name: "b"}}},
		},
		{
			name: "date range",
			raw:  `{"type":"date","date":{"start":"2024-01-01","end":"2024-01-05","time_zone":null}}`,
			want: n2s.Date{Start: "2024-01-01", End: "2024-01-05"},
		},
		{
			name: "empty date",
			raw:  `{"type":"date","date":null}`,
			want: n2s.Date{},
		},
		{
			name: "people",
			raw:  `{"type":"people","people":[{"object":"user","id":"u1","name":"Ada"},{"object":"user","id":"u2"}]}`,
			want: n2s.People{Users: []n2s.User{{ID: "u1", Name: "Ada"}, {ID: "u2"}}},
		},
		{
			name: "relation",
			raw:  `{"type":"relation","relation":[{"id":"p1"},{"id":"p2"}],"has_more":false}`,
			want: n2s.Relation{IDs: []string{"p1", "p2"}},
		},
		{
			name: "string formula",
			raw:  `{"type":"formula","formula":{"type":"string","string":"computed"}}`,
			want: n2s.Formula{Result: n2s.String("computed")},
		},
		{
			name: "number formula",
			raw:  `{"type":"formula","formula":{"type":"number","number":7}}`,
			want: n2s.Formula{Result: n2s.Number{Value: ptr(7)}},
		},
		{
			name: "boolean formula",
			raw:  `{"type":"formula","formula":{"type":"boolean","boolean":true}}`,
			want: n2s.Formula{Result: n2s.Checkbox(true)},
		},
		{
			name: "false boolean formula",
			raw:  `{"type":"formula","formula":{"type":"boolean","boolean":false}}`,
			want: n2s.Formula{Result: n2s.Checkbox(false)},
		},
		{
			name: "array rollup keeps order",
			raw: `{"type":"rollup","rollup":{"type":"array","function":"show_original","array":[
				{"type":"title","title":[{"plain_text":"first"}]},
				{"type":"number","number":2}
			]}}`,
			want: n2s.Rollup{Array: []n2s.PropertyValue{
				n2s.Title{Text: []n2s.RichTextSpan{{PlainText: "first"}}},
				n2s.Number{Value: ptr(2)},
			}},
		},
		{
			name: "number rollup",
			raw:  `{"type":"rollup","rollup":{"type":"number","number":10,"function":"sum"}}`,
			want: n2s.Rollup{Value: n2s.Number{Value: ptr(10)}},
		},
		{
			name: "unique id",
			raw:  `{"type":"unique_id","unique_id":{"prefix":"TASK","number":12}}`,
			want: n2s.UniqueID{Prefix: "TASK", Number: ptr(12)},
		},
		{
			name: "unique id without prefix",
			raw:  `{"type":"unique_id","unique_id":{"prefix":null,"number":3}}`,
			want: n2s.UniqueID{Number: ptr(3)},
		},
		{
			name: "url",
			raw:  `{"type":"url","url":"https://example.com"}`,
			want: n2s.URL("https://example.com"),
		},
		{
			name: "null email",
			raw:  `{"type":"email","email":null}`,
			want: n2s.Email(""),
		},
		{
			name: "created by",
			raw:  `{"type":"created_by","created_by":{"object":"user","id":"u1"}}`,
			want: n2s.CreatedBy{ID: "u1"},
		},
		{
			name: "last edited time",
			raw:  `{"type":"last_edited_time","last_edited_time":"2024-01-01T00:00:00.000Z"}`,
			want: n2s.LastEditedTime("2024-01-01T00:00:00.000Z"),
		},
		{
			name: "unknown type",
			raw:  `{"type":"files","files":[]}`,
			want: n2s.Unsupported{Type: "files"},
		},
		{
			name:    "payload does not match type",
			raw:     `{"type":"number","number":"lots"}`,
			want:    n2s.Unsupported{Type: "number"},
			wantErr: true,
		},
		{
			name:    "missing type",
			raw:     `{"number":1}`,
			want:    n2s.Unsupported{},
			wantErr: true,
		},
		{
			name:    "not an object",
			raw:     `[1,2]`,
			want:    n2s.Unsupported{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeValue(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeValue_BooleanFormulaRendersLocalized(t *testing.T) {
	v, err := DecodeValue(json.RawMessage(`{"type":"formula","formula":{"type":"boolean","boolean":true}}`))
	if err != nil {
		t.Fatalf("DecodeValue() error = %v", err)
	}

	f, err := format.New("pt-BR", time.UTC)
	if err != nil {
		t.Fatalf("format.New() error = %v", err)
	}
	e := n2s.NewExtractor(testutil.NewFakeSource(), f, n2s.NewNopLogger())
	if got := e.Extract(context.Background(), v); got != "Sim" {
		t.Errorf("Extract() = %q, want %q", got, "Sim")
	}
}

func TestDecodeValue_RollupWithMalformedElement(t *testing.T) {
	raw := `{"type":"rollup","rollup":{"type":"array","array":[{"type":"number","number":"x"},{"type":"number","number":1}]}}`

	got, err := DecodeValue(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("DecodeValue() error = %v", err)
	}
	rollup, ok := got.(n2s.Rollup)
	if !ok || len(rollup.Array) != 2 {
		t.Fatalf("DecodeValue() = %#v, want two-element rollup", got)
	}
	if _, ok := rollup.Array[0].(n2s.Unsupported); !ok {
		t.Errorf("Array[0] = %#v, want Unsupported", rollup.Array[0])
	}
}

func TestWirePage_KeepsPropertyOrder(t *testing.T) {
	raw := `{"id":"p","properties":{
		"Zeta":{"type":"checkbox","checkbox":false},
		"Alpha":{"type":"checkbox","checkbox":true},
		"Mid":{"type":"bogus"}
	}}`

	var wp wirePage
	if err := json.Unmarshal([]byte(raw), &wp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	page := wp.toPage(n2s.NewNopLogger())

	var names []string
	for _, p := range page.Properties {
		names = append(names, p.Name)
	}
	want := []string{"Zeta", "Alpha", "Mid"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("property order = %v, want %v", names, want)
	}
}
