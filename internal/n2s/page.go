package n2s

// User is a Notion workspace member. Name may be empty when the API returned a
// partial user object or the lookup failed.
type User struct {
	ID   string
	Name string
}

// Page is one record of a Notion database as returned by a query or a page
// lookup. It is a read-only snapshot for the duration of a run.
type Page struct {
	ID             string
	Properties     []Property // Notion response order; defines column order
	CreatedBy      User
	LastEditedBy   User
	CreatedTime    string // ISO-8601, verbatim from the API
	LastEditedTime string
	URL            string
}

// Title returns the page's first title-typed property value, or nil.
func (p *Page) Title() PropertyValue {
	for _, prop := range p.Properties {
		if title, ok := prop.Value.(Title); ok {
			return title
		}
	}
	return nil
}

// Property is a named, typed property value.
type Property struct {
	Name  string
	Value PropertyValue
}

// PropertyValue is the sealed set of Notion property variants. Each concrete
// type below mirrors one Notion property type tag.
type PropertyValue interface {
	propertyType() string
}

// RichTextSpan is one element of a title or rich_text array.
type RichTextSpan struct {
	Content   string // text.content, empty for mentions and equations
	PlainText string
}

// Option is a select, status or multi_select choice.
type Option struct {
	Name string
}

type (
	Checkbox bool

	Number struct {
		Value *float64
	}

	Title struct {
		Text []RichTextSpan
	}

	RichText struct {
		Text []RichTextSpan
	}

	Select struct {
		Option *Option
	}

	Status struct {
		Option *Option
	}

	MultiSelect struct {
		Options []Option
	}

	Date struct {
		Start string
		End   string
	}

	People struct {
		Users []User
	}

	Relation struct {
		IDs []string
	}

	// Formula wraps the formula's computed result: String, Number, Checkbox
	// (the API's "boolean" result) or Date.
	Formula struct {
		Result PropertyValue
	}

	// Rollup holds either an array of nested values (Array non-nil) or a
	// single nested value.
	Rollup struct {
		Array []PropertyValue
		Value PropertyValue
	}

	UniqueID struct {
		Prefix string
		Number *float64
	}

	URL         string
	Email       string
	PhoneNumber string
	String      string

	CreatedBy      User
	LastEditedBy   User
	CreatedTime    string
	LastEditedTime string

	// Unsupported is any property type without a display rendering.
	Unsupported struct {
		Type string
	}
)

func (Checkbox) propertyType() string       { return "checkbox" }
func (Number) propertyType() string         { return "number" }
func (Title) propertyType() string          { return "title" }
func (RichText) propertyType() string       { return "rich_text" }
func (Select) propertyType() string         { return "select" }
func (Status) propertyType() string         { return "status" }
func (MultiSelect) propertyType() string    { return "multi_select" }
func (Date) propertyType() string           { return "date" }
func (People) propertyType() string         { return "people" }
func (Relation) propertyType() string       { return "relation" }
func (Formula) propertyType() string        { return "formula" }
func (Rollup) propertyType() string         { return "rollup" }
func (UniqueID) propertyType() string       { return "unique_id" }
func (URL) propertyType() string            { return "url" }
func (Email) propertyType() string          { return "email" }
func (PhoneNumber) propertyType() string    { return "phone_number" }
func (String) propertyType() string         { return "string" }
func (CreatedBy) propertyType() string      { return "created_by" }
func (LastEditedBy) propertyType() string   { return "last_edited_by" }
func (CreatedTime) propertyType() string    { return "created_time" }
func (LastEditedTime) propertyType() string { return "last_edited_time" }
func (u Unsupported) propertyType() string  { return u.Type }

// TypeOf returns the Notion type tag of v, or "" for nil.
func TypeOf(v PropertyValue) string {
	if v == nil {
		return ""
	}
	return v.propertyType()
}
