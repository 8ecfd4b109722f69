package notion

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

type wireUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (u wireUser) toUser() n2s.User {
	return n2s.User{ID: u.ID, Name: u.Name}
}

// wirePage keeps properties as an ordered map so columns follow the order
// Notion returns them in.
type wirePage struct {
	ID             string                                           `json:"id"`
	CreatedTime    string                                           `json:"created_time"`
	LastEditedTime string                                           `json:"last_edited_time"`
	CreatedBy      wireUser                                         `json:"created_by"`
	LastEditedBy   wireUser                                         `json:"last_edited_by"`
	URL            string                                           `json:"url"`
	Properties     *orderedmap.OrderedMap[string, json.RawMessage] `json:"properties"`
}

func (wp wirePage) toPage(logger n2s.Logger) *n2s.Page {
	page := &n2s.Page{
		ID:             wp.ID,
		CreatedBy:      wp.CreatedBy.toUser(),
		LastEditedBy:   wp.LastEditedBy.toUser(),
		CreatedTime:    wp.CreatedTime,
		LastEditedTime: wp.LastEditedTime,
		URL:            wp.URL,
	}
	if wp.Properties == nil {
		return page
	}

	page.Properties = make([]n2s.Property, 0, wp.Properties.Len())
	for pair := wp.Properties.Oldest(); pair != nil; pair = pair.Next() {
		value, err := DecodeValue(pair.Value)
		if err != nil {
			logger.Warn("undecodable property", "page_id", wp.ID, "property", pair.Key, "error", err)
		}
		page.Properties = append(page.Properties, n2s.Property{Name: pair.Key, Value: value})
	}
	return page
}

type wireRichText struct {
	PlainText string `json:"plain_text"`
	Text      *struct {
		Content string `json:"content"`
	} `json:"text"`
}

type wireOption struct {
	Name string `json:"name"`
}

type wireDate struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type wireUniqueID struct {
	Prefix string   `json:"prefix"`
	Number *float64 `json:"number"`
}

type wireRollup struct {
	Type  string            `json:"type"`
	Array []json.RawMessage `json:"array"`
}

// DecodeValue decodes one typed property value, such as an entry of a
// page's properties or a formula result. The error is informational: the
// returned value is always usable, falling back to n2s.Unsupported when the
// payload does not match its type tag.
func DecodeValue(raw json.RawMessage) (n2s.PropertyValue, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return n2s.Unsupported{}, fmt.Errorf("decoding property: %w", err)
	}

	var typ string
	if err := json.Unmarshal(fields["type"], &typ); err != nil || typ == "" {
		return n2s.Unsupported{}, fmt.Errorf("property has no type")
	}

	value, err := decodeTyped(typ, fields[typ])
	if err != nil {
		return n2s.Unsupported{Type: typ}, fmt.Errorf("decoding %s property: %w", typ, err)
	}
	return value, nil
}

func decodeTyped(typ string, payload json.RawMessage) (n2s.PropertyValue, error) {
	switch typ {
	case "checkbox", "boolean":
		var v bool
		err := unmarshalOptional(payload, &v)
		return n2s.Checkbox(v), err
	case "number":
		var v *float64
		err := unmarshalOptional(payload, &v)
		return n2s.Number{Value: v}, err
	case "title":
		spans, err := decodeRichText(payload)
		return n2s.Title{Text: spans}, err
	case "rich_text":
		spans, err := decodeRichText(payload)
		return n2s.RichText{Text: spans}, err
	case "select":
		opt, err := decodeOption(payload)
		return n2s.Select{Option: opt}, err
	case "status":
		opt, err := decodeOption(payload)
		return n2s.Status{Option: opt}, err
	case "multi_select":
		var opts []wireOption
		if err := unmarshalOptional(payload, &opts); err != nil {
			return nil, err
		}
		v := n2s.MultiSelect{Options: make([]n2s.Option, len(opts))}
		for i, o := range opts {
			v.Options[i] = n2s.Option{Name: o.Name}
		}
		return v, nil
	case "date":
		var d *wireDate
		if err := unmarshalOptional(payload, &d); err != nil {
			return nil, err
		}
		if d == nil {
			return n2s.Date{}, nil
		}
		return n2s.Date{Start: d.Start, End: d.End}, nil
	case "people":
		var users []wireUser
		if err := unmarshalOptional(payload, &users); err != nil {
			return nil, err
		}
		v := n2s.People{Users: make([]n2s.User, len(users))}
		for i, u := range users {
			v.Users[i] = u.toUser()
		}
		return v, nil
	case "relation":
		var refs []struct {
			ID string `json:"id"`
		}
		if err := unmarshalOptional(payload, &refs); err != nil {
			return nil, err
		}
		v := n2s.Relation{IDs: make([]string, 0, len(refs))}
		for _, r := range refs {
			if r.ID != "" {
				v.IDs = append(v.IDs, r.ID)
			}
		}
		return v, nil
	case "formula":
		if isNull(payload) {
			return n2s.Formula{}, nil
		}
		result, err := DecodeValue(payload)
		return n2s.Formula{Result: result}, err
	case "rollup":
		return decodeRollup(payload)
	case "unique_id":
		var u wireUniqueID
		err := unmarshalOptional(payload, &u)
		return n2s.UniqueID{Prefix: u.Prefix, Number: u.Number}, err
	case "url":
		s, err := decodeString(payload)
		return n2s.URL(s), err
	case "email":
		s, err := decodeString(payload)
		return n2s.Email(s), err
	case "phone_number":
		s, err := decodeString(payload)
		return n2s.PhoneNumber(s), err
	case "string":
		s, err := decodeString(payload)
		return n2s.String(s), err
	case "created_by":
		var u wireUser
		err := unmarshalOptional(payload, &u)
		return n2s.CreatedBy(u.toUser()), err
	case "last_edited_by":
		var u wireUser
		err := unmarshalOptional(payload, &u)
		return n2s.LastEditedBy(u.toUser()), err
	case "created_time":
		s, err := decodeString(payload)
		return n2s.CreatedTime(s), err
	case "last_edited_time":
		s, err := decodeString(payload)
		return n2s.LastEditedTime(s), err
	default:
		return n2s.Unsupported{Type: typ}, nil
	}
}

func decodeRollup(payload json.RawMessage) (n2s.PropertyValue, error) {
	var r wireRollup
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, err
	}

	if r.Type != "array" {
		value, err := DecodeValue(payload)
		return n2s.Rollup{Value: value}, err
	}

	// A malformed element decodes to Unsupported and renders empty; its
	// siblings are kept.
	items := make([]n2s.PropertyValue, len(r.Array))
	for i, raw := range r.Array {
		items[i], _ = DecodeValue(raw)
	}
	return n2s.Rollup{Array: items}, nil
}

func decodeRichText(payload json.RawMessage) ([]n2s.RichTextSpan, error) {
	var items []wireRichText
	if err := unmarshalOptional(payload, &items); err != nil {
		return nil, err
	}
	spans := make([]n2s.RichTextSpan, len(items))
	for i, it := range items {
		spans[i] = n2s.RichTextSpan{PlainText: it.PlainText}
		if it.Text != nil {
			spans[i].Content = it.Text.Content
		}
	}
	return spans, nil
}

func decodeOption(payload json.RawMessage) (*n2s.Option, error) {
	var o *wireOption
	if err := unmarshalOptional(payload, &o); err != nil {
		return nil, err
	}
	if o == nil {
		return nil, nil
	}
	return &n2s.Option{Name: o.Name}, nil
}

func decodeString(payload json.RawMessage) (string, error) {
	var s string
	err := unmarshalOptional(payload, &s)
	return s, err
}

// unmarshalOptional treats a missing or null payload as the zero value.
func unmarshalOptional(payload json.RawMessage, v any) error {
	if isNull(payload) {
		return nil
	}
	return json.Unmarshal(payload, v)
}

func isNull(payload json.RawMessage) bool {
	return len(payload) == 0 || string(payload) == "null"
}
