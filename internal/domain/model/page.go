// File: internal/domain/model/page.go
package model

import (
	"strings"
	"time"
)

// RichText is one fragment of Notion rich text. Only the plain rendering is
// relevant to the relay.
type RichText struct {
	PlainText string `json:"plain_text"`
	Href      string `json:"href,omitempty"`
}

// Option is a select/multi_select/status value.
type Option struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type DateValue struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

type Person struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type FileRef struct {
	Name string `json:"name"`
}

type RelationRef struct {
	ID string `json:"id"`
}

// Parent identifies the container an object is nested under.
type Parent struct {
	Type       string `json:"type"`
	DatabaseID string `json:"database_id,omitempty"`
	PageID     string `json:"page_id,omitempty"`
	Workspace  bool   `json:"workspace,omitempty"`
}

// Property is one typed value from a page's property bag. The Type field
// discriminates which of the value fields is populated.
type Property struct {
	ID          string        `json:"id,omitempty"`
	Type        string        `json:"type"`
	Title       []RichText    `json:"title,omitempty"`
	RichText    []RichText    `json:"rich_text,omitempty"`
	Status      *Option       `json:"status,omitempty"`
	Select      *Option       `json:"select,omitempty"`
	MultiSelect []Option      `json:"multi_select,omitempty"`
	Date        *DateValue    `json:"date,omitempty"`
	People      []Person      `json:"people,omitempty"`
	Relation    []RelationRef `json:"relation,omitempty"`
	Files       []FileRef     `json:"files,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// Page is a Notion page with its property bag.
type Page struct {
	ID             string              `json:"id"`
	URL            string              `json:"url"`
	CreatedTime    time.Time           `json:"created_time"`
	LastEditedTime time.Time           `json:"last_edited_time"`
	Parent         Parent              `json:"parent"`
	Properties     map[string]Property `json:"properties"`
}

// Title returns the page's title from whichever property is title-typed.
func (p *Page) Title() string {
	for _, prop := range p.Properties {
		if prop.Type == "title" {
			return JoinRichText(prop.Title)
		}
	}
	return ""
}

// JoinRichText concatenates the plain text of all fragments.
func JoinRichText(rt []RichText) string {
	if len(rt) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range rt {
		b.WriteString(r.PlainText)
	}
	return b.String()
}

// PropertySchema describes one property in a database schema.
type PropertySchema struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type"`
	Status *struct {
		Options []Option `json:"options"`
	} `json:"status,omitempty"`
	Select *struct {
		Options []Option `json:"options"`
	} `json:"select,omitempty"`
}

// Database is a Notion database: a container of pages sharing a schema.
type Database struct {
	ID         string                    `json:"id"`
	Title      []RichText                `json:"title"`
	Parent     Parent                    `json:"parent"`
	Properties map[string]PropertySchema `json:"properties"`
}

func (d *Database) Name() string { return JoinRichText(d.Title) }

// StatusProperty finds the schema property holding task status. The property
// named "Status" wins; otherwise the first status-typed property is used.
func (d *Database) StatusProperty() (name string, schema PropertySchema, ok bool) {
	if s, found := d.Properties["Status"]; found && (s.Type == "status" || s.Type == "select") {
		return "Status", s, true
	}
	for n, s := range d.Properties {
		if s.Type == "status" {
			return n, s, true
		}
	}
	return "", PropertySchema{}, false
}

// StatusOptions returns the valid status names for pages of this database,
// in schema order.
func (d *Database) StatusOptions() []StatusOption {
	_, schema, ok := d.StatusProperty()
	if !ok {
		return nil
	}
	var opts []Option
	switch {
	case schema.Status != nil:
		opts = schema.Status.Options
	case schema.Select != nil:
		opts = schema.Select.Options
	}
	out := make([]StatusOption, 0, len(opts))
	for _, o := range opts {
		out = append(out, StatusOption{Name: o.Name})
	}
	return out
}
