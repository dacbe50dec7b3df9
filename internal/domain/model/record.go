// File: internal/domain/model/record.go
package model

// StatusOption is one valid value for a document's status field, sourced
// fresh from the database schema at notification time.
type StatusOption struct {
	Name string
}

// PageRecord is the flat extraction of a page's property bag, built once per
// notification and discarded after rendering.
type PageRecord struct {
	ID             string
	Title          string
	Description    string
	Status         string
	Deadline       string
	Executor       string
	AssignedBy     string
	TelegramUsers  []string
	Tags           []string
	Files          []string
	Project        string
	Hierarchy      []string // container chain, outermost first
	URL            string
	CreatedTime    string
	LastEditedTime string
}
