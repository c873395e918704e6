package inventory

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ItemForm holds the raw values of the add/edit modal. Token identifies one
// create submission so that a repeated post is not stored twice.
type ItemForm struct {
	Name        string
	Price       string
	Description string
	Token       string
}

// Fields converts the form into normalized item fields.
func (f ItemForm) Fields() ItemFields {
	return ItemFields{Name: f.Name, Description: f.Description, Price: f.Price}.Normalize()
}

// FormFromItem pre-fills the modal for editing.
func FormFromItem(item Item) ItemForm {
	return ItemForm{Name: item.Name, Price: item.Price, Description: item.Description}
}

// FilterByName keeps the items whose name contains search, ignoring case.
// An empty search keeps everything.
func FilterByName(items []Item, search string) []Item {
	lower := cases.Lower(language.Und)
	needle := lower.String(search)
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if strings.Contains(lower.String(item.Name), needle) {
			out = append(out, item)
		}
	}
	return out
}
