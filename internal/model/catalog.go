package model

// Category is a card category lookup row (e.g. a game or expansion).
type Category struct {
	ID   uint64 // categories.id
	Name string // categories.name
}

// Language is a card language lookup row.
type Language struct {
	ID   uint64 // languages.id
	Code string // languages.code (e.g. "EN")
	Name string // languages.name
}
