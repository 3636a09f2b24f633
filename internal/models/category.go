package models

import "github.com/google/uuid"

type Category struct {
	ID     uuid.UUID  `db:"id"`
	UserID *uuid.UUID `db:"user_id"`
	Name   string     `db:"name"`
	Icon   string     `db:"icon"`
	Color  string     `db:"color"`
}

// DefaultCategories is the global vocabulary the extraction prompt asks the
// model to choose from.
var DefaultCategories = []Category{
	{Name: "Groceries", Icon: "shopping-cart", Color: "#4CAF50"},
	{Name: "Dining", Icon: "utensils", Color: "#FF9800"},
	{Name: "Transport", Icon: "car", Color: "#2196F3"},
	{Name: "Shopping", Icon: "shopping-bag", Color: "#E91E63"},
	{Name: "Bills & Utilities", Icon: "file-invoice", Color: "#9C27B0"},
	{Name: "Entertainment", Icon: "film", Color: "#00BCD4"},
	{Name: "Health", Icon: "heartbeat", Color: "#F44336"},
	{Name: "Travel", Icon: "plane", Color: "#3F51B5"},
	{Name: "Education", Icon: "graduation-cap", Color: "#795548"},
	{Name: "Income", Icon: "money-bill", Color: "#8BC34A"},
	{Name: "Transfer", Icon: "exchange-alt", Color: "#607D8B"},
	{Name: "Other", Icon: "ellipsis-h", Color: "#9E9E9E"},
}
