package models

import "github.com/google/uuid"

// assignID fills a missing primary key before insert so every dialect behaves the same.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every model served through the table API, keyed by table name.
func All() map[string]any {
	return map[string]any{
		TableFamilies:      &Family{},
		TableMembers:       &Member{},
		TableJoinRequests:  &JoinRequest{},
		TableTasks:         &Task{},
		TableBills:         &Bill{},
		TableTransactions:  &Transaction{},
		TableShoppingItems: &ShoppingItem{},
		TablePantryItems:   &PantryItem{},
	}
}

const (
	TableFamilies      = "families"
	TableMembers       = "members"
	TableJoinRequests  = "join_requests"
	TableTasks         = "tasks"
	TableBills         = "bills"
	TableTransactions  = "transactions"
	TableShoppingItems = "shopping_items"
	TablePantryItems   = "pantry_items"
)
