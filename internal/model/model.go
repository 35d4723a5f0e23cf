package model

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&Listing{},
		&ListingImage{},
		&Favorite{},
		&Chat{},
		&Message{},
		&Notification{},
	}
}
