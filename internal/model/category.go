package model

// Category is immutable reference data describing a video's topical
// classification. The primary key is the external API's category id, not an
// auto-increment value.
type Category struct {
	ID   int    `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"uniqueIndex;size:255;not null"`
}

// TableName returns the table name for Category
func (Category) TableName() string {
	return "categories"
}
