package models

// StatusRecord mirrors one status catalogue entry into the database for
// reporting joins. Seeded at migration time; the in-code catalogue is
// authoritative.
type StatusRecord struct {
	Code     string `gorm:"primaryKey;size:32"`
	Label    string `gorm:"size:64;not null"`
	Category string `gorm:"size:16;not null"`
	Ordinal  int
}
