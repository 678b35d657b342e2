package option

import "gorm.io/gorm"

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type optionFunc func(*gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

func Limit(n int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Limit(n) })
}

func Offset(n int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Offset(n) })
}

func OrderBy(expr string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Order(expr) })
}

// Where adds a raw condition for filters a zero-value struct query cannot express.
func Where(cond string, args ...any) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Where(cond, args...) })
}
