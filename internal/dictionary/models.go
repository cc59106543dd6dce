package dictionary

// Table names derive from the struct names through the naming strategy,
// so the configured prefix applies to every model.

type RefFieldType struct {
	ID   int    `gorm:"primaryKey;autoIncrement:false"`
	Name string `gorm:"size:64;not null"`
}

type RefField struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false"`
	Name        string `gorm:"size:255;not null;index"`
	Description string `gorm:"size:1024"`
	TypeID      int    `gorm:"not null"`
}

type RefEntity struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false"`
	Name        string `gorm:"size:255;not null;index"`
	Version     int    `gorm:"not null"`
	Description string `gorm:"size:1024"`
}

type RefEnum struct {
	FieldID int64  `gorm:"primaryKey;autoIncrement:false"`
	Seq     int    `gorm:"primaryKey;autoIncrement:false"`
	Value   string `gorm:"size:255;not null"`
}

type RefEntityField struct {
	EntityID int64 `gorm:"primaryKey;autoIncrement:false"`
	FieldID  int64 `gorm:"primaryKey;autoIncrement:false"`
}

type RefEntityEnum struct {
	EntityID int64 `gorm:"primaryKey;autoIncrement:false"`
	FieldID  int64 `gorm:"primaryKey;autoIncrement:false"`
}

type RefEntityInheritance struct {
	ParentID int64 `gorm:"primaryKey;autoIncrement:false"`
	ChildID  int64 `gorm:"primaryKey;autoIncrement:false"`
}

func models() []any {
	return []any{
		&RefFieldType{},
		&RefField{},
		&RefEntity{},
		&RefEnum{},
		&RefEntityField{},
		&RefEntityEnum{},
		&RefEntityInheritance{},
	}
}
