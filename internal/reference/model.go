package reference

// EnumDirectory is one enum catalog file.
type EnumDirectory struct {
	Name string `yaml:"name"`
	// Field is the id of the enum field the catalog supplies values for.
	Field int64 `yaml:"field"`
	// Collection binds the values to an enum collection field.
	Collection bool       `yaml:"collection,omitempty"`
	Items      []EnumItem `yaml:"items"`

	file int
}

type EnumItem struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name,omitempty"`
	// Order sorts items; ties keep file order.
	Order int `yaml:"order,omitempty" json:"order,omitempty"`
}
