package syntax

// Kind tags a node with its grammatical role. The set is closed: every
// grammar node maps to exactly one Kind, with Other for anything the analysis
// does not care about.
type Kind uint8

const (
	Other Kind = iota
	Interface
	InterfaceDeclaration
	InterfaceName
	Keyword
	Name
	Typedef
	Error
	Method
	Arrow
	Struct
	StructField
	Enum
	Typeref
	Optional
	Array
	Dict
	Bool
	Int
	Float
	String
	Object
	Comment
	Eol
	SyntaxError
)

var kindNames = [...]string{
	Other:                "other",
	Interface:            "interface",
	InterfaceDeclaration: "interface_declaration",
	InterfaceName:        "interface_name",
	Keyword:              "keyword",
	Name:                 "name",
	Typedef:              "typedef",
	Error:                "error",
	Method:               "method",
	Arrow:                "arrow",
	Struct:               "struct",
	StructField:          "struct_field",
	Enum:                 "enum",
	Typeref:              "typeref",
	Optional:             "optional",
	Array:                "array",
	Dict:                 "dict",
	Bool:                 "bool",
	Int:                  "int",
	Float:                "float",
	String:               "string",
	Object:               "object",
	Comment:              "comment",
	Eol:                  "eol",
	SyntaxError:          "ERROR",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// KindFromString returns the Kind whose String form is s.
func KindFromString(s string) (Kind, bool) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), true
		}
	}
	return Other, false
}

// IsDeclaration reports whether nodes of this kind introduce a top-level name.
func (k Kind) IsDeclaration() bool {
	switch k {
	case Typedef, Error, Method, InterfaceDeclaration:
		return true
	}
	return false
}

// IsBuiltinType reports whether k is one of the primitive varlink types.
func (k Kind) IsBuiltinType() bool {
	switch k {
	case Bool, Int, Float, String, Object:
		return true
	}
	return false
}
