package entity

// Kind is the canonical type of a field
type Kind int

const (
	KindString Kind = iota // short text with length bounds
	KindText               // free text, only warned when unusually long
	KindEnum
	KindDate
	KindInteger
	KindRef // external_ref idempotency key
)

// Field describes one canonical field of an entity
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	MinLen   int      // KindString
	MaxLen   int      // KindString
	WarnLen  int      // KindText
	Enum     *EnumSet // KindEnum
	Min      int      // KindInteger
	Default  any      // applied by the transformer when the field is absent
}

// Length limits
const (
	TitleMinLen    = 3
	TitleMaxLen    = 200
	ShortTextMax   = 500
	LongTextWarnAt = 5000
)

// ExternalRefField is the canonical name of the idempotency key
const ExternalRefField = "external_ref"

func title() Field {
	return Field{Name: "title", Kind: KindString, Required: true, MinLen: TitleMinLen, MaxLen: TitleMaxLen}
}

func shortText(name string, required bool) Field {
	return Field{Name: name, Kind: KindString, Required: required, MaxLen: ShortTextMax}
}

func longText(name string) Field {
	return Field{Name: name, Kind: KindText, WarnLen: LongTextWarnAt}
}

func externalRef() Field {
	return Field{Name: ExternalRefField, Kind: KindRef}
}

// schemas are declared in check order; validators report reasons in this order
var schemas = map[Type][]Field{
	Incident: {
		title(),
		longText("description"),
		{Name: "severity", Kind: KindEnum, Required: true, Enum: &Severity},
		{Name: "status", Kind: KindEnum, Enum: &Status, Default: "open"},
		{Name: "occurred_at", Kind: KindDate, Required: true},
		shortText("location", false),
		shortText("reported_by", false),
		longText("root_cause"),
		externalRef(),
	},
	Complaint: {
		title(),
		longText("description"),
		{Name: "category", Kind: KindEnum, Required: true, Enum: &ComplaintCategory},
		{Name: "channel", Kind: KindEnum, Enum: &Channel},
		{Name: "severity", Kind: KindEnum, Enum: &Severity, Default: "medium"},
		{Name: "status", Kind: KindEnum, Enum: &Status, Default: "open"},
		{Name: "received_at", Kind: KindDate, Required: true},
		shortText("complainant_name", false),
		externalRef(),
	},
	Collision: {
		title(),
		longText("description"),
		{Name: "occurred_at", Kind: KindDate, Required: true},
		shortText("location", true),
		{Name: "vehicles_involved", Kind: KindInteger, Required: true, Min: 1},
		{Name: "injuries", Kind: KindInteger, Min: 0, Default: 0},
		{Name: "fatalities", Kind: KindInteger, Min: 0, Default: 0},
		{Name: "severity", Kind: KindEnum, Required: true, Enum: &Severity},
		{Name: "status", Kind: KindEnum, Enum: &Status, Default: "open"},
		externalRef(),
	},
}

// Schema returns the canonical fields of an importable type, in check order.
// Governance-only types have no import schema.
func Schema(t Type) []Field {
	return schemas[t]
}

// FieldNames returns the canonical field names of a type
func FieldNames(t Type) []string {
	fields := Schema(t)
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}
