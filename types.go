package coredb

import "strings"

// This file defines the typed field values and row schema: DBType,
// FieldType, TupleDesc, the Field (DBValue) variants, and the comparison
// operators they support. Mirrors the teacher's tuple.go split between
// schema types and tuple/field types, but schema-only concerns live here.

// PageSize is the fixed on-disk page size (spec section 6).
const PageSize = 4096

// DefaultPages is BufferPool's default capacity (spec section 6).
const DefaultPages = 50

// StringLength is the fixed declared width, in bytes, of a Str payload
// before length-prefixing (spec section 3: "fixed-width bytes, length <=
// 128").
const StringLength = 128

// DBType is the type of a tuple field.
type DBType int

const (
	IntType DBType = iota
	StringType
	UnknownType // used during parsing when a field's type isn't yet known
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// width returns the serialised byte width of a field of this type,
// per spec section 6: Int is 4 bytes, Str is a 4-byte length prefix plus
// StringLength bytes of payload.
func (t DBType) width() int {
	switch t {
	case IntType:
		return 4
	case StringType:
		return 4 + StringLength
	}
	return 0
}

// FieldType names one column of a TupleDesc: its type, its field name, and
// an optional table qualifier (advisory, used for display and for
// SeqScan's alias.field prefixing).
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
}

// TupleDesc is the schema of a row: an ordered, non-empty sequence of
// (type, optional name) pairs.
type TupleDesc struct {
	Fields []FieldType
}

// NewTupleDesc builds a TupleDesc from parallel type/name slices.
func NewTupleDesc(types []DBType, names []string) *TupleDesc {
	fields := make([]FieldType, len(types))
	for i, t := range types {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		fields[i] = FieldType{Fname: name, Ftype: t}
	}
	return &TupleDesc{Fields: fields}
}

// equals compares two TupleDescs by type sequence only; names are
// advisory per spec section 3.
func (d *TupleDesc) equals(other *TupleDesc) bool {
	if len(d.Fields) != len(other.Fields) {
		return false
	}
	for i := range d.Fields {
		if d.Fields[i].Ftype != other.Fields[i].Ftype {
			return false
		}
	}
	return true
}

// merge concatenates two TupleDescs (spec section 3: merge(a,b) = a ++ b).
func (d *TupleDesc) merge(other *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(d.Fields)+len(other.Fields))
	fields = append(fields, d.Fields...)
	fields = append(fields, other.Fields...)
	return &TupleDesc{Fields: fields}
}

// copy makes a shallow copy of the field slice (assigning a TupleDesc's
// Fields slice to another variable does not copy the backing array).
func (d *TupleDesc) copy() *TupleDesc {
	fields := make([]FieldType, len(d.Fields))
	copy(fields, d.Fields)
	return &TupleDesc{Fields: fields}
}

// setTableAlias assigns the TableQualifier of every field to alias.
func (d *TupleDesc) setTableAlias(alias string) *TupleDesc {
	out := d.copy()
	for i := range out.Fields {
		out.Fields[i].TableQualifier = alias
	}
	return out
}

// byteSize is the sum of the serialised widths of the TupleDesc's fields.
func (d *TupleDesc) byteSize() int {
	size := 0
	for _, f := range d.Fields {
		size += f.Ftype.width()
	}
	return size
}

// findFieldInTd finds the best matching field in desc for the supplied
// (possibly partially-qualified) FieldType: prefers a TableQualifier
// match, and rejects an unqualified name that matches more than one field.
func findFieldInTd(field FieldType, desc *TupleDesc) (int, error) {
	best := -1
	for i, f := range desc.Fields {
		if f.Fname != field.Fname {
			continue
		}
		if field.Ftype != UnknownType && f.Ftype != field.Ftype {
			continue
		}
		if field.TableQualifier == "" && best != -1 {
			return 0, NewGoDBError(AmbiguousNameError, "field "+f.Fname+" is ambiguous")
		}
		if f.TableQualifier == field.TableQualifier || best == -1 {
			best = i
		}
	}
	if best != -1 {
		return best, nil
	}
	return -1, NewGoDBError(IncompatibleTypesError, "field "+field.TableQualifier+"."+field.Fname+" not found")
}

// BoolOp is a comparison operator over Field values (spec section 3: the
// six comparisons plus LIKE for strings).
type BoolOp int

const (
	OpEq BoolOp = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpLike
)

// Field is the tagged variant of spec section 3: Int or Str. DBValue is
// the teacher's name for this interface; kept as an alias so code reading
// like the teacher's (`DBValue`) and code reading like the spec's
// (`Field`) both compile.
type Field interface {
	EvalPred(other Field, op BoolOp) bool
}

type DBValue = Field

// IntField is an Int(i32)-tagged field value. Stored as int64 internally
// (matching the teacher), serialised to the 4-byte width spec section 6
// requires.
type IntField struct {
	Value int64
}

func (f IntField) EvalPred(other Field, op BoolOp) bool {
	o, ok := other.(IntField)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return f.Value == o.Value
	case OpNeq:
		return f.Value != o.Value
	case OpLt:
		return f.Value < o.Value
	case OpLte:
		return f.Value <= o.Value
	case OpGt:
		return f.Value > o.Value
	case OpGte:
		return f.Value >= o.Value
	case OpLike:
		return false
	}
	return false
}

// StringField is a Str-tagged field value, at most StringLength bytes.
type StringField struct {
	Value string
}

func (f StringField) EvalPred(other Field, op BoolOp) bool {
	o, ok := other.(StringField)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return f.Value == o.Value
	case OpNeq:
		return f.Value != o.Value
	case OpLt:
		return f.Value < o.Value
	case OpLte:
		return f.Value <= o.Value
	case OpGt:
		return f.Value > o.Value
	case OpGte:
		return f.Value >= o.Value
	case OpLike:
		return strings.Contains(f.Value, o.Value)
	}
	return false
}
