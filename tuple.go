package coredb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// PageID identifies a page within a table: (tableId, pageNumber). Value
// equal, usable as a map key (spec section 3).
type PageID struct {
	TableID    int
	PageNumber int
}

// RecordID identifies a tuple's slot within a page (spec section 3).
type RecordID struct {
	Page PageID
	Slot int
}

// Tuple is a row: fields matching a TupleDesc, plus an optional RecordID
// set once the tuple is read from or placed on a page.
type Tuple struct {
	Desc   TupleDesc
	Fields []Field
	Rid    *RecordID
}

// equals compares two tuples by TupleDesc and per-field equality (spec
// section 3).
func (t *Tuple) equals(other *Tuple) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !t.Desc.equals(&other.Desc) || len(t.Fields) != len(other.Fields) {
		return false
	}
	for i := range t.Fields {
		if !t.Fields[i].EvalPred(other.Fields[i], OpEq) {
			return false
		}
	}
	return true
}

// writeStringField writes a Str field as a 4-byte big-endian length
// followed by StringLength bytes of zero-padded payload (spec section 6).
func writeStringField(b *bytes.Buffer, f StringField) error {
	v := []byte(f.Value)
	if len(v) > StringLength {
		v = v[:StringLength]
	}
	if err := binary.Write(b, binary.BigEndian, int32(len(v))); err != nil {
		return err
	}
	padded := make([]byte, StringLength)
	copy(padded, v)
	return binary.Write(b, binary.BigEndian, padded)
}

// writeIntField writes an Int field as a big-endian 4-byte two's
// complement integer (spec section 6).
func writeIntField(b *bytes.Buffer, f IntField) error {
	return binary.Write(b, binary.BigEndian, int32(f.Value))
}

// writeTo serialises the tuple's fields, in order, into buf.
func (t *Tuple) writeTo(buf *bytes.Buffer) error {
	for _, f := range t.Fields {
		switch v := f.(type) {
		case StringField:
			if err := writeStringField(buf, v); err != nil {
				return err
			}
		case IntField:
			if err := writeIntField(buf, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported field type %T", f)
		}
	}
	return nil
}

func readStringField(buf *bytes.Buffer) (StringField, error) {
	var length int32
	if err := binary.Read(buf, binary.BigEndian, &length); err != nil {
		return StringField{}, err
	}
	payload := make([]byte, StringLength)
	if err := binary.Read(buf, binary.BigEndian, payload); err != nil {
		return StringField{}, err
	}
	if int(length) > len(payload) {
		length = int32(len(payload))
	}
	return StringField{Value: string(payload[:length])}, nil
}

func readIntField(buf *bytes.Buffer) (IntField, error) {
	var v int32
	if err := binary.Read(buf, binary.BigEndian, &v); err != nil {
		return IntField{}, err
	}
	return IntField{Value: int64(v)}, nil
}

// readTupleFrom deserialises a tuple matching desc from buf.
func readTupleFrom(buf *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	fields := make([]Field, 0, len(desc.Fields))
	for _, ft := range desc.Fields {
		switch ft.Ftype {
		case StringType:
			f, err := readStringField(buf)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		default:
			f, err := readIntField(buf)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
	}
	return &Tuple{Desc: *desc, Fields: fields}, nil
}

// joinTuples concatenates t1's fields then t2's, with the merged
// TupleDesc, per spec section 3's Tuple definition and Join's emit step.
func joinTuples(t1, t2 *Tuple) *Tuple {
	if t1 == nil {
		return t2
	}
	if t2 == nil {
		return t1
	}
	fields := make([]Field, 0, len(t1.Fields)+len(t2.Fields))
	fields = append(fields, t1.Fields...)
	fields = append(fields, t2.Fields...)
	return &Tuple{
		Desc:   *t1.Desc.merge(&t2.Desc),
		Fields: fields,
	}
}

// project returns a new tuple containing only the named fields, resolved
// through findFieldInTd: a TableQualifier match is preferred when the
// requested field specifies one, and an unqualified name matching more
// than one field is an error.
func (t *Tuple) project(fields []FieldType) (*Tuple, error) {
	out := &Tuple{Desc: TupleDesc{}, Fields: make([]Field, 0, len(fields))}
	for _, want := range fields {
		idx, err := findFieldInTd(want, &t.Desc)
		if err != nil {
			return nil, err
		}
		out.Fields = append(out.Fields, t.Fields[idx])
		out.Desc.Fields = append(out.Desc.Fields, t.Desc.Fields[idx])
	}
	return out, nil
}

type orderByState int

const (
	OrderedLessThan orderByState = iota
	OrderedEqual
	OrderedGreaterThan
)

func compareFields(v1, v2 Field) (orderByState, error) {
	switch val1 := v1.(type) {
	case IntField:
		val2, ok := v2.(IntField)
		if !ok {
			return OrderedEqual, fmt.Errorf("cannot compare %T with %T", v1, v2)
		}
		switch {
		case val1.Value < val2.Value:
			return OrderedLessThan, nil
		case val1.Value > val2.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	case StringField:
		val2, ok := v2.(StringField)
		if !ok {
			return OrderedEqual, fmt.Errorf("cannot compare %T with %T", v1, v2)
		}
		switch {
		case val1.Value < val2.Value:
			return OrderedLessThan, nil
		case val1.Value > val2.Value:
			return OrderedGreaterThan, nil
		default:
			return OrderedEqual, nil
		}
	}
	return OrderedEqual, fmt.Errorf("unsupported field comparison for %T", v1)
}

// compareField evaluates expr on t and t2 and orders the results.
func (t *Tuple) compareField(t2 *Tuple, expr Expr) (orderByState, error) {
	v1, err := expr.EvalExpr(t)
	if err != nil {
		return OrderedEqual, err
	}
	v2, err := expr.EvalExpr(t2)
	if err != nil {
		return OrderedEqual, err
	}
	return compareFields(v1, v2)
}

// tupleKey returns the tab-separated string form of the tuple. Two equal
// tuples produce the same key, which is used both as a Go map key and as
// the basis of the tuple's hash (spec section 3).
func (t *Tuple) tupleKey() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		switch v := f.(type) {
		case IntField:
			parts[i] = strconv.FormatInt(v.Value, 10)
		case StringField:
			parts[i] = v.Value
		}
	}
	return strings.Join(parts, "\t")
}

var winWidth = 120

func fmtCol(v string, ncols int) string {
	colWid := winWidth / ncols
	nextLen := len(v) + 3
	remLen := colWid - nextLen
	if remLen > 0 {
		left := remLen - remLen/2
		return strings.Repeat(" ", left) + v + strings.Repeat(" ", remLen-left) + " |"
	}
	if colWid-4 < 0 || colWid-4 > len(v) {
		return " " + v + " |"
	}
	return " " + v[0:colWid-4] + " |"
}

// HeaderString renders a table header for this TupleDesc, aligned or CSV.
func (d *TupleDesc) HeaderString(aligned bool) string {
	out := ""
	for i, f := range d.Fields {
		name := f.Fname
		if f.TableQualifier != "" {
			name = f.TableQualifier + "." + name
		}
		if aligned {
			out = fmt.Sprintf("%s %s", out, fmtCol(name, len(d.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			out = fmt.Sprintf("%s%s%s", out, sep, name)
		}
	}
	return out
}

// PrettyPrintString renders the tuple's values, aligned or CSV.
func (t *Tuple) PrettyPrintString(aligned bool) string {
	out := ""
	for i, f := range t.Fields {
		str := ""
		switch v := f.(type) {
		case IntField:
			str = strconv.FormatInt(v.Value, 10)
		case StringField:
			str = v.Value
		}
		if aligned {
			out = fmt.Sprintf("%s %s", out, fmtCol(str, len(t.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			out = fmt.Sprintf("%s%s%s", out, sep, str)
		}
	}
	return out
}
