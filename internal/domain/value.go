package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind string

const (
	ValueNumber      ValueKind = "number"
	ValueString      ValueKind = "string"
	ValueChar        ValueKind = "char"
	ValueBool        ValueKind = "bool"
	ValueUnit        ValueKind = "unit"
	ValueTuple       ValueKind = "tuple"
	ValueList        ValueKind = "list"
	ValueRecord      ValueKind = "record"
	ValueConstructor ValueKind = "constructor"
	ValueOpaque      ValueKind = "opaque"
)

// Field is one record entry.
type Field struct {
	Name  string
	Value Value
}

// Value is a parsed Elm value.
type Value struct {
	Kind   ValueKind
	Number float64
	Text   string
	Bool   bool
	// Items holds tuple members, list elements or constructor arguments.
	Items  []Value
	Fields []Field
	// Name is the constructor name (possibly module-qualified) or the
	// opaque tag such as "function" or "internals".
	Name string
}

// String renders the value back in Elm syntax.
func (v Value) String() string {
	var b strings.Builder
	v.write(&b, false)
	return b.String()
}

func (v Value) write(b *strings.Builder, nested bool) {
	switch v.Kind {
	case ValueNumber:
		if text, ok := nonFinite(v.Number); ok {
			b.WriteString(text)
			break
		}
		b.WriteString(strconv.FormatFloat(v.Number, 'g', -1, 64))
	case ValueString:
		b.WriteString(strconv.Quote(v.Text))
	case ValueChar:
		b.WriteString("'" + v.Text + "'")
	case ValueBool:
		if v.Bool {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case ValueUnit:
		b.WriteString("()")
	case ValueTuple:
		b.WriteString("(")
		for i, item := range v.Items {
			if i > 0 {
				b.WriteString(",")
			}
			item.write(b, false)
		}
		b.WriteString(")")
	case ValueList:
		b.WriteString("[")
		for i, item := range v.Items {
			if i > 0 {
				b.WriteString(",")
			}
			item.write(b, false)
		}
		b.WriteString("]")
	case ValueRecord:
		b.WriteString("{ ")
		for i, f := range v.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Name + " = ")
			f.Value.write(b, false)
		}
		b.WriteString(" }")
	case ValueConstructor:
		if nested && len(v.Items) > 0 {
			b.WriteString("(")
		}
		b.WriteString(v.Name)
		for _, item := range v.Items {
			b.WriteString(" ")
			item.write(b, true)
		}
		if nested && len(v.Items) > 0 {
			b.WriteString(")")
		}
	case ValueOpaque:
		b.WriteString("<" + v.Name + ">")
	}
}

// MarshalJSON encodes the value as plain JSON where possible.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.plain())
}

func (v Value) plain() interface{} {
	switch v.Kind {
	case ValueNumber:
		if text, ok := nonFinite(v.Number); ok {
			return text
		}
		return v.Number
	case ValueString, ValueChar:
		return v.Text
	case ValueBool:
		return v.Bool
	case ValueUnit:
		return nil
	case ValueTuple, ValueList:
		items := make([]interface{}, 0, len(v.Items))
		for _, item := range v.Items {
			items = append(items, item.plain())
		}
		return items
	case ValueRecord:
		fields := make(map[string]interface{}, len(v.Fields))
		for _, f := range v.Fields {
			fields[f.Name] = f.Value.plain()
		}
		return fields
	case ValueConstructor:
		if len(v.Items) == 0 {
			return v.Name
		}
		args := make([]interface{}, 0, len(v.Items))
		for _, item := range v.Items {
			args = append(args, item.plain())
		}
		return map[string]interface{}{"constructor": v.Name, "args": args}
	default:
		return "<" + v.Name + ">"
	}
}

// nonFinite spells infinities and NaN the way Elm prints them. JSON has no
// encoding for them, so they are emitted as strings there too.
func nonFinite(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return "NaN", true
	case math.IsInf(f, 1):
		return "Infinity", true
	case math.IsInf(f, -1):
		return "-Infinity", true
	}
	return "", false
}
