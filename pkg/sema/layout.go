package sema

import (
	"github.com/raymyers/ralph-mig/pkg/ipctypes"
)

// FieldKind classifies a message field.
type FieldKind int

const (
	FieldData FieldKind = iota
	FieldDescriptor
	FieldCount
	FieldRetCode
)

func (k FieldKind) String() string {
	switch k {
	case FieldDescriptor:
		return "descriptor"
	case FieldCount:
		return "count"
	case FieldRetCode:
		return "retcode"
	}
	return "data"
}

func (k FieldKind) MarshalYAML() (interface{}, error) { return k.String(), nil }

// MessageField is one field of a request or reply body, in wire order.
type MessageField struct {
	Name             string           `yaml:"name"`
	Kind             FieldKind        `yaml:"kind"`
	Type             string           `yaml:"type"` // C spelling; element type for arrays
	MsgType          ipctypes.MsgType `yaml:"msg_type"`
	IsArray          bool             `yaml:"is_array,omitempty"`
	IsTypeDescriptor bool             `yaml:"is_type_descriptor,omitempty"`
	IsCountField     bool             `yaml:"is_count_field,omitempty"`
	// CountByPointer marks the count of an outbound array: callers pass
	// the count by address.
	CountByPointer bool   `yaml:"count_by_pointer,omitempty"`
	MaxElements    uint32 `yaml:"max_elements,omitempty"`
	IsPolymorphic  bool   `yaml:"is_polymorphic,omitempty"`
	LongForm       bool   `yaml:"long_form,omitempty"`
	Inline         bool   `yaml:"inline"`
	Deallocate     bool   `yaml:"deallocate,omitempty"`
	// Arg is the routine argument the field was derived from.
	Arg string `yaml:"arg,omitempty"`
	// Size is the number of inline body bytes the field contributes.
	Size     uint32                 `yaml:"size"`
	Resolved *ipctypes.ResolvedType `yaml:"-"`
}

// MessageLayout is the field list of one request or reply body.
type MessageLayout struct {
	Fields    []MessageField `yaml:"fields"`
	FixedSize uint32         `yaml:"fixed_size"`
}

// Field returns the field called name.
func (l *MessageLayout) Field(name string) (MessageField, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return MessageField{}, false
}

// DescriptorFor returns the descriptor field immediately preceding the
// data field at index i, if there is one.
func (l *MessageLayout) DescriptorFor(i int) (MessageField, bool) {
	if i > 0 && l.Fields[i-1].IsTypeDescriptor && l.Fields[i-1].Arg == l.Fields[i].Arg {
		return l.Fields[i-1], true
	}
	return MessageField{}, false
}

// CountFor returns the count field paired with the data field at index i.
func (l *MessageLayout) CountFor(i int) (MessageField, bool) {
	if i+1 < len(l.Fields) && l.Fields[i+1].IsCountField && l.Fields[i+1].Arg == l.Fields[i].Arg {
		return l.Fields[i+1], true
	}
	return MessageField{}, false
}

type layoutBuilder struct {
	layout MessageLayout
}

func (b *layoutBuilder) add(f MessageField) {
	b.layout.Fields = append(b.layout.Fields, f)
}

// retCode starts a reply body.
func (b *layoutBuilder) retCode(kr *ipctypes.ResolvedType) {
	b.add(MessageField{
		Name:     "RetCode",
		Kind:     FieldRetCode,
		Type:     kr.CType,
		MsgType:  kr.MsgType,
		Inline:   true,
		Size:     ipctypes.Pad4(kr.ElemBytes()),
		Resolved: kr,
	})
}

// needsDescriptor applies the per-type descriptor policy. Arrays, strings
// and structs are always described; scalars follow the type's policy.
func needsDescriptor(rt *ipctypes.ResolvedType) bool {
	return rt.IsArray || rt.IsString || rt.IsStruct || rt.Descriptor
}

// arg appends the fields for one body argument: an optional descriptor,
// the data, and for arrays a trailing count.
func (b *layoutBuilder) arg(p Param, outbound bool) {
	rt := p.Type
	long := p.LongForm()
	if needsDescriptor(rt) {
		size := uint32(ipctypes.ShortDescriptorLen)
		if long {
			size = ipctypes.LongDescriptorLen
		}
		b.add(MessageField{
			Name:             p.Name + "Type",
			Kind:             FieldDescriptor,
			Type:             "mach_msg_type_t",
			MsgType:          rt.MsgType,
			IsArray:          rt.IsArray,
			IsTypeDescriptor: true,
			MaxElements:      rt.MaxElements,
			IsPolymorphic:    rt.IsPolymorphic,
			LongForm:         long,
			Inline:           !rt.OutOfLine,
			Deallocate:       p.Deallocates(),
			Arg:              p.Name,
			Size:             size,
			Resolved:         rt,
		})
	}
	b.add(MessageField{
		Name:          p.Name,
		Kind:          FieldData,
		Type:          rt.CType,
		MsgType:       rt.MsgType,
		IsArray:       rt.IsArray,
		MaxElements:   rt.MaxElements,
		IsPolymorphic: rt.IsPolymorphic,
		Inline:        !rt.OutOfLine,
		Arg:           p.Name,
		Size:          ipctypes.Pad4(rt.InlineBytes()),
		Resolved:      rt,
	})
	if rt.IsArray {
		b.add(MessageField{
			Name:           p.Name + "Cnt",
			Kind:           FieldCount,
			Type:           "mach_msg_type_number_t",
			MsgType:        ipctypes.TypeInteger32,
			IsCountField:   true,
			CountByPointer: outbound,
			Inline:         true,
			Arg:            p.Name,
			Size:           ipctypes.CountLen,
		})
	}
}

func (b *layoutBuilder) finish() MessageLayout {
	b.layout.FixedSize = ipctypes.HeaderSize
	for _, f := range b.layout.Fields {
		b.layout.FixedSize += f.Size
	}
	return b.layout
}
