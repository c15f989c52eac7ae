package metadata

import (
	"fmt"
	"strings"

	"github.com/microsoft/go-winmd"
	"github.com/microsoft/go-winmd/flags"

	"stexport/internal/errors"
)

// signatureReader decodes type signature blobs (ECMA-335 II.23.2). go-winmd
// rejects SZARRAY, GENERICINST, VAR, MVAR and FNPTR, which every generic or
// array-typed member of a .NET assembly uses, so blobs it cannot decode are
// read here.
type signatureReader struct {
	reader *WinMdReader
	owner  *Type
	data   []byte
	err    error
}

func (reader *WinMdReader) newSignatureReader(owner *Type, data []byte) *signatureReader {
	return &signatureReader{reader: reader, owner: owner, data: data}
}

func (r *signatureReader) fail(format string, args ...interface{}) {
	if r.err == nil {
		r.err = errors.Malformed(format, args...)
	}
}

func (r *signatureReader) byte() byte {
	if r.err != nil {
		return 0
	}
	if len(r.data) == 0 {
		r.fail("signature ends unexpectedly")
		return 0
	}
	b := r.data[0]
	r.data = r.data[1:]
	return b
}

// compressed reads a compressed unsigned integer, II.23.2.
func (r *signatureReader) compressed() uint32 {
	b0 := uint32(r.byte())
	switch {
	case b0&0x80 == 0:
		return b0
	case b0&0xC0 == 0x80:
		return (b0&0x3F)<<8 | uint32(r.byte())
	case b0&0xE0 == 0xC0:
		b1, b2, b3 := uint32(r.byte()), uint32(r.byte()), uint32(r.byte())
		return (b0&0x1F)<<24 | b1<<16 | b2<<8 | b3
	}
	r.fail("invalid compressed integer prefix %#x", b0)
	return 0
}

// typeHandle reads a TypeDefOrRefOrSpecEncoded value, II.23.2.8, as a
// zero-based coded index.
func (r *signatureReader) typeHandle() winmd.CodedIndex {
	value := r.compressed()
	if r.err != nil {
		return winmd.CodedIndex{}
	}
	tag, row := value&0x3, value>>2
	if row == 0 || tag > tagTypeSpec {
		r.fail("invalid type handle %#x", value)
		return winmd.CodedIndex{}
	}
	return winmd.CodedIndex{Index: winmd.Index(row - 1), Tag: int8(tag)}
}

// fieldType reads a FieldSig, II.23.2.4.
func (r *signatureReader) fieldType() *Type {
	if kind := r.byte(); r.err == nil && flags.SigKind(kind&0x0F) != flags.SigKind_FIELD {
		r.fail("signature kind %#x is not a field signature", kind)
	}
	return r.readType()
}

// methodTypes reads a MethodDefSig or MethodRefSig, II.23.2.1, and returns
// its return and parameter types.
func (r *signatureReader) methodTypes() (*Type, []*Type) {
	header := r.byte()
	if flags.SigAttributes(header)&flags.SigAttributes_GENERIC != 0 {
		r.compressed()
	}
	count := r.compressed()
	returnType := r.readType()

	var parameters []*Type
	for i := uint32(0); i < count && r.err == nil; i++ {
		if len(r.data) > 0 && flags.ElementType(r.data[0]) == flags.ElementType_SENTINEL {
			r.byte()
		}
		parameters = append(parameters, r.readType())
	}
	return returnType, parameters
}

// readType reads a Type, II.23.2.12, with its leading custom modifiers.
func (r *signatureReader) readType() *Type {
	kind := flags.ElementType(r.byte())
	if r.err != nil {
		return nil
	}
	if name, found := builtInElementTypes[kind]; found {
		return r.reader.externalType(systemNamespace, name)
	}

	switch kind {
	case flags.ElementType_CMOD_OPT, flags.ElementType_CMOD_REQD:
		r.typeHandle()
		return r.readType()

	case flags.ElementType_PTR:
		return r.reader.decoratedType(r.readType(), "*")

	case flags.ElementType_BYREF:
		return r.reader.decoratedType(r.readType(), "&")

	case flags.ElementType_SZARRAY:
		return r.reader.decoratedType(r.readType(), "[]")

	case flags.ElementType_ARRAY:
		element := r.readType()
		rank := r.compressed()
		for sizes := r.compressed(); sizes > 0 && r.err == nil; sizes-- {
			r.compressed()
		}
		for bounds := r.compressed(); bounds > 0 && r.err == nil; bounds-- {
			r.compressed()
		}
		return r.reader.decoratedType(element, arraySuffix(rank))

	case flags.ElementType_CLASS, flags.ElementType_VALUETYPE:
		return r.resolve(r.typeHandle())

	case flags.ElementType_GENERICINST:
		r.byte()
		definition := r.resolve(r.typeHandle())
		count := r.compressed()
		arguments := make([]*Type, 0, count)
		for i := uint32(0); i < count && r.err == nil; i++ {
			arguments = append(arguments, r.readType())
		}
		if r.err != nil {
			return nil
		}
		return r.reader.constructedType(definition, arguments)

	case flags.ElementType_VAR:
		number := r.compressed()
		if r.err != nil {
			return nil
		}
		if r.owner == nil || int(number) >= len(r.owner.GenericArguments) {
			r.fail("generic parameter %d is not declared by %s", number, r.owner)
			return nil
		}
		return r.owner.GenericArguments[number]

	case flags.ElementType_MVAR:
		return r.reader.externalType("", fmt.Sprintf("!!%d", r.compressed()))

	case flags.ElementType_FNPTR:
		r.methodTypes()
		return r.reader.externalType(systemNamespace, "IntPtr")

	case flags.ElementType_VOID, flags.ElementType_TYPEDBYREF:
		return r.reader.opaqueType(kind)
	}

	r.fail("unsupported element type %v", kind)
	return nil
}

func (r *signatureReader) resolve(index winmd.CodedIndex) *Type {
	if r.err != nil {
		return nil
	}
	t, err := r.reader.resolveTypeDefOrRef(r.owner, index)
	if err != nil {
		r.err = err
		return nil
	}
	return t
}

// arraySuffix spells a multi-dimensional array the way reflection names it.
func arraySuffix(rank uint32) string {
	if rank < 2 {
		return "[]"
	}
	return "[" + strings.Repeat(",", int(rank-1)) + "]"
}
