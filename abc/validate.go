package abc

import (
	"fmt"

	"github.com/deepnoodle-ai/avm/bytecode"
	"github.com/hashicorp/go-multierror"
)

// Validate performs structural checks the interpreter otherwise discovers
// only at run time: every body decodes into whole instructions, branch
// targets and exception boundaries land on instruction starts, register
// operands fit the declared register count and entry points have bodies.
// Every problem found is reported.
func Validate(b *Block) error {
	var result *multierror.Error
	for _, body := range b.Bodies {
		code, err := body.Decode()
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for _, verr := range code.Verify() {
			result = multierror.Append(result, verr)
		}
		m := body.Method
		need := 1 + m.ParamCount()
		if m.Flags&(NeedArguments|NeedRest) != 0 {
			need++
		}
		if body.LocalCount < need {
			result = multierror.Append(result, fmt.Errorf(
				"%s: %d register(s) declared, %d needed for receiver and parameters",
				m, body.LocalCount, need))
		}
		if body.InitScope > body.MaxScope {
			result = multierror.Append(result, fmt.Errorf(
				"%s: initial scope depth %d exceeds max scope depth %d", m, body.InitScope, body.MaxScope))
		}
	}
	for _, s := range b.Scripts {
		if s.Init.IsNative() {
			result = multierror.Append(result, fmt.Errorf("script %d: initializer %s has no body", s.Index, s.Init))
		}
	}
	for _, cls := range b.Classes {
		if cls.Constructor.IsNative() {
			result = multierror.Append(result, fmt.Errorf("class %s: constructor %s has no body", cls, cls.Constructor))
		}
		if cls.StaticInit.IsNative() {
			result = multierror.Append(result, fmt.Errorf("class %s: static initializer %s has no body", cls, cls.StaticInit))
		}
	}
	return result.ErrorOrNil()
}

// Decode decodes the body's code together with its exception table.
func (body *Body) Decode() (*bytecode.Code, error) {
	handlers := make([]bytecode.ExceptionHandler, len(body.Exceptions))
	for i, e := range body.Exceptions {
		handlers[i] = bytecode.ExceptionHandler{From: e.From, To: e.To, Target: e.Target}
	}
	return bytecode.NewCode(bytecode.CodeParams{
		Name:       body.Method.String(),
		Bytes:      body.Code,
		Handlers:   handlers,
		MaxStack:   body.MaxStack,
		LocalCount: body.LocalCount,
		MaxScope:   body.MaxScope,
	})
}
