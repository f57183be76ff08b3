package view

import "fmt"

// RenderFault is a defect raised while producing a render tree. It is
// distinct from query errors, which are rendered as a Callout.
type RenderFault struct {
	Message string
}

func (f *RenderFault) Error() string {
	return f.Message
}

func faultFromPanic(r any) *RenderFault {
	switch v := r.(type) {
	case *RenderFault:
		return v
	case error:
		return &RenderFault{Message: v.Error()}
	default:
		return &RenderFault{Message: fmt.Sprint(v)}
	}
}
