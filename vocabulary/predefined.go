package vocabulary

import "fmt"

// Built-in CLAMS types at their current versions.
var (
	Thing       = builtin("Thing")
	Annotation  = builtin("Annotation")
	Region      = builtin("Region")
	TimePoint   = builtin("TimePoint")
	Interval    = builtin("Interval")
	Span        = builtin("Span")
	TimeFrame   = builtin("TimeFrame")
	Chapter     = builtin("Chapter")
	Polygon     = builtin("Polygon")
	BoundingBox = builtin("BoundingBox")
	VideoObject = builtin("VideoObject")
	Relation    = builtin("Relation")
	Alignment   = builtin("Alignment")

	Document      = builtin("Document")
	VideoDocument = builtin("VideoDocument")
	AudioDocument = builtin("AudioDocument")
	ImageDocument = builtin("ImageDocument")
	TextDocument  = builtin("TextDocument")
)

func builtin(name string) Type {
	t, ok := Of(name)
	if !ok {
		panic(fmt.Sprintf("vocabulary: %s missing from built-in definitions", name))
	}
	return t
}
