package channel

// TransformDirection selects which way a record is being normalized
type TransformDirection string

const (
	// TransformInbound converts a provider payload to the canonical Item
	TransformInbound TransformDirection = "inbound"
	// TransformOutbound converts a canonical Item to the channel's
	// expected outbound shape
	TransformOutbound TransformDirection = "outbound"
)

// Transformer normalizes records between provider-specific shapes and
// the canonical Item. Implementations are pure: same input, same
// output, no side effects.
type Transformer interface {
	Transform(item Item, direction TransformDirection) (Item, error)
}

// TransformerFunc adapts a function to the Transformer interface
type TransformerFunc func(item Item, direction TransformDirection) (Item, error)

// Transform implements Transformer
func (f TransformerFunc) Transform(item Item, direction TransformDirection) (Item, error) {
	return f(item, direction)
}

// IdentityTransformer returns items unchanged; used for channels whose
// adapter already produces canonical items.
func IdentityTransformer() Transformer {
	return TransformerFunc(func(item Item, _ TransformDirection) (Item, error) {
		return item, nil
	})
}
